package main

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blescan/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestRootCommand(t *testing.T) {
	t.Run("help lists the scan command", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--help"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "scan")
		assert.Contains(t, buf.String(), "--log-level")
		assert.Contains(t, buf.String(), "--config")
	})

	t.Run("version", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--version"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "blescan dev")
	})

	t.Run("scan flags", func(t *testing.T) {
		cmd := newScanCmd()
		for _, name := range []string{
			"duration", "format", "services", "allow", "block", "duplicates", "watch", "rounds",
			"fresh", "no-badges", "enable", "enable-timeout", "assume-permission",
			"mqtt-broker", "mqtt-topic", "verbose",
		} {
			assert.NotNilf(t, cmd.Flags().Lookup(name), "flag --%s MUST exist", name)
		}
		assert.Equal(t, "20s", cmd.Flags().Lookup("duration").DefValue)
	})
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}

	tests := []struct {
		name string
		args []string
		cfg  string
		want logrus.Level
	}{
		{"silent by default", nil, "panic", logrus.PanicLevel},
		{"config level", nil, "warn", logrus.WarnLevel},
		{"verbose", []string{"--verbose"}, "panic", logrus.DebugLevel},
		{"log-level wins over verbose", []string{"--verbose", "--log-level", "error"}, "panic", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := configureLogger(newCmd(tt.args...), &config.Config{LogLevel: tt.cfg}, "verbose")
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		_, err := configureLogger(newCmd("--log-level", "loud"), config.DefaultConfig(), "verbose")
		assert.ErrorContains(t, err, "invalid log level: loud")
	})
}
