package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blescan/internal/device"
	goble "github.com/srg/blescan/internal/device/go-ble"
	"github.com/srg/blescan/internal/groutine"
	"github.com/srg/blescan/internal/permission"
	"github.com/srg/blescan/internal/publish"
	"github.com/srg/blescan/internal/scan"
	"github.com/srg/blescan/pkg/config"
)

// Overridable in tests.
var (
	newRadio = func(logger *logrus.Logger) device.Radio {
		return goble.NewRadio(logger)
	}
	newAuthority = permission.New
	newSink      = func(cfg publish.MQTTConfig, logger *logrus.Logger) (publish.Sink, error) {
		return publish.NewMQTTSink(cfg, logger)
	}
	interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
)

type scanFlags struct {
	duration         time.Duration
	format           string
	services         []string
	allowList        []string
	blockList        []string
	duplicates       bool
	watch            bool
	rounds           int
	fresh            bool
	noBadges         bool
	enable           bool
	enableTimeout    time.Duration
	assumePermission bool
	mqttBroker       string
	mqttTopic        string
	verbose          bool
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE devices",
		Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Each device is listed once, by its first advertisement, sorted with named
devices first. Consecutive rounds (--rounds) keep earlier discoveries unless
--fresh is given.`,
		Example: `  blescan scan
  blescan scan -d 5s --format json
  blescan scan --watch --services 180d
  blescan scan --rounds 3 --mqtt-broker tcp://localhost:1883`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.DurationVarP(&f.duration, "duration", "d", scan.DefaultDuration, "Scan duration per round (0 for indefinite)")
	flags.StringVarP(&f.format, "format", "f", "table", "Output format (table, json)")
	flags.StringSliceVarP(&f.services, "services", "s", nil, "Only show devices advertising one of these service UUIDs")
	flags.StringSliceVar(&f.allowList, "allow", nil, "Only show devices with these addresses")
	flags.StringSliceVar(&f.blockList, "block", nil, "Hide devices with these addresses")
	flags.BoolVar(&f.duplicates, "duplicates", true, "Ask the radio to report repeated advertisements")
	flags.BoolVarP(&f.watch, "watch", "w", false, "Redraw the device list on every change; scans until Ctrl+C unless --duration is given")
	flags.IntVarP(&f.rounds, "rounds", "n", 1, "Number of consecutive scan sessions")
	flags.BoolVar(&f.fresh, "fresh", false, "Forget devices from earlier rounds when a round starts")
	flags.BoolVar(&f.noBadges, "no-badges", false, "Hide the colored address badges")
	flags.BoolVar(&f.enable, "enable", false, "Wait for Bluetooth to be turned on instead of failing")
	flags.DurationVar(&f.enableTimeout, "enable-timeout", 30*time.Second, "How long --enable waits")
	flags.BoolVar(&f.assumePermission, "assume-permission", false, "Skip the Bluetooth permission check")
	flags.StringVar(&f.mqttBroker, "mqtt-broker", "", "Publish device lists to this MQTT broker (e.g. tcp://localhost:1883)")
	flags.StringVar(&f.mqttTopic, "mqtt-topic", "", "MQTT topic for device lists")
	flags.BoolVarP(&f.verbose, "verbose", "V", false, "Verbose output (debug logging)")

	return cmd
}

// loadConfig reads the config sources named by the persistent flags and
// applies the scan flags the user set explicitly.
func loadConfig(cmd *cobra.Command, f *scanFlags) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("duration") {
		cfg.Scan.Duration = f.duration
	} else if f.watch {
		cfg.Scan.Duration = 0
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("services") {
		cfg.Scan.Services = f.services
	}
	if changed("allow") {
		cfg.Scan.AllowList = f.allowList
	}
	if changed("block") {
		cfg.Scan.BlockList = f.blockList
	}
	if changed("duplicates") {
		cfg.Scan.AllowDuplicates = f.duplicates
	}
	if changed("fresh") {
		cfg.Scan.ClearOnStart = f.fresh
	}
	if changed("no-badges") {
		cfg.Output.Badges = !f.noBadges
	}
	if changed("mqtt-broker") {
		cfg.MQTT.Broker = f.mqttBroker
	}
	if changed("mqtt-topic") {
		cfg.MQTT.Topic = f.mqttTopic
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runScan(cmd *cobra.Command, f *scanFlags) error {
	if f.rounds < 1 {
		return fmt.Errorf("invalid rounds %d: must be at least 1", f.rounds)
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}

	opts, err := cfg.ScanOptions()
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	render := renderOptions{format: cfg.Output.Format, badges: cfg.Output.Badges}

	ctx, stop := signal.NotifyContext(cmd.Context(), interruptSignals...)
	defer stop()

	radio := newRadio(logger)
	if c, ok := radio.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.WithError(err).Warn("Failed to release the BLE radio")
			}
		}()
	}

	var authority permission.Authority = permission.Static{Granted: true}
	if !f.assumePermission {
		authority = newAuthority()
	}
	if err := permission.Ensure(ctx, authority, permission.CapabilityScan); err != nil {
		return err
	}

	if err := ensureRadio(ctx, cmd, radio, f); err != nil {
		return err
	}

	coord := scan.NewCoordinator(radio, authority, opts, logger)

	if cfg.MQTTEnabled() {
		shutdown, err := startPublisher(cfg, coord, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	if f.watch {
		cancel := coord.Devices().Subscribe(func(devs []device.Record) {
			clearScreen(out)
			if err := renderDevices(out, devs, render); err != nil {
				logger.WithError(err).Warn("Failed to render device list")
			}
		})
		defer cancel()
	}

	interrupted, err := runRounds(ctx, cmd, coord, f.rounds, !f.watch && render.format == "table")
	if err != nil {
		return err
	}
	if interrupted {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nCtrl+C pressed, scan stopped")
	}

	if f.watch {
		return nil
	}
	return renderDevices(out, coord.Registry().Snapshot(), render)
}

// ensureRadio waits for a disabled radio when --enable is set.
// Without --enable a disabled radio is reported by the session start.
func ensureRadio(ctx context.Context, cmd *cobra.Command, radio device.Radio, f *scanFlags) error {
	if !f.enable || radio.IsEnabled() {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Bluetooth is off; waiting up to %s for it to be turned on...\n", f.enableTimeout)

	enableCtx, cancel := context.WithTimeout(ctx, f.enableTimeout)
	defer cancel()

	if err := radio.RequestEnable(enableCtx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return context.Canceled
		}
		return err
	}
	return nil
}

// runRounds runs sessions back to back and reports whether ctx ended them early.
func runRounds(ctx context.Context, cmd *cobra.Command, coord *scan.Coordinator, rounds int, showProgress bool) (bool, error) {
	for i := 0; i < rounds; i++ {
		session, err := coord.Start(ctx)
		if err != nil {
			return false, err
		}

		var progress *ProgressPrinter
		unsubscribe := func() {}
		if showProgress && isTerminal(cmd.OutOrStdout()) {
			prefix := "Scanning for BLE devices"
			if rounds > 1 {
				prefix = fmt.Sprintf("Scanning for BLE devices, round %d/%d", i+1, rounds)
			}
			progress = NewProgressPrinter(cmd.OutOrStdout(), prefix, coord.Options().Duration)
			progress.Start()
			unsubscribe = coord.Devices().Subscribe(func(devs []device.Record) { progress.SetFound(len(devs)) })
		}

		select {
		case <-session.Done():
		case <-ctx.Done():
			coord.Stop()
			<-session.Done()
		}
		unsubscribe()
		if progress != nil {
			progress.Stop()
		}

		if ctx.Err() != nil {
			return true, nil
		}
		// Done is closed, so Wait returns the platform failure without blocking.
		if err := session.Wait(ctx); err != nil {
			return false, err
		}
	}
	return false, nil
}

// startPublisher publishes every device list change until the returned func is called.
func startPublisher(cfg *config.Config, coord *scan.Coordinator, logger *logrus.Logger) (func(), error) {
	sink, err := newSink(cfg.MQTTSinkConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	publisher := publish.NewPublisher(sink, cfg.MQTT.Topic, logger)
	detach := publisher.Attach(coord.Devices())
	done := groutine.Go(context.Background(), "mqtt-publisher", publisher.Run)

	return func() {
		detach()
		publisher.Close()
		<-done
		if err := sink.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close MQTT connection")
		}
		logger.WithFields(logrus.Fields{
			"published": publisher.Published(),
			"failed":    publisher.Failed(),
		}).Info("MQTT publisher stopped")
	}, nil
}
