package device_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blescan/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityError(t *testing.T) {
	t.Run("matches sentinel by reason through wrapping", func(t *testing.T) {
		err := fmt.Errorf("start scan: %w", &device.AvailabilityError{
			Reason: device.AdapterUnavailable,
			Msg:    "powered off",
		})

		assert.ErrorIs(t, err, device.ErrAdapterUnavailable)
		assert.NotErrorIs(t, err, device.ErrRadioAbsent)
		assert.True(t, device.IsReason(err, device.AdapterUnavailable))
		assert.Equal(t, "start scan: adapter_unavailable: powered off", err.Error())
	})

	t.Run("sentinel message is its reason", func(t *testing.T) {
		assert.Equal(t, "permission_denied", device.ErrPermissionDenied.Error())
	})

	t.Run("unrelated errors carry no reason", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, device.IsReason(err, device.PermissionDenied))
		assert.False(t, device.IsTerminal(err))
	})
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		err      error
		terminal bool
	}{
		{device.ErrPermissionDenied, false},
		{device.ErrPermissionDeniedPermanently, true},
		{device.ErrAdapterUnavailable, false},
		{device.ErrRadioAbsent, true},
		{fmt.Errorf("%w: hci0 missing", device.ErrRadioAbsent), true},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, device.IsTerminal(tt.err))
		})
	}
}

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "16-bit", input: "180D", expected: "180d"},
		{name: "16-bit with 0x prefix", input: "0x2902", expected: "2902"},
		{name: "32-bit", input: "12345678", expected: "12345678"},
		{name: "SIG base UUID shortens", input: "0000180d-0000-1000-8000-00805F9B34FB", expected: "180d"},
		{name: "SIG base UUID without dashes", input: "0000290200001000800000805f9b34fb", expected: "2902"},
		{name: "vendor 128-bit keeps full form", input: "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", expected: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{name: "non-zero prefix is not SIG base", input: "AA002902-0000-1000-8000-00805f9b34fb", expected: "aa00290200001000800000805f9b34fb"},
		{name: "empty", input: "", expected: ""},
		{name: "non-hex", input: "heart", expected: ""},
		{name: "odd length", input: "18", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, device.NormalizeUUID(tt.input))
		})
	}
}

func TestValidateUUID(t *testing.T) {
	got, err := device.ValidateUUID("180D", "0x180f")
	require.NoError(t, err)
	assert.Equal(t, []string{"180d", "180f"}, got)

	_, err = device.ValidateUUID()
	assert.Error(t, err)

	_, err = device.ValidateUUID("180d", "")
	assert.ErrorContains(t, err, "index 1")

	_, err = device.ValidateUUID("zz")
	assert.ErrorContains(t, err, "invalid UUID format")
}
