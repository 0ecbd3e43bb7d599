package goble

import (
	"fmt"
	"strings"

	"github.com/srg/blescan/internal/device"
)

// NormalizeError maps known go-ble and OS error strings to the device availability taxonomy.
// Returns wrapped errors to preserve original context; context errors pass through untouched.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrAdapterUnavailable, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "powered off"),
		containsIgnoreCase(msg, "network is down"):
		return fmt.Errorf("%w: %v", device.ErrAdapterUnavailable, err)
	case containsIgnoreCase(msg, "no such device"),
		containsIgnoreCase(msg, "can't find any hci device"),
		containsIgnoreCase(msg, "unsupported platform"),
		containsIgnoreCase(msg, "address family not supported"):
		return fmt.Errorf("%w: %v", device.ErrRadioAbsent, err)
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "permission denied"):
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
