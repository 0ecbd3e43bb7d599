//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/blescan/internal/device"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
// go-ble has no backend for this platform.
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return nil, fmt.Errorf("%w: unsupported platform %s", device.ErrRadioAbsent, runtime.GOOS)
}
