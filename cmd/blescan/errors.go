package main

import (
	"errors"
	"fmt"

	"github.com/srg/blescan/internal/device"
)

// FormatUserError turns an error into a message for the terminal.
// Availability errors get a hint on how to fix them; other errors print as is.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var availErr *device.AvailabilityError
	if !errors.As(err, &availErr) {
		return err.Error()
	}

	switch availErr.Reason {
	case device.PermissionDeniedPermanently:
		return fmt.Sprintf("Bluetooth permission is denied and cannot be requested from here.\n"+
			"Grant it once and rerun, e.g.: sudo setcap 'cap_net_raw,cap_net_admin+eip' <path to blescan>\n(%s)", err)
	case device.PermissionDenied:
		return fmt.Sprintf("Bluetooth permission was not granted; scanning needs it.\n(%s)", err)
	case device.AdapterUnavailable:
		return fmt.Sprintf("Bluetooth is turned off or unavailable. Enable it, or rerun with --enable to wait for it.\n(%s)", err)
	case device.RadioAbsent:
		return fmt.Sprintf("This host has no Bluetooth LE radio.\n(%s)", err)
	default:
		return err.Error()
	}
}
