//go:build !linux

package permission

// New returns the Authority for this platform. The OS prompts for Bluetooth
// access itself on first radio use, so nothing is checked up front.
func New() Authority {
	return Static{Granted: true}
}
