//go:build linux

package permission

import (
	"context"
	"fmt"
	"os"

	"github.com/srg/blescan/internal/device"
	"golang.org/x/sys/unix"
)

// capabilityAuthority grants scanning to root or to processes holding the raw
// HCI socket capabilities.
type capabilityAuthority struct{}

// New returns the Authority for this platform.
func New() Authority {
	return capabilityAuthority{}
}

func (capabilityAuthority) CheckGranted(c Capability) bool {
	if c != CapabilityScan {
		return false
	}
	if os.Geteuid() == 0 {
		return true
	}
	return hasEffective(unix.CAP_NET_ADMIN) && hasEffective(unix.CAP_NET_RAW)
}

// RequestGrant cannot prompt: capabilities are granted outside the process.
func (a capabilityAuthority) RequestGrant(_ context.Context, c Capability) (Result, error) {
	if a.CheckGranted(c) {
		return Granted, nil
	}
	return DeniedPermanently, fmt.Errorf("%w: run as root or grant capabilities with 'sudo setcap cap_net_raw,cap_net_admin+eip %s'",
		device.ErrPermissionDeniedPermanently, executable())
}

func hasEffective(capability int) bool {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return false
	}
	return data[capability/32].Effective&(1<<(uint(capability)%32)) != 0
}

func executable() string {
	path, err := os.Executable()
	if err != nil {
		return "<binary>"
	}
	return path
}
