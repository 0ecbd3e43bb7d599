// Package permission decides whether this process may drive the Bluetooth radio.
package permission

import (
	"context"

	"github.com/srg/blescan/internal/device"
)

// Capability names a privilege the scanner needs.
type Capability string

// CapabilityScan is the privilege to run BLE discovery.
const CapabilityScan Capability = "ble-scan"

// Result is the outcome of a grant request.
type Result int

const (
	Granted Result = iota
	JustDenied
	NeedsRationale
	DeniedPermanently
)

func (r Result) String() string {
	switch r {
	case Granted:
		return "granted"
	case JustDenied:
		return "denied"
	case NeedsRationale:
		return "needs rationale"
	case DeniedPermanently:
		return "denied permanently"
	default:
		return "unknown"
	}
}

// Err maps a denial onto the device availability taxonomy. Granted yields nil.
func (r Result) Err() error {
	switch r {
	case Granted:
		return nil
	case DeniedPermanently:
		return device.ErrPermissionDeniedPermanently
	default:
		return device.ErrPermissionDenied
	}
}

// Authority checks and requests capabilities.
type Authority interface {
	CheckGranted(c Capability) bool
	RequestGrant(ctx context.Context, c Capability) (Result, error)
}

// Static is an Authority with a fixed answer.
type Static struct {
	Granted bool
	// Denial is returned by RequestGrant when Granted is false; zero means JustDenied.
	Denial Result
}

func (s Static) CheckGranted(Capability) bool {
	return s.Granted
}

func (s Static) RequestGrant(context.Context, Capability) (Result, error) {
	if s.Granted {
		return Granted, nil
	}
	if s.Denial == Granted {
		return JustDenied, nil
	}
	return s.Denial, nil
}

// Ensure checks c and requests it when missing.
// Returns nil when granted, otherwise the taxonomy error for the denial.
func Ensure(ctx context.Context, a Authority, c Capability) error {
	if a.CheckGranted(c) {
		return nil
	}
	res, err := a.RequestGrant(ctx, c)
	if err != nil {
		return err
	}
	return res.Err()
}
