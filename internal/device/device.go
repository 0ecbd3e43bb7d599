package device

import (
	"context"
	"errors"
	"fmt"
)

// AvailabilityReason identifies why scanning cannot proceed.
type AvailabilityReason string

const (
	PermissionDenied            AvailabilityReason = "permission_denied"
	PermissionDeniedPermanently AvailabilityReason = "permission_denied_permanently"
	AdapterUnavailable          AvailabilityReason = "adapter_unavailable"
	RadioAbsent                 AvailabilityReason = "radio_absent"
)

// AvailabilityError reports that the radio or the permission to use it is missing.
type AvailabilityError struct {
	Reason AvailabilityReason
	Msg    string
}

// Error implements the error interface
func (e *AvailabilityError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Msg)
}

// Is allows errors.Is to compare AvailabilityError values by Reason
func (e *AvailabilityError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*AvailabilityError)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

// Predefined sentinel errors for the scan preconditions
var (
	ErrPermissionDenied            = &AvailabilityError{Reason: PermissionDenied}
	ErrPermissionDeniedPermanently = &AvailabilityError{Reason: PermissionDeniedPermanently}
	ErrAdapterUnavailable          = &AvailabilityError{Reason: AdapterUnavailable}
	ErrRadioAbsent                 = &AvailabilityError{Reason: RadioAbsent}
)

// ErrScanFailed wraps a platform failure reported by a running scan.
var ErrScanFailed = errors.New("scan failed")

// IsReason reports whether err is an AvailabilityError with the given reason
func IsReason(err error, reason AvailabilityReason) bool {
	var aerr *AvailabilityError
	if errors.As(err, &aerr) {
		return aerr.Reason == reason
	}
	return false
}

// IsTerminal reports whether err can only be resolved outside the application:
// a permanently denied permission or a host without any Bluetooth radio.
func IsTerminal(err error) bool {
	return IsReason(err, PermissionDeniedPermanently) || IsReason(err, RadioAbsent)
}

// Scanner runs a platform scan.
//
// Scan blocks until ctx is done or the platform fails. Returning from Scan
// releases the platform scan handle; handler is never called afterwards.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Radio is the host Bluetooth adapter.
type Radio interface {
	// IsEnabled reports whether a scanner can be obtained right now.
	IsEnabled() bool
	// RequestEnable waits for the radio to become usable or ctx to end.
	RequestEnable(ctx context.Context) error
	// Scanner returns the scanning capability or an AvailabilityError.
	Scanner() (Scanner, error)
}

// Advertisement is a single parsed advertising report.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	ServiceData() []struct {
		UUID string
		Data []byte
	}

	Services() []string
	TxPowerLevel() int
	Connectable() bool

	RSSI() int
	Addr() string
}
