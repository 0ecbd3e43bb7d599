package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/blescan/internal/device"
)

// FakeScanner is a device.Scanner driven by the test.
// Scan blocks until its context ends or Fail is called.
type FakeScanner struct {
	// StartErr, when set, is returned by Scan immediately.
	StartErr error

	mu       sync.RWMutex
	handler  func(device.Advertisement)
	fail     chan error
	calls    atomic.Int32
	releases atomic.Int32
	started  chan struct{}
}

// NewFakeScanner creates an idle FakeScanner.
func NewFakeScanner() *FakeScanner {
	return &FakeScanner{started: make(chan struct{}, 16)}
}

func (s *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	s.calls.Add(1)
	if s.StartErr != nil {
		s.releases.Add(1)
		return s.StartErr
	}

	fail := make(chan error, 1)
	s.mu.Lock()
	s.handler = handler
	s.fail = fail
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.fail == fail {
			s.handler = nil
			s.fail = nil
		}
		s.mu.Unlock()
		s.releases.Add(1)
	}()

	select {
	case s.started <- struct{}{}:
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-fail:
		return err
	}
}

// Emit delivers adv to the running scan. Reports false when no scan is running.
func (s *FakeScanner) Emit(adv device.Advertisement) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handler == nil {
		return false
	}
	s.handler(adv)
	return true
}

// Fail makes the running scan return err.
func (s *FakeScanner) Fail(err error) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail == nil {
		return false
	}
	s.fail <- err
	return true
}

// WaitStarted blocks until a Scan call is running or timeout elapses.
func (s *FakeScanner) WaitStarted(timeout time.Duration) bool {
	select {
	case <-s.started:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Active reports whether a Scan call is running.
func (s *FakeScanner) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler != nil
}

// Calls returns how many times Scan was invoked.
func (s *FakeScanner) Calls() int { return int(s.calls.Load()) }

// Releases returns how many Scan calls have returned.
func (s *FakeScanner) Releases() int { return int(s.releases.Load()) }

// FakeRadio is a device.Radio backed by a FakeScanner.
type FakeRadio struct {
	Scan *FakeScanner
	// ScannerErr, when set, is returned by Scanner.
	ScannerErr error
	// Enableable makes RequestEnable switch a disabled radio on.
	Enableable bool

	enabled      atomic.Bool
	scannerCalls atomic.Int32
}

// NewFakeRadio creates an enabled radio.
func NewFakeRadio() *FakeRadio {
	r := &FakeRadio{Scan: NewFakeScanner()}
	r.enabled.Store(true)
	return r
}

// SetEnabled switches the radio on or off.
func (r *FakeRadio) SetEnabled(on bool) { r.enabled.Store(on) }

func (r *FakeRadio) IsEnabled() bool { return r.enabled.Load() }

func (r *FakeRadio) RequestEnable(ctx context.Context) error {
	if r.enabled.Load() {
		return nil
	}
	if r.Enableable {
		r.enabled.Store(true)
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("%w: %v", device.ErrAdapterUnavailable, context.Cause(ctx))
}

func (r *FakeRadio) Scanner() (device.Scanner, error) {
	r.scannerCalls.Add(1)
	if r.ScannerErr != nil {
		return nil, r.ScannerErr
	}
	if !r.enabled.Load() {
		return nil, device.ErrAdapterUnavailable
	}
	return r.Scan, nil
}

// ScannerCalls returns how many times Scanner was invoked.
func (r *FakeRadio) ScannerCalls() int { return int(r.scannerCalls.Load()) }
