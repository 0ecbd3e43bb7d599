package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/blescan/internal/device"
	"github.com/srg/blescan/internal/observable"
	"github.com/srg/blescan/internal/permission"
	"github.com/srg/blescan/internal/registry"
)

// Coordinator owns the device registry and at most one active Session.
//
// It publishes two observable values: whether a session is scanning, and
// the ordered device list. Scanning is set when a session starts or stops.
// The device list is set when a device is added or a non-empty registry is cleared.
type Coordinator struct {
	radio     device.Radio
	authority permission.Authority
	registry  *registry.Registry
	opts      Options
	logger    *logrus.Logger

	startMu sync.Mutex // serializes Start
	mu      sync.Mutex // guards current
	current *Session

	scanning *observable.Value[bool]
	devices  *observable.Value[[]device.Record]
}

// NewCoordinator creates a Coordinator with an empty registry.
// A nil logger falls back to logrus.New().
func NewCoordinator(radio device.Radio, authority permission.Authority, opts Options, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &Coordinator{
		radio:     radio,
		authority: authority,
		registry:  registry.New(logger),
		opts:      opts,
		logger:    logger,
		scanning:  observable.NewValue(false),
		devices:   observable.NewValue([]device.Record{}),
	}
}

// Start begins a new session, stopping the active one first.
//
// The scan capability is checked before any radio resource is acquired;
// a denial returns an error matching device.ErrPermissionDenied or
// device.ErrPermissionDeniedPermanently and leaves the current state untouched.
// Cancelling ctx stops the returned session.
func (c *Coordinator) Start(ctx context.Context) (*Session, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if err := permission.Ensure(ctx, c.authority, permission.CapabilityScan); err != nil {
		c.logger.WithError(err).Warn("Scan permission not granted")
		return nil, err
	}

	scanner, err := c.radio.Scanner()
	if err != nil {
		var availErr *device.AvailabilityError
		if !errors.As(err, &availErr) {
			err = fmt.Errorf("%w: %w", device.ErrAdapterUnavailable, err)
		}
		return nil, err
	}
	if scanner == nil {
		return nil, device.ErrAdapterUnavailable
	}

	c.stopCurrent()

	if c.opts.ClearOnStart && c.registry.Len() > 0 {
		c.registry.Clear()
		c.devices.Set(c.registry.Snapshot())
	}

	s := newSession(uuid.NewString(), scanner, c.opts, sessionHooks{
		record:  c.record,
		changed: c.publishDevices,
		stopped: c.sessionStopped,
	}, c.logger)

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	c.scanning.Set(true)
	s.start(ctx)
	return s, nil
}

// Stop ends the active session, if any, and waits for its stop notification.
func (c *Coordinator) Stop() {
	c.stopCurrent()
}

func (c *Coordinator) stopCurrent() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()

	if s == nil {
		return
	}
	s.Stop()
	<-s.Stopped()
}

func (c *Coordinator) record(batch []device.Record) int {
	inserted := 0
	for _, rec := range batch {
		if c.registry.RecordSeen(rec) {
			inserted++
		}
	}
	return inserted
}

func (c *Coordinator) publishDevices() {
	c.devices.Set(c.registry.Snapshot())
}

func (c *Coordinator) sessionStopped(s *Session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()

	c.scanning.Set(false)
}

// Current returns the active session, or nil.
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Registry returns the device registry shared by all sessions.
func (c *Coordinator) Registry() *registry.Registry { return c.registry }

// Scanning reports whether a session is active.
func (c *Coordinator) Scanning() *observable.Value[bool] { return c.scanning }

// Devices holds the ordered device list, updated after every insertion.
func (c *Coordinator) Devices() *observable.Value[[]device.Record] { return c.devices }

// Options returns the options applied to new sessions.
func (c *Coordinator) Options() Options { return c.opts }
