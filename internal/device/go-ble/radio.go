package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blescan/internal/device"
)

// DefaultEnablePollInterval is how often RequestEnable re-probes a disabled radio.
const DefaultEnablePollInterval = 500 * time.Millisecond

// Radio implements device.Radio over the go-ble host device.
// The platform device is opened lazily and cached until Close.
type Radio struct {
	mu           sync.Mutex
	dev          ble.Device
	logger       *logrus.Logger
	pollInterval time.Duration
}

// NewRadio creates a Radio. A nil logger falls back to logrus.New().
func NewRadio(logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	return &Radio{
		logger:       logger,
		pollInterval: DefaultEnablePollInterval,
	}
}

func (r *Radio) open() (ble.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev != nil {
		return r.dev, nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	r.dev = dev
	return dev, nil
}

// IsEnabled reports whether the platform device can be opened.
func (r *Radio) IsEnabled() bool {
	if _, err := r.open(); err != nil {
		r.logger.WithError(err).Debug("Bluetooth radio is not usable")
		return false
	}
	return true
}

// RequestEnable waits until the radio can be opened. A CLI cannot switch the
// radio on by itself, so this polls while the user enables it.
// Returns immediately for errors that enabling cannot fix.
func (r *Radio) RequestEnable(ctx context.Context) error {
	_, err := r.open()
	if err == nil {
		return nil
	}
	if !errors.Is(err, device.ErrAdapterUnavailable) {
		return err
	}

	r.logger.Warn("Bluetooth is turned off, waiting for it to be enabled")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", device.ErrAdapterUnavailable, context.Cause(ctx))
		case <-ticker.C:
			_, err := r.open()
			if err == nil {
				r.logger.Info("Bluetooth radio enabled")
				return nil
			}
			if !errors.Is(err, device.ErrAdapterUnavailable) {
				return err
			}
		}
	}
}

// Scanner returns a scanner over the cached platform device.
func (r *Radio) Scanner() (device.Scanner, error) {
	dev, err := r.open()
	if err != nil {
		return nil, err
	}
	return &scanner{dev: dev}, nil
}

// Close releases the platform device. The next call re-opens it.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev == nil {
		return nil
	}
	err := r.dev.Stop()
	r.dev = nil
	return NormalizeError(err)
}
