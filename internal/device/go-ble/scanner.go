package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/srg/blescan/internal/device"
)

// scanner runs discovery on an opened ble.Device.
type scanner struct {
	dev ble.Device
}

func (s *scanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	err := s.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(newReport(adv))
	})
	return NormalizeError(err)
}
