package goble

import (
	"slices"

	"github.com/go-ble/ble"
	"github.com/srg/blescan/internal/device"
)

// report is a device.Advertisement copied out of a ble.Advertisement.
// The platform may reuse adv after the handler returns.
type report struct {
	name        string
	addr        string
	rssi        int
	txPower     int
	connectable bool
	mfg         []byte
	services    []string
	serviceData []struct {
		UUID string
		Data []byte
	}
}

func newReport(adv ble.Advertisement) *report {
	r := &report{
		name:        adv.LocalName(),
		rssi:        adv.RSSI(),
		txPower:     adv.TxPowerLevel(),
		connectable: adv.Connectable(),
		mfg:         slices.Clone(adv.ManufacturerData()),
	}
	if a := adv.Addr(); a != nil {
		r.addr = a.String()
	}
	for _, u := range adv.Services() {
		r.services = append(r.services, u.String())
	}
	for _, sd := range adv.ServiceData() {
		r.serviceData = append(r.serviceData, struct {
			UUID string
			Data []byte
		}{UUID: sd.UUID.String(), Data: slices.Clone(sd.Data)})
	}
	return r
}

var _ device.Advertisement = (*report)(nil)

func (r *report) LocalName() string        { return r.name }
func (r *report) Addr() string             { return r.addr }
func (r *report) RSSI() int                { return r.rssi }
func (r *report) TxPowerLevel() int        { return r.txPower }
func (r *report) Connectable() bool        { return r.connectable }
func (r *report) ManufacturerData() []byte { return r.mfg }
func (r *report) Services() []string       { return r.services }

func (r *report) ServiceData() []struct {
	UUID string
	Data []byte
} {
	return r.serviceData
}
