package device

import (
	"sort"
	"strings"
	"time"
)

// txPowerUnavailable is the value the radio reports when an advertisement has no TX power field.
const txPowerUnavailable = 127

// Record is one discovered peripheral as first seen during a scan.
// An empty Name means the device did not advertise one.
type Record struct {
	Address          string    `json:"address"`
	Name             string    `json:"name,omitempty"`
	RSSI             int       `json:"rssi"`
	Connectable      bool      `json:"connectable"`
	Services         []string  `json:"services,omitempty"`
	ManufacturerData []byte    `json:"manufacturerData,omitempty"`
	Vendor           string    `json:"vendor,omitempty"`
	TxPower          *int      `json:"txPower,omitempty"`
	FirstSeen        time.Time `json:"firstSeen"`
}

// HasName reports whether the device advertised a local name.
func (r Record) HasName() bool {
	return r.Name != ""
}

// NewRecord builds a Record from an advertisement.
func NewRecord(adv Advertisement) Record {
	rec := Record{
		Address:          adv.Addr(),
		Name:             adv.LocalName(),
		RSSI:             adv.RSSI(),
		Connectable:      adv.Connectable(),
		ManufacturerData: adv.ManufacturerData(),
		Vendor:           vendorOf(adv.ManufacturerData()),
		FirstSeen:        time.Now(),
	}

	for _, uuid := range adv.Services() {
		if u := NormalizeUUID(uuid); u != "" {
			rec.Services = append(rec.Services, u)
		}
	}
	sort.Strings(rec.Services)

	if tx := adv.TxPowerLevel(); tx != txPowerUnavailable {
		rec.TxPower = &tx
	}

	return rec
}

// CompareRecords orders records by name ascending with unnamed devices last,
// then by address. Distinct addresses never compare equal.
func CompareRecords(a, b Record) int {
	switch {
	case a.HasName() && !b.HasName():
		return -1
	case !a.HasName() && b.HasName():
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Address, b.Address)
}
