// Package registry keeps the set of devices discovered by scan sessions.
package registry

import (
	"slices"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blescan/internal/device"
)

// Registry deduplicates discovered devices by address.
// All methods are safe for concurrent use.
type Registry struct {
	devices  atomic.Pointer[hashmap.Map[string, device.Record]]
	inserted atomic.Int64
	logger   *logrus.Logger
}

// New creates an empty Registry. A nil logger falls back to logrus.New().
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Registry{logger: logger}
	r.devices.Store(hashmap.New[string, device.Record]())
	return r
}

// RecordSeen stores rec unless a record with the same address is already known.
// Reports whether rec was inserted; repeat sightings are no-ops.
func (r *Registry) RecordSeen(rec device.Record) bool {
	if !r.devices.Load().Insert(rec.Address, rec) {
		return false
	}
	r.inserted.Add(1)

	r.logger.WithFields(logrus.Fields{
		"device":  rec.Name,
		"address": rec.Address,
		"rssi":    rec.RSSI,
	}).Info("Discovered new device")
	return true
}

// Snapshot returns all known records ordered by device.CompareRecords.
func (r *Registry) Snapshot() []device.Record {
	m := r.devices.Load()
	devs := make([]device.Record, 0, m.Len())

	m.Range(func(_ string, rec device.Record) bool {
		devs = append(devs, rec)
		return true
	})

	slices.SortFunc(devs, device.CompareRecords)
	return devs
}

// Get returns the record stored for address.
func (r *Registry) Get(address string) (device.Record, bool) {
	return r.devices.Load().Get(address)
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	return r.devices.Load().Len()
}

// Inserted returns how many insertions succeeded since the registry was created.
func (r *Registry) Inserted() int64 {
	return r.inserted.Load()
}

// Clear forgets all known devices.
func (r *Registry) Clear() {
	r.devices.Store(hashmap.New[string, device.Record]())
	r.logger.Info("Cleared all discovered devices")
}
