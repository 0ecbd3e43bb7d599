package scan

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/srg/blescan/internal/device"
)

const (
	// DefaultDuration bounds a session that is not stopped explicitly.
	DefaultDuration = 20 * time.Second

	// DefaultBufferSize is the capacity of the discovery event buffer.
	DefaultBufferSize uint32 = 256
)

// Options configures scan sessions started by a Coordinator.
type Options struct {
	// Duration after which a session stops itself; 0 scans until stopped.
	Duration time.Duration
	// AllowDuplicates asks the radio to report every advertisement, not only the first per device.
	AllowDuplicates bool
	// ClearOnStart empties the registry when a session starts. When false,
	// devices accumulate across sessions.
	ClearOnStart bool
	// BufferSize is the capacity of the discovery event buffer; the oldest
	// events are overwritten when the registry falls behind.
	BufferSize uint32
	Filter     Filter
}

// DefaultOptions returns default session options
func DefaultOptions() Options {
	return Options{
		Duration:        DefaultDuration,
		AllowDuplicates: true,
		BufferSize:      DefaultBufferSize,
	}
}

// Filter restricts which advertisements reach the registry.
// Addresses compare case-insensitively; service UUIDs must be normalized.
type Filter struct {
	AllowList    []string
	BlockList    []string
	ServiceUUIDs []string
}

// Include applies the block, allow and service filters in that order.
func (f Filter) Include(adv device.Advertisement) bool {
	addr := adv.Addr()
	sameAddr := func(a string) bool { return strings.EqualFold(a, addr) }

	if lo.ContainsBy(f.BlockList, sameAddr) {
		return false
	}

	if len(f.AllowList) > 0 && !lo.ContainsBy(f.AllowList, sameAddr) {
		return false
	}

	if len(f.ServiceUUIDs) > 0 {
		advertised := lo.Map(adv.Services(), func(uuid string, _ int) string {
			return device.NormalizeUUID(uuid)
		})
		if !lo.Some(advertised, f.ServiceUUIDs) {
			return false
		}
	}

	return true
}
