package scan

import (
	"context"
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/srg/blescan/internal/device"
)

// pump decouples the platform callback from registry updates.
// Producers never block; the consumer drains everything buffered so far as
// one batch, preserving arrival order.
type pump struct {
	buf         mpmc.RichOverlappedRingBuffer[device.Record]
	wake        chan struct{}
	overwritten atomic.Int64
}

func newPump(size uint32) *pump {
	if size == 0 {
		size = DefaultBufferSize
	}
	return &pump{
		buf:  mpmc.NewOverlappedRingBuffer[device.Record](size),
		wake: make(chan struct{}, 1),
	}
}

// push buffers rec, overwriting the oldest record when full.
func (p *pump) push(rec device.Record) error {
	overwrites, err := p.buf.EnqueueM(rec)
	if err != nil {
		return err
	}
	p.overwritten.Add(int64(overwrites))

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// run hands batches to handle until ctx is done. Records still buffered at
// that point are dropped.
func (p *pump) run(ctx context.Context, handle func(batch []device.Record)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}

		if batch := p.drain(); len(batch) > 0 {
			handle(batch)
		}
	}
}

func (p *pump) drain() []device.Record {
	var batch []device.Record
	for !p.buf.IsEmpty() {
		rec, err := p.buf.Dequeue()
		if err != nil {
			break
		}
		batch = append(batch, rec)
	}
	return batch
}

// Overwritten returns how many buffered records were lost to overflow.
func (p *pump) Overwritten() int64 {
	return p.overwritten.Load()
}
