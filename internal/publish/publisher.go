// Package publish forwards device snapshots to an external sink such as an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blescan/internal/device"
	"github.com/srg/blescan/internal/observable"
	"github.com/srg/blescan/internal/ringchan"
)

// Sink delivers encoded snapshots.
type Sink interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// Snapshot is the published envelope.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Count     int             `json:"count"`
	Devices   []device.Record `json:"devices"`
}

// Publisher sends the latest device list to a Sink from its own goroutine.
// Only the newest pending list is kept, so a slow sink never blocks discovery.
type Publisher struct {
	sink      Sink
	topic     string
	queue     *ringchan.RingChannel[[]device.Record]
	logger    *logrus.Logger
	published atomic.Int64
	failed    atomic.Int64
}

// NewPublisher creates a Publisher for topic. A nil logger falls back to logrus.New().
func NewPublisher(sink Sink, topic string, logger *logrus.Logger) *Publisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Publisher{
		sink:   sink,
		topic:  topic,
		queue:  ringchan.New[[]device.Record](1),
		logger: logger,
	}
}

// Attach queues every value of devices, starting with the current one.
// The returned function detaches.
func (p *Publisher) Attach(devices *observable.Value[[]device.Record]) (cancel func()) {
	return devices.Subscribe(p.Enqueue)
}

// Enqueue replaces any pending list with devs.
func (p *Publisher) Enqueue(devs []device.Record) {
	p.queue.ForceSend(devs)
}

// Run publishes queued lists until ctx is done or Close is called.
// A list still pending when ctx ends is published before returning.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case devs, ok := <-p.queue.C():
				if ok {
					p.publish(devs)
				}
			default:
			}
			return
		case devs, ok := <-p.queue.C():
			if !ok {
				return
			}
			p.publish(devs)
		}
	}
}

// Close stops accepting lists; Run returns after publishing what is pending.
func (p *Publisher) Close() {
	p.queue.Close()
}

func (p *Publisher) publish(devs []device.Record) {
	if devs == nil {
		devs = []device.Record{}
	}
	payload, err := Encode(Snapshot{
		Timestamp: time.Now().UTC(),
		Count:     len(devs),
		Devices:   devs,
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.WithError(err).Error("Failed to encode device snapshot")
		return
	}

	if err := p.sink.Publish(p.topic, payload); err != nil {
		p.failed.Add(1)
		p.logger.WithError(err).WithField("topic", p.topic).Warn("Failed to publish device snapshot")
		return
	}

	p.published.Add(1)
	p.logger.WithFields(logrus.Fields{
		"topic":   p.topic,
		"devices": len(devs),
	}).Debug("Published device snapshot")
}

// Published returns how many snapshots reached the sink.
func (p *Publisher) Published() int64 { return p.published.Load() }

// Failed returns how many snapshots could not be delivered.
func (p *Publisher) Failed() int64 { return p.failed.Load() }

// Encode renders a snapshot as JSON.
func Encode(s Snapshot) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return payload, nil
}
