package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blescan/internal/device"
	"github.com/srg/blescan/internal/groutine"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Termination causes recorded by a Session.
var (
	ErrStopped  = errors.New("scan stopped")
	ErrDeadline = errors.New("scan duration elapsed")
)

// sessionHooks connect a Session to its owner.
type sessionHooks struct {
	// record applies a batch to the registry and returns the number of insertions.
	// Runs while the session holds its read lock.
	record func(batch []device.Record) int
	// changed runs after a batch with insertions, outside the session lock.
	changed func()
	// stopped runs exactly once, after the terminal transition.
	stopped func(*Session)
}

// Session is one bounded discovery run.
//
// A Session moves Idle -> Scanning -> Stopped. The transition to Stopped is
// taken by whichever comes first of Stop, the duration timer, or the
// platform scan ending; only that caller cancels the platform scan and runs
// the stopped hook.
type Session struct {
	id       string
	duration time.Duration
	allowDup bool
	filter   Filter
	scanner  device.Scanner
	pump     *pump
	hooks    sessionHooks
	logger   *logrus.Entry

	// mu orders the terminal transition against in-flight registry updates.
	mu        sync.RWMutex
	state     atomic.Int32
	startedAt time.Time
	deadline  time.Time
	timer     *time.Timer
	cancel    context.CancelCauseFunc
	cause     error

	err     error
	done    chan struct{}
	stopped chan struct{}
}

func newSession(id string, scanner device.Scanner, opts Options, hooks sessionHooks, logger *logrus.Logger) *Session {
	return &Session{
		id:       id,
		duration: opts.Duration,
		allowDup: opts.AllowDuplicates,
		filter:   opts.Filter,
		scanner:  scanner,
		pump:     newPump(opts.BufferSize),
		hooks:    hooks,
		logger:   logger.WithField("session", id),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// start launches the platform scan. Called once, by the Coordinator.
func (s *Session) start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancelCause(parent)
	s.cancel = cancel
	s.startedAt = time.Now()
	if s.duration > 0 {
		s.deadline = s.startedAt.Add(s.duration)
		s.timer = time.AfterFunc(s.duration, func() { s.terminate(ErrDeadline) })
	}
	s.state.Store(int32(StateScanning))

	s.logger.WithField("duration", s.duration).Info("Starting BLE scan...")

	groutine.Go(ctx, "scan-drain", func(ctx context.Context) {
		s.pump.run(ctx, s.process)
	}, "session", s.id)
	groutine.Go(ctx, "scan", func(ctx context.Context) {
		err := s.scanner.Scan(ctx, s.allowDup, s.handleAdvertisement)
		s.finish(ctx, err)
	}, "session", s.id)
}

// handleAdvertisement is the platform callback; it runs on the platform's goroutine.
func (s *Session) handleAdvertisement(adv device.Advertisement) {
	if s.State() != StateScanning {
		return
	}
	if adv.Addr() == "" || !s.filter.Include(adv) {
		return
	}
	if err := s.pump.push(device.NewRecord(adv)); err != nil {
		s.logger.WithError(err).Warn("Dropped advertisement")
	}
}

// process applies a drained batch while the session is still scanning.
func (s *Session) process(batch []device.Record) {
	s.mu.RLock()
	if s.State() != StateScanning {
		s.mu.RUnlock()
		return
	}
	inserted := s.hooks.record(batch)
	s.mu.RUnlock()

	if inserted > 0 {
		s.hooks.changed()
	}
}

// finish runs when the platform scan returned, i.e. its handle is released.
func (s *Session) finish(ctx context.Context, err error) {
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.err = fmt.Errorf("%w: %w", device.ErrScanFailed, err)
		s.logger.WithError(err).Error("BLE scan failed")
		s.terminate(s.err)
	} else if cause := context.Cause(ctx); cause != nil {
		s.terminate(cause)
	} else {
		s.terminate(ErrStopped)
	}

	<-s.stopped
	s.logger.WithField("overwritten", s.pump.Overwritten()).Debug("Platform scan released")
	close(s.done)
}

// terminate performs the Scanning -> Stopped transition. Reports whether this call won.
func (s *Session) terminate(cause error) bool {
	s.mu.Lock()
	if !s.state.CompareAndSwap(int32(StateScanning), int32(StateStopped)) {
		s.mu.Unlock()
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cause = cause
	s.mu.Unlock()

	s.cancel(cause)

	s.logger.WithField("cause", cause).Info("BLE scan completed")
	if s.hooks.stopped != nil {
		s.hooks.stopped(s)
	}
	close(s.stopped)
	return true
}

// Stop ends the session. Safe to call any number of times and from any goroutine.
func (s *Session) Stop() {
	s.terminate(ErrStopped)
}

// Wait blocks until the platform scan has been released or ctx is done.
// Returns the platform failure, if any; a stop or timeout yields nil.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the platform scan handle has been released and the
// stop notification completed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stopped is closed once the terminal transition and its notification completed.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

// StartedAt returns when the session started scanning.
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Deadline returns when the session stops itself; zero for unbounded sessions.
func (s *Session) Deadline() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deadline
}

// Cause returns why the session stopped, or nil while it is running.
func (s *Session) Cause() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cause
}
