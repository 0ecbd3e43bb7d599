package scan_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/srg/blescan/internal/device"
	"github.com/srg/blescan/internal/permission"
	"github.com/srg/blescan/internal/scan"
	"github.com/srg/blescan/internal/testutils"
	"github.com/stretchr/testify/suite"
)

const waitTimeout = 2 * time.Second

type CoordinatorTestSuite struct {
	suite.Suite
	helper *testutils.TestHelper
	radio  *testutils.FakeRadio
	opts   scan.Options
}

func (s *CoordinatorTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.radio = testutils.NewFakeRadio()
	s.opts = scan.DefaultOptions()
}

func (s *CoordinatorTestSuite) newCoordinator(granted bool) *scan.Coordinator {
	return scan.NewCoordinator(s.radio, permission.Static{Granted: granted}, s.opts, s.helper.Logger)
}

// start begins a session and waits until the fake platform scan is running.
func (s *CoordinatorTestSuite) start(c *scan.Coordinator) *scan.Session {
	session, err := c.Start(context.Background())
	s.Require().NoError(err, "start MUST succeed")
	s.Require().True(s.radio.Scan.WaitStarted(waitTimeout), "platform scan MUST start")
	return session
}

func (s *CoordinatorTestSuite) emit(name, address string) {
	adv := testutils.CreateMockAdvertisement(name, address, -60).Build()
	s.Require().True(s.radio.Scan.Emit(adv), "platform scan MUST be running")
}

func (s *CoordinatorTestSuite) waitDevices(c *scan.Coordinator, n int) {
	s.helper.Eventually(func() bool { return len(c.Devices().Get()) == n },
		waitTimeout, fmt.Sprintf("expected %d devices", n))
}

// recordScanning collects every scanning notification, including the initial value.
func recordScanning(c *scan.Coordinator) func() []bool {
	var mu sync.Mutex
	var seen []bool
	c.Scanning().Subscribe(func(v bool) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v)
	})
	return func() []bool {
		mu.Lock()
		defer mu.Unlock()
		return append([]bool(nil), seen...)
	}
}

func addresses(recs []device.Record) []string {
	return lo.Map(recs, func(r device.Record, _ int) string { return r.Address })
}

func (s *CoordinatorTestSuite) TestStartWithoutPermission() {
	// GOAL: Verify a denied permission stops Start before any radio resource is touched
	//
	// TEST SCENARIO: Static authority denies → Start fails with ErrPermissionDenied → no scanner, state untouched

	c := s.newCoordinator(false)
	scanning := recordScanning(c)

	session, err := c.Start(context.Background())

	s.Require().Error(err)
	s.ErrorIs(err, device.ErrPermissionDenied)
	s.Nil(session)
	s.Nil(c.Current(), "no session MUST be active")
	s.Equal(0, s.radio.ScannerCalls(), "scanner MUST NOT be acquired")
	s.Equal(0, s.radio.Scan.Calls(), "platform scan MUST NOT start")
	s.Equal([]bool{false}, scanning(), "scanning MUST stay false")
}

func (s *CoordinatorTestSuite) TestStartWithPermanentDenial() {
	c := scan.NewCoordinator(s.radio, permission.Static{Denial: permission.DeniedPermanently}, s.opts, s.helper.Logger)

	_, err := c.Start(context.Background())

	s.ErrorIs(err, device.ErrPermissionDeniedPermanently)
	s.True(device.IsTerminal(err))
	s.Equal(0, s.radio.ScannerCalls())
}

func (s *CoordinatorTestSuite) TestStartWithUnavailableAdapter() {
	s.Run("radio disabled", func() {
		s.radio.SetEnabled(false)
		c := s.newCoordinator(true)

		_, err := c.Start(context.Background())

		s.ErrorIs(err, device.ErrAdapterUnavailable)
		s.False(c.Scanning().Get())
	})

	s.Run("unclassified scanner error is reported as adapter unavailable", func() {
		s.radio = testutils.NewFakeRadio()
		s.radio.ScannerErr = errors.New("hci0: resource busy")
		c := s.newCoordinator(true)

		_, err := c.Start(context.Background())

		s.ErrorIs(err, device.ErrAdapterUnavailable)
		s.Contains(err.Error(), "resource busy")
	})

	s.Run("absent radio keeps its kind", func() {
		s.radio = testutils.NewFakeRadio()
		s.radio.ScannerErr = fmt.Errorf("%w: no such device", device.ErrRadioAbsent)
		c := s.newCoordinator(true)

		_, err := c.Start(context.Background())

		s.ErrorIs(err, device.ErrRadioAbsent)
		s.NotErrorIs(err, device.ErrAdapterUnavailable)
	})
}

func (s *CoordinatorTestSuite) TestDeduplicationAndOrdering() {
	// GOAL: Verify repeat sightings are no-ops and the snapshot is sorted named-first
	//
	// TEST SCENARIO: A "Zed", B unnamed, C "Ann", A again → snapshot [C, A, B] → 3 insertions

	c := s.newCoordinator(true)
	session := s.start(c)
	defer c.Stop()

	s.emit("Zed", "AA:AA:AA:AA:AA:01")
	s.emit("", "BB:BB:BB:BB:BB:02")
	s.emit("Ann", "CC:CC:CC:CC:CC:03")
	s.emit("Zed renamed", "AA:AA:AA:AA:AA:01")

	s.waitDevices(c, 3)

	devices := c.Devices().Get()
	s.Equal([]string{"CC:CC:CC:CC:CC:03", "AA:AA:AA:AA:AA:01", "BB:BB:BB:BB:BB:02"}, addresses(devices))
	s.Equal("Zed", devices[1].Name, "first-seen record MUST be retained")
	s.EqualValues(3, c.Registry().Inserted())
	s.Equal(scan.StateScanning, session.State())
}

func (s *CoordinatorTestSuite) TestTimeoutStopsExactlyOnce() {
	// GOAL: Verify an unattended session stops itself after its duration
	//
	// TEST SCENARIO: Start with short duration → wait → Stopped once, scanning false once, handle released once

	s.opts.Duration = 50 * time.Millisecond
	c := s.newCoordinator(true)
	scanning := recordScanning(c)

	session := s.start(c)
	s.False(session.Deadline().IsZero())
	s.Equal(session.StartedAt().Add(s.opts.Duration), session.Deadline())

	select {
	case <-session.Done():
	case <-time.After(waitTimeout):
		s.FailNow("session MUST stop after its duration")
	}

	s.Equal(scan.StateStopped, session.State())
	s.ErrorIs(session.Cause(), scan.ErrDeadline)
	s.NoError(session.Wait(context.Background()))
	s.Equal(1, s.radio.Scan.Releases(), "platform scan MUST be released exactly once")
	s.Equal([]bool{false, true, false}, scanning())
	s.Nil(c.Current())

	session.Stop()
	c.Stop()
	s.Equal([]bool{false, true, false}, scanning(), "late stops MUST NOT notify")
	s.Equal(1, s.radio.Scan.Releases())
}

func (s *CoordinatorTestSuite) TestStopIsIdempotent() {
	c := s.newCoordinator(true)
	scanning := recordScanning(c)
	session := s.start(c)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Stop()
		}()
	}
	wg.Wait()
	c.Stop()

	s.Require().NoError(session.Wait(context.Background()))
	s.Equal(scan.StateStopped, session.State())
	s.ErrorIs(session.Cause(), scan.ErrStopped)
	s.Equal(1, s.radio.Scan.Releases())
	s.Equal([]bool{false, true, false}, scanning())
}

func (s *CoordinatorTestSuite) TestRestartStopsPreviousSession() {
	// GOAL: Verify starting again stops the active session before the new one begins
	//
	// TEST SCENARIO: Start → Start → first session stopped once → one active platform scan

	c := s.newCoordinator(true)
	scanning := recordScanning(c)

	first := s.start(c)
	second := s.start(c)
	defer c.Stop()

	s.Equal(scan.StateStopped, first.State())
	s.Equal(scan.StateScanning, second.State())
	s.NotEqual(first.ID(), second.ID())
	s.Same(second, c.Current())

	<-first.Done()
	s.Equal(2, s.radio.Scan.Calls())
	s.Equal(1, s.radio.Scan.Releases(), "only the first scan MUST be released")
	s.Equal([]bool{false, true, false, true}, scanning())
}

func (s *CoordinatorTestSuite) TestRegistryAcrossSessions() {
	s.Run("cumulative by default", func() {
		c := s.newCoordinator(true)
		s.start(c)
		s.emit("One", "00:00:00:00:00:01")
		s.waitDevices(c, 1)

		s.start(c)
		s.emit("Two", "00:00:00:00:00:02")
		s.waitDevices(c, 2)
		c.Stop()
	})

	s.Run("fresh when ClearOnStart is set", func() {
		s.radio = testutils.NewFakeRadio()
		s.opts.ClearOnStart = true
		c := s.newCoordinator(true)

		s.start(c)
		s.emit("One", "00:00:00:00:00:01")
		s.waitDevices(c, 1)

		s.start(c)
		s.Empty(c.Devices().Get(), "registry MUST be cleared when a session starts")
		s.emit("Two", "00:00:00:00:00:02")
		s.waitDevices(c, 1)
		s.Equal("00:00:00:00:00:02", c.Devices().Get()[0].Address)
		c.Stop()
	})
}

func (s *CoordinatorTestSuite) TestClearOnStartPublishesOnlyRealClears() {
	// GOAL: Verify ClearOnStart republishes the device list only when it drops devices
	//
	// TEST SCENARIO: empty registry start → initial delivery only → one device → restart → one empty list

	s.opts.ClearOnStart = true
	c := s.newCoordinator(true)

	var mu sync.Mutex
	var seen [][]device.Record
	c.Devices().Subscribe(func(devs []device.Record) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, devs)
	})
	notifications := func() [][]device.Record {
		mu.Lock()
		defer mu.Unlock()
		return append([][]device.Record(nil), seen...)
	}

	s.start(c)
	s.start(c)
	s.Len(notifications(), 1, "starting over an empty registry MUST NOT republish the device list")

	s.emit("One", "00:00:00:00:00:01")
	s.helper.Eventually(func() bool { return len(notifications()) == 2 },
		waitTimeout, "adding a device MUST publish the device list")

	s.start(c)
	got := notifications()
	s.Require().Len(got, 3, "clearing a non-empty registry MUST publish once")
	s.Empty(got[2])
	c.Stop()
}

func (s *CoordinatorTestSuite) TestFilters() {
	s.opts.Filter = scan.Filter{
		BlockList:    []string{"de:ad:be:ef:00:01"},
		ServiceUUIDs: []string{"180d"},
	}
	c := s.newCoordinator(true)
	s.start(c)
	defer c.Stop()

	blocked := testutils.NewAdvertisementBuilder().WithAddress("DE:AD:BE:EF:00:01").WithServices("180D").Build()
	noService := testutils.NewAdvertisementBuilder().WithAddress("00:00:00:00:00:02").WithServices("180F").Build()
	heartRate := testutils.NewAdvertisementBuilder().WithAddress("00:00:00:00:00:03").
		WithServices("0000180d-0000-1000-8000-00805f9b34fb").Build()

	s.radio.Scan.Emit(blocked)
	s.radio.Scan.Emit(noService)
	s.radio.Scan.Emit(heartRate)

	s.waitDevices(c, 1)
	s.Equal([]string{"00:00:00:00:00:03"}, addresses(c.Devices().Get()))
}

func (s *CoordinatorTestSuite) TestPlatformFailure() {
	// GOAL: Verify a platform failure ends the session and is reported by Wait
	//
	// TEST SCENARIO: Scan fails → Stopped → Wait returns ErrScanFailed → scanning false

	c := s.newCoordinator(true)
	scanning := recordScanning(c)
	session := s.start(c)

	platformErr := errors.New("hci0: controller reset")
	s.Require().True(s.radio.Scan.Fail(platformErr))

	err := session.Wait(context.Background())
	s.ErrorIs(err, device.ErrScanFailed)
	s.ErrorIs(err, platformErr)
	s.Equal(scan.StateStopped, session.State())
	s.Equal([]bool{false, true, false}, scanning())
}

func (s *CoordinatorTestSuite) TestStartFailureOfPlatformScan() {
	s.radio.Scan.StartErr = fmt.Errorf("%w: powered off", device.ErrAdapterUnavailable)
	c := s.newCoordinator(true)

	session, err := c.Start(context.Background())
	s.Require().NoError(err)

	err = session.Wait(context.Background())
	s.ErrorIs(err, device.ErrScanFailed)
	s.ErrorIs(err, device.ErrAdapterUnavailable)
	<-session.Stopped()
	s.False(c.Scanning().Get())
}

func (s *CoordinatorTestSuite) TestNoEventsAfterStop() {
	c := s.newCoordinator(true)
	session := s.start(c)
	s.emit("Kept", "00:00:00:00:00:01")
	s.waitDevices(c, 1)

	c.Stop()
	<-session.Done()

	s.False(s.radio.Scan.Emit(testutils.CreateMockAdvertisement("Late", "00:00:00:00:00:02", -70).Build()),
		"handler MUST NOT be reachable after release")
	s.Equal(1, c.Registry().Len())
}

func (s *CoordinatorTestSuite) TestContextCancellationStopsSession() {
	c := s.newCoordinator(true)
	ctx, cancel := context.WithCancel(context.Background())

	session, err := c.Start(ctx)
	s.Require().NoError(err)
	s.Require().True(s.radio.Scan.WaitStarted(waitTimeout))

	cancel()

	<-session.Stopped()
	s.NoError(session.Wait(context.Background()))
	s.Equal(scan.StateStopped, session.State())
	s.False(c.Scanning().Get())
}

func (s *CoordinatorTestSuite) TestConcurrentSightings() {
	// GOAL: Verify parallel repeated sightings never produce duplicate records
	//
	// TEST SCENARIO: 8 goroutines emit the same 20 addresses → 20 devices → 20 insertions

	s.opts.BufferSize = 4096
	c := s.newCoordinator(true)
	s.start(c)
	defer c.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.radio.Scan.Emit(testutils.CreateMockAdvertisement("", fmt.Sprintf("00:00:00:00:00:%02X", i), -50).Build())
			}
		}()
	}
	wg.Wait()

	s.waitDevices(c, 20)
	s.EqualValues(20, c.Registry().Inserted())
}

func TestCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}
