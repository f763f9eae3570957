/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pps

import (
	"errors"
	"sync"
	"testing"

	"github.com/ItWillBeSkrskr/gpsd/timespec"
	"github.com/stretchr/testify/require"
)

// waitStep is one scripted wakeup for fakeWaiter.
type waitStep struct {
	clockTS timespec.T
	state   uint32
}

// fakeWaiter plays back a fixed script of wakeups, then fails like a
// device that was closed out from under it, so Monitor.run terminates on
// its own without needing a goroutine or Deactivate call in these tests.
type fakeWaiter struct {
	steps []waitStep
	idx   int
}

func (f *fakeWaiter) Wait(ctx *MonitorContext) (WaitResult, error) {
	if f.idx >= len(f.steps) {
		return WaitResult{}, newError(ClassLoopFatal, "fake waiter exhausted", errors.New("eof"))
	}
	s := f.steps[f.idx]
	f.idx++
	real, clock := ctx.fixtime()
	return WaitResult{FixinReal: real, FixinClock: clock, ClockTS: s.clockTS, State: s.state}, nil
}

func (f *fakeWaiter) Close() error { return nil }

type capture struct {
	mu     sync.Mutex
	deltas []TimeDelta
}

func (c *capture) publish(d TimeDelta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas = append(c.deltas, d)
}

func (c *capture) snapshot() []TimeDelta {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TimeDelta, len(c.deltas))
	copy(out, c.deltas)
	return out
}

func newCapturingMonitor(fixinReal, fixinClock timespec.T, steps []waitStep) (*Monitor, *capture) {
	cap := &capture{}
	ctx := NewMonitorContext(-1, "/dev/test", Hooks{
		Report:  func(TimeDelta) string { return "ok" },
		Publish: cap.publish,
		Log:     func(LogLevel, string, ...any) {},
	})
	ctx.StashFixtime(fixinReal, fixinClock)
	m := newMonitor(ctx, &fakeWaiter{steps: steps}, nil)
	return m, cap
}

func TestMonitorPublishesAcceptedSquareEdge(t *testing.T) {
	m, cap := newCapturingMonitor(mkTS(1000, 0), mkTS(1001, 450_000_000), []waitStep{
		{clockTS: mkTS(1001, 500_000_000), state: 0x01},
	})
	m.state.stateLast = 0x00
	m.state.haveState = true
	m.state.pulse[Assert] = mkTS(1000, 500_000_000)
	m.state.pulse[Clear] = mkTS(1001, 0)

	m.run()

	deltas := cap.snapshot()
	require.Len(t, deltas, 1)
	require.Equal(t, mkTS(1001, 0), deltas[0].Real)
	require.Equal(t, mkTS(1001, 500_000_000), deltas[0].Clock)
}

func TestMonitorRejectsStaleFix(t *testing.T) {
	m, cap := newCapturingMonitor(mkTS(1000, 0), mkTS(990, 0), []waitStep{
		{clockTS: mkTS(1001, 500_000_000), state: 0x01},
	})
	m.state.stateLast = 0x00
	m.state.haveState = true
	m.state.pulse[Assert] = mkTS(1000, 500_000_000)
	m.state.pulse[Clear] = mkTS(1001, 0)

	m.run()

	require.Empty(t, cap.snapshot())
}

func TestMonitorDedupsAcrossWakeupsWhenFixDoesNotAdvance(t *testing.T) {
	// A 1Hz square wave: assert/clear edges half a second apart. The serial
	// reader stalls and never restashes a fresher fix, so only the first
	// of the two otherwise-valid assert edges may publish.
	m, cap := newCapturingMonitor(mkTS(1000, 0), mkTS(1001, 450_000_000), []waitStep{
		{clockTS: mkTS(1001, 500_000_000), state: 0x01}, // accepted square, assert
		{clockTS: mkTS(1002, 0), state: 0x00},           // square on clear, classifier-rejected
		{clockTS: mkTS(1002, 500_000_000), state: 0x01}, // classifier-accepted, dedup-rejected
	})
	m.state.stateLast = 0x00
	m.state.haveState = true
	m.state.pulse[Assert] = mkTS(1000, 500_000_000)
	m.state.pulse[Clear] = mkTS(1001, 0)

	m.run()

	deltas := cap.snapshot()
	require.Len(t, deltas, 1)
	require.Equal(t, mkTS(1001, 0), deltas[0].Real)
}

func TestMonitorSkipsFiveHzPublication(t *testing.T) {
	m, cap := newCapturingMonitor(mkTS(1000, 0), mkTS(1000, 0), []waitStep{
		{clockTS: mkTS(1000, 200_000_000), state: 0x01},
	})
	m.state.stateLast = 0x00
	m.state.haveState = true
	m.state.pulse[Assert] = mkTS(1000, 0)
	m.state.pulse[Clear] = mkTS(1000, 150_000_000)

	m.run()

	require.Empty(t, cap.snapshot(), "5 Hz edges must never be published")
}
