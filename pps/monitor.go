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
	"time"

	"github.com/ItWillBeSkrskr/gpsd/timespec"
	"golang.org/x/term"
)

// Monitor owns one device's edge sources and runs its capture loop for the
// lifetime of a single Activate/Deactivate cycle.
//
// Cancellation: the loop checks, at the top of every iteration, whether
// both the Report and Publish hooks are nil, and exits if so (see
// Deactivate). That check cannot interrupt an edge wait already in
// progress: EdgeWaiter.Wait may block in a blocking ioctl for an unbounded
// time if the line never toggles again. The caller is expected to close
// the underlying device descriptor to force that ioctl to return an error,
// which the loop treats as loop-fatal and exits on. This mirrors the
// source design's documented limitation rather than hiding it behind a
// busy-poll.
type Monitor struct {
	ctx    *MonitorContext
	waiter EdgeWaiter
	kernel KernelFetcher
	state  pulseState
	done   chan struct{}
}

// Activate opens the device's capture backends and starts its worker
// goroutine. It returns a *Error with ClassSetupFatal if ctx.DeviceFD is
// not a tty (the one failure that will never resolve itself), and a
// ClassSetupTransient error is logged (not returned) for a kernel PPS
// backend that isn't ready yet — the monitor still runs on the user-space
// waiter alone in that case.
func Activate(ctx *MonitorContext) (*Monitor, error) {
	if !term.IsTerminal(ctx.DeviceFD) {
		return nil, newError(ClassSetupFatal, "device descriptor is not a tty", ErrNotATTY)
	}

	kernel, err := newKernelSource(ctx)
	if err != nil {
		ctx.log(LevelWarn, "kernel pps unavailable on %s, falling back to user-space timestamps only: %v", ctx.DeviceName, err)
		kernel = noKernelSource{}
	}

	m := newMonitor(ctx, newLineWaiter(ctx.DeviceFD), kernel)
	go m.run()
	return m, nil
}

// newMonitor builds a Monitor around caller-supplied edge sources, used
// directly by tests to avoid touching real devices.
func newMonitor(ctx *MonitorContext, waiter EdgeWaiter, kernel KernelFetcher) *Monitor {
	if kernel == nil {
		kernel = noKernelSource{}
	}
	return &Monitor{ctx: ctx, waiter: waiter, kernel: kernel, done: make(chan struct{})}
}

// Done is closed once the worker goroutine has returned.
func (m *Monitor) Done() <-chan struct{} { return m.done }

func (m *Monitor) run() {
	defer close(m.done)
	defer m.kernel.Close()
	defer m.waiter.Close()
	defer func() {
		hooks := m.ctx.snapshotHooks()
		if hooks.Wrap != nil {
			hooks.Wrap()
		}
	}()

	for {
		hooks := m.ctx.snapshotHooks()
		if hooks.Report == nil && hooks.Publish == nil {
			return
		}

		wr, err := m.waiter.Wait(m.ctx)
		if err != nil {
			hooks.Log(LevelError, "edge wait failed on %s: %v", m.ctx.DeviceName, err)
			return
		}

		edge := Clear
		if m.state.haveState && wr.State > m.state.stateLast {
			edge = Assert
		} else if !m.state.haveState && wr.State != 0 {
			edge = Assert
		}

		outcome := m.state.classify(wr.ClockTS, edge, wr.State)
		if outcome.Cooldown {
			hooks.Log(LevelWarn, "%s: %s, cooling down for %ds", m.ctx.DeviceName, outcome.Reason, stuckCooldownSeconds)
			time.Sleep(stuckCooldownSeconds * time.Second)
			continue
		}
		if outcome.Skip {
			hooks.Log(LevelRaw, "%s: %s", m.ctx.DeviceName, outcome.Reason)
			continue
		}
		if !outcome.Accept {
			hooks.Log(LevelRaw, "%s: rejected edge: %s", m.ctx.DeviceName, outcome.Reason)
			continue
		}

		chosenClock := wr.ClockTS
		if kts, kedge, ok, kerr := m.kernel.Fetch(true); kerr == nil && ok {
			kCycleUS := timespec.DiffUS(kts, m.state.kpps[kedge])
			m.state.kpps[kedge] = kts
			if classifyKernelCycle(kCycleUS) {
				chosenClock = kts
			}
		} else if kerr != nil && !errors.Is(kerr, ErrUnsupported) {
			hooks.Log(LevelWarn, "%s: kernel pps fetch failed, using user-space timestamp: %v", m.ctx.DeviceName, kerr)
		}

		delta, cerr := m.correlate(wr, chosenClock, outcome.Label == labelFiveHz)
		if cerr != nil {
			hooks.Log(LevelRaw, "%s: %s", m.ctx.DeviceName, cerr.Reason)
			continue
		}

		tag := "no report hook"
		if hooks.Report != nil {
			tag = hooks.Report(delta)
		}
		if hooks.Publish != nil {
			hooks.Publish(delta)
		}
		count := m.ctx.recordPublication(delta)
		hooks.Log(LevelProgress, "%s: published pps #%d at %s (%s)", m.ctx.DeviceName, count, delta.Real, tag)
	}
}

// correlate turns a chosen clock timestamp into a published TimeDelta by
// pairing it with the most recent stashed fix. fiveHz pulses are classified
// (so callers observe them via the log and future metrics) but never
// published: a 5 Hz pulse's sub-second phase relative to the top of the
// UTC second is not recoverable from the data this package has, so
// publishing one would silently mislabel a fifth-of-a-second edge as the
// top of the second.
func (m *Monitor) correlate(wr WaitResult, chosenClock timespec.T, fiveHz bool) (TimeDelta, *Error) {
	if fiveHz {
		return TimeDelta{}, reject("5 Hz sub-second phase cannot be inferred, not publishing")
	}

	if m.state.haveLastSecond && wr.FixinReal.Sec <= m.state.lastSecondUsed {
		return TimeDelta{}, reject("fix second already used for a publication")
	}

	delta := TimeDelta{
		Real:  timespec.T{Sec: wr.FixinReal.Sec + 1, Nsec: 0},
		Clock: chosenClock,
	}

	delay := timespec.Sub(delta.Clock, wr.FixinClock)
	if delay.Sec < 0 || (delay.Sec == 0 && delay.Nsec < 0) {
		return TimeDelta{}, reject("system clock is behind the stashed fix time")
	}
	if delay.Sec >= 2 || (delay.Sec == 1 && delay.Nsec >= 100_000_000) {
		return TimeDelta{}, reject("pulse arrived too long after the stashed fix, stale correlation")
	}

	m.state.lastSecondUsed = wr.FixinReal.Sec
	m.state.haveLastSecond = true
	return delta, nil
}
