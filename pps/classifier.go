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

import "github.com/ItWillBeSkrskr/gpsd/timespec"

// Pulse shapes this package can recognize. A label only means something
// when Outcome.Accept is true.
const (
	labelFiveHz        = "5hz"
	labelInvisible     = "invisible-pulse"
	labelOneHzSquare   = "1hz-square"
	labelOneHzLeading  = "1hz-leading-edge"
	labelHalfHzSquare  = "0.5hz-square"
)

// unchangedLimit is how many consecutive wakeups with no state change are
// tolerated before the line is declared stuck and the worker cools down.
const unchangedLimit = 10

// stuckCooldownSeconds is how long the worker sleeps after declaring a line
// stuck.
const stuckCooldownSeconds = 10

// Outcome is the result of classifying one edge.
type Outcome struct {
	Accept     bool
	Label      string
	Reason     string
	CycleUS    int64
	DurationUS int64
	// Skip is true when no classification happened at all this wakeup
	// (unchanged state outside the invisible-pulse window). It is also set
	// together with Cooldown.
	Skip bool
	// Cooldown is true when this wakeup crossed the stuck-line threshold;
	// the caller must sleep before waiting on the line again.
	Cooldown bool
}

// pulseState is the worker-private memory the classifier needs across
// wakeups: the last seen line bitmap, the per-polarity timestamp of the
// previous edge, and the unchanged-wakeup streak.
type pulseState struct {
	stateLast      uint32
	haveState      bool
	unchangedCount int
	pulse          [2]timespec.T
	kpps           [2]timespec.T
	lastSecondUsed int64
	haveLastSecond bool
}

// classify consumes one wakeup: now is the host-clock timestamp taken
// immediately after the wait returned, edge is the polarity implied by
// state vs. the previous state (state > stateLast => Assert), and state is
// the raw line bitmap.
func (p *pulseState) classify(now timespec.T, edge Polarity, state uint32) Outcome {
	if p.haveState && state == p.stateLast {
		cycleUS := timespec.DiffUS(now, p.pulse[edge])
		if cycleUS > 999_000 && cycleUS < 1_001_000 {
			// The line toggled invisibly fast between two wakeups of the
			// same apparent state (e.g. a narrow pulse we only caught on
			// one edge); treat it as a zero-duration pulse and classify
			// normally instead of silently dropping it.
			out := classifyPulse(cycleUS, 0, edge)
			p.pulse[edge] = now
			p.unchangedCount = 0
			return out
		}
		p.unchangedCount++
		if p.unchangedCount >= unchangedLimit {
			p.unchangedCount = 1
			return Outcome{Skip: true, Cooldown: true, Reason: "line stuck for 10 consecutive wakeups"}
		}
		return Outcome{Skip: true, Reason: "unchanged line state, cycle outside expected window"}
	}

	cycleUS := timespec.DiffUS(now, p.pulse[edge])
	durationUS := timespec.DiffUS(now, p.pulse[edge.Other()])
	out := classifyPulse(cycleUS, durationUS, edge)
	p.pulse[edge] = now
	p.stateLast = state
	p.haveState = true
	p.unchangedCount = 0
	return out
}

// classifyPulse applies the boundary table: cycle is the time since the
// last edge of the SAME polarity, duration is the time since the last edge
// of the OPPOSITE polarity (the live pulse width). All windows are
// strictly-less-than on their upper bound, matching the source's
// "< upper_bound" comparisons throughout.
func classifyPulse(cycleUS, durationUS int64, edge Polarity) Outcome {
	base := Outcome{CycleUS: cycleUS, DurationUS: durationUS}

	switch {
	case cycleUS < 0:
		base.Reason = "negative cycle: host clock went backwards"
		return base
	case cycleUS < 199_000:
		base.Reason = "cycle too short to be a recognized pulse rate"
		return base
	case cycleUS < 201_000:
		if durationUS < 100_000 {
			base.Accept = true
			base.Label = labelFiveHz
			return base
		}
		base.Reason = "5 Hz candidate with out-of-range duty cycle"
		return base
	case cycleUS < 900_000:
		base.Reason = "cycle falls between 5 Hz and 1 Hz bands"
		return base
	case cycleUS < 1_100_000:
		switch {
		case durationUS == 0:
			base.Accept = true
			base.Label = labelInvisible
			return base
		case durationUS < 499_000:
			base.Reason = "1 Hz candidate: trailing-edge duration too short"
			return base
		case durationUS < 501_000:
			if edge == Assert {
				base.Accept = true
				base.Label = labelOneHzSquare
				return base
			}
			base.Reason = "1 Hz square candidate seen on the wrong edge"
			return base
		default:
			base.Accept = true
			base.Label = labelOneHzLeading
			return base
		}
	case cycleUS < 1_999_000:
		base.Reason = "cycle falls between 1 Hz and 0.5 Hz bands"
		return base
	case cycleUS < 2_001_000:
		if durationUS >= 999_000 && durationUS < 1_001_000 {
			base.Accept = true
			base.Label = labelHalfHzSquare
			return base
		}
		base.Reason = "0.5 Hz candidate with out-of-range duty cycle"
		return base
	default:
		base.Reason = "cycle too long to be a recognized pulse rate"
		return base
	}
}

// classifyKernelCycle reports whether a kernel-reported PPS_FETCH cycle
// (time since the previous kernel timestamp of the same polarity, where
// each fetch yields the newer of the assert/clear timestamps) looks
// like a genuine 1 Hz cycle. The window is narrower than the user-space
// classifier's because the kernel timestamp has no debounce noise to
// account for.
func classifyKernelCycle(cycleUS int64) bool {
	return cycleUS > 990_000 && cycleUS < 1_010_000
}
