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

// Package pps implements a pulse-per-second monitor for a single
// serial-attached GNSS receiver: it correlates hardware timing-pulse edges
// with the last known in-band GPS fix time and publishes the resulting
// (true UTC instant, host clock instant) pair to time-distribution
// consumers.
package pps

import (
	"sync"

	"github.com/ItWillBeSkrskr/gpsd/timespec"
)

// Polarity identifies which transition of a monitored line an edge
// represents. Assert = inactive->active.
type Polarity int

// Polarity values. Clear is used as array index 0, Assert as index 1,
// matching pulse[2]/kpps_pulse[2] in the source design.
const (
	Clear Polarity = iota
	Assert
)

// Other returns the opposite polarity.
func (p Polarity) Other() Polarity {
	if p == Assert {
		return Clear
	}
	return Assert
}

func (p Polarity) String() string {
	if p == Assert {
		return "assert"
	}
	return "clear"
}

// LogLevel mirrors the abstract log levels a MonitorContext's Log hook must
// accept.
type LogLevel int

// Log levels, ordered least to most verbose.
const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelProgress
	LevelRaw
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INF"
	case LevelProgress:
		return "PROG"
	case LevelRaw:
		return "RAW"
	default:
		return "UNKNOWN"
	}
}

// LogFunc is the monitor's log hook. It must be thread-safe and must not
// block the hot path.
type LogFunc func(level LogLevel, format string, args ...any)

func nopLog(LogLevel, string, ...any) {}

// TimeDelta pairs the inferred true UTC instant of a pulse with the host
// realtime-clock reading taken at capture. Real minus Clock is the
// instantaneous offset exposed to consumers.
type TimeDelta struct {
	Real  timespec.T
	Clock timespec.T
}

// Hooks are the capability set a caller plugs into a MonitorContext. A nil
// Report AND a nil Publish together are the termination signal (see
// Deactivate); either one may independently be left nil to mean "no
// reporting" / "no publishing" without stopping the worker. A nil Wrap is
// skipped.
type Hooks struct {
	Log     LogFunc
	Report  func(TimeDelta) string
	Publish func(TimeDelta)
	Wrap    func()
}

// MonitorContext is the state shared, read-mostly, between a device's PPS
// monitor worker and the rest of the daemon (typically the serial line
// reader that feeds StashFixtime, and consumers that poll LastPPS). Unlike
// the source this generalizes (a single process-wide mutex guarding every
// device), each MonitorContext carries its own mutex, removing false
// sharing across unrelated devices.
type MonitorContext struct {
	// DeviceFD is the open, already-configured serial descriptor. It must
	// refer to a terminal. Ownership (including closing it to cancel a
	// blocked edge wait, see the Monitor type's doc) stays with the caller.
	DeviceFD int
	// DeviceName is the path used for kernel PPS device discovery and logs.
	DeviceName string

	mu          sync.Mutex
	fixinReal   timespec.T
	fixinClock  timespec.T
	ppsoutLast  TimeDelta
	ppsoutCount uint64
	hooks       Hooks
}

// NewMonitorContext builds a MonitorContext for an already-open tty.
func NewMonitorContext(fd int, deviceName string, hooks Hooks) *MonitorContext {
	if hooks.Log == nil {
		hooks.Log = nopLog
	}
	return &MonitorContext{DeviceFD: fd, DeviceName: deviceName, hooks: hooks}
}

func (c *MonitorContext) log(level LogLevel, format string, args ...any) {
	c.mu.Lock()
	fn := c.hooks.Log
	c.mu.Unlock()
	if fn == nil {
		fn = nopLog
	}
	fn(level, format, args...)
}

// snapshotHooks returns a copy of the current hook set under the mutex.
func (c *MonitorContext) snapshotHooks() Hooks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hooks
}

// StashFixtime records the most recent in-band GPS fix: real is the fix's
// UTC instant, clock is the host clock reading at the time the fix arrived.
// Safe to call from the serial line reader's own goroutine.
func (c *MonitorContext) StashFixtime(real, clock timespec.T) {
	c.mu.Lock()
	c.fixinReal = real
	c.fixinClock = clock
	c.mu.Unlock()
}

func (c *MonitorContext) fixtime() (real, clock timespec.T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fixinReal, c.fixinClock
}

// LastPPS copies the most recently published TimeDelta into *out (if out is
// non-nil) and returns the monotonically non-decreasing publication count.
// Consumers detect a missing pulse as a non-advancing count; there is no
// blocking error channel.
func (c *MonitorContext) LastPPS(out *TimeDelta) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if out != nil {
		*out = c.ppsoutLast
	}
	return c.ppsoutCount
}

func (c *MonitorContext) recordPublication(delta TimeDelta) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ppsoutLast = delta
	c.ppsoutCount++
	return c.ppsoutCount
}

// Deactivate clears the Report and Publish hooks. The worker observes this
// at the top of its next loop iteration and exits, running Wrap (if set)
// and tearing down its capture backends. It does not forcibly interrupt an
// in-progress edge wait — see the Monitor type's documentation for the
// close-to-cancel policy that does.
func Deactivate(ctx *MonitorContext) {
	ctx.mu.Lock()
	ctx.hooks.Report = nil
	ctx.hooks.Publish = nil
	ctx.mu.Unlock()
}
