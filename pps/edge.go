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

// WaitResult is what an EdgeWaiter produces for one wakeup: the fix-time
// snapshot copied out under the MonitorContext's mutex immediately after
// the wait returned (so the correlator sees the freshest possible fix),
// the host-clock timestamp taken right after that, and the raw modem-line
// bitmap.
type WaitResult struct {
	FixinReal  timespec.T
	FixinClock timespec.T
	ClockTS    timespec.T
	State      uint32
}

// EdgeWaiter is the user-space edge source: it blocks until a monitored
// modem-control line changes, then reports the new state. Implementations
// must read ctx's fix-time fields under its mutex before doing anything
// else, to keep the latency between "line changed" and "fix snapshot
// taken" as small as possible.
type EdgeWaiter interface {
	Wait(ctx *MonitorContext) (WaitResult, error)
	Close() error
}

// KernelFetcher is the optional kernel (RFC2783) edge source. A PPS-capable
// line discipline reports hardware-timestamped assert/clear edges directly;
// when available these timestamps are more accurate than the user-space
// ones and are preferred whenever their own cycle looks sane.
//
// Fetch must be safe to call on every platform, including ones with no
// kernel PPS support at all: such implementations return
// (zero, Clear, false, ErrUnsupported).
type KernelFetcher interface {
	Fetch(nonBlocking bool) (ts timespec.T, edge Polarity, ok bool, err error)
	Close() error
}

// noKernelSource is the KernelFetcher used whenever kernel PPS capture is
// unavailable or unsupported, so the worker loop never needs a nil check.
type noKernelSource struct{}

func (noKernelSource) Fetch(bool) (timespec.T, Polarity, bool, error) {
	return timespec.T{}, Clear, false, ErrUnsupported
}

func (noKernelSource) Close() error { return nil }
