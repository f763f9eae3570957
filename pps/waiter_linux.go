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

//go:build linux

package pps

import (
	"github.com/ItWillBeSkrskr/gpsd/timespec"

	"golang.org/x/sys/unix"
)

// rs232Mask is the set of modem-control lines a GNSS receiver's PPS output
// is conventionally wired to: Carrier-Detect, Ring-Indicator and
// Clear-To-Send (or whichever synonym the wiring actually uses; all three
// are watched so any of them toggling wakes the waiter).
const rs232Mask = unix.TIOCM_CAR | unix.TIOCM_RNG | unix.TIOCM_CTS

// lineWaiter is the user-space EdgeWaiter: it blocks in TIOCMIWAIT for any
// change on rs232Mask, then reads back the realtime clock and the current
// line state with TIOCMGET.
type lineWaiter struct {
	fd int
}

func newLineWaiter(fd int) EdgeWaiter {
	return &lineWaiter{fd: fd}
}

func (w *lineWaiter) Wait(ctx *MonitorContext) (WaitResult, error) {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(w.fd), uintptr(unix.TIOCMIWAIT), uintptr(rs232Mask))
	if errno != 0 {
		return WaitResult{}, newError(ClassLoopFatal, "TIOCMIWAIT", errno)
	}

	// Copy the shared fix-time snapshot out first: this is the
	// latency-sensitive window the correlator's accuracy depends on.
	fixinReal, fixinClock := ctx.fixtime()

	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return WaitResult{}, newError(ClassLoopFatal, "clock_gettime", err)
	}
	clockTS := timespec.T{Sec: int64(ts.Sec), Nsec: int32(ts.Nsec)} //#nosec G115

	bits, err := unix.IoctlGetInt(w.fd, unix.TIOCMGET)
	if err != nil {
		return WaitResult{}, newError(ClassLoopFatal, "TIOCMGET", err)
	}

	return WaitResult{
		FixinReal:  fixinReal,
		FixinClock: fixinClock,
		ClockTS:    clockTS,
		State:      uint32(bits) & uint32(rs232Mask), //#nosec G115
	}, nil
}

// Close is a no-op: the underlying descriptor belongs to the caller, not
// the waiter. Closing it is how a caller forces a blocked TIOCMIWAIT to
// return an error and end the worker loop.
func (w *lineWaiter) Close() error { return nil }
