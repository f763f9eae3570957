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

// Package ntpshm implements the ntpd SHM reference clock protocol
// (ntpd/refclock_shm.c, driver 28: http://doc.ntp.org/current-stable/drivers/driver28.html),
// both as a reader (for diagnostics) and a writer (the default PPS publish
// hook: a GPS/PPS source feeds a unit's SHM segment, ntpd consumes it).
package ntpshm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
	"unsafe"

	"github.com/ItWillBeSkrskr/gpsd/hostendian"

	"golang.org/x/sys/unix"
)

// SHMKEY0 is the key of the first ntpd SHM segment (unit 0). ntpd looks up
// unit N at SHMKEY0+N.
const SHMKEY0 = 0x4e545030

// IPCCREAT requests segment creation if the key doesn't exist yet.
// https://man7.org/linux/man-pages/man0/sys_ipc.h.0p.html
const IPCCREAT = 00001000

// Size is the size in bytes of the NTPSHM struct.
const Size = 96

// Leap indicator values understood by ntpd's SHM driver.
const (
	LeapNoWarning   int32 = 0
	LeapAddSecond   int32 = 1
	LeapDelSecond   int32 = 2
	LeapNotSynced   int32 = 3
)

// NTPSHM is the layout of the SHM segment from ntp (ntpd/refclock_shm.c).
type NTPSHM struct {
	Mode                 int32
	Count                int32
	ClockTimeStampSec    int64
	ClockTimeStampUSec   int32
	_                    int32 // C alignment padding before the next time_t
	ReceiveTimeStampSec  int64
	ReceiveTimeStampUSec int32
	Leap                 int32
	Precision            int32
	Nsamples             int32
	Valid                int32
	ClockTimeStampNSec   int32
	ReceiveTimeStampNSec int32
	Dummy                [8]int32
	_                    int32 // C tail padding, making the struct Size bytes
}

// ClockTimeStamp returns the clock timestamp field as a time.Time.
func (n *NTPSHM) ClockTimeStamp() time.Time {
	return time.Unix(n.ClockTimeStampSec, int64(n.ClockTimeStampNSec))
}

// ReceiveTimeStamp returns the receive timestamp field as a time.Time.
func (n *NTPSHM) ReceiveTimeStamp() time.Time {
	return time.Unix(n.ReceiveTimeStampSec, int64(n.ReceiveTimeStampNSec))
}

func create(unit int) (uintptr, error) {
	key := uintptr(SHMKEY0 + unit)
	shmID, _, errno := unix.Syscall(unix.SYS_SHMGET, key, uintptr(Size), uintptr(IPCCREAT|0600))
	if errno != 0 {
		return 0, fmt.Errorf("failed to get shm unit %d: %s", unit, unix.ErrnoName(errno))
	}
	return shmID, nil
}

func attach(id uintptr) (uintptr, error) {
	shmptr, _, errno := unix.Syscall(unix.SYS_SHMAT, id, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("failed to attach to shm: %s", unix.ErrnoName(errno))
	}
	return shmptr, nil
}

func ptrToBytes(shmptr uintptr) []byte {
	var sl = struct {
		addr uintptr
		len  int
		cap  int
	}{shmptr, Size, Size}
	return *(*[]byte)(unsafe.Pointer(&sl))
}

func ptrToNTPSHM(shmptr uintptr) (*NTPSHM, error) {
	b := ptrToBytes(shmptr)
	s := &NTPSHM{}
	r := bytes.NewReader(b)
	err := binary.Read(r, hostendian.Order, s)
	return s, err
}

func ntpshmToBytes(s *NTPSHM) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, hostendian.Order, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read reads the SHM segment for the given unit.
func Read(unit int) (*NTPSHM, error) {
	id, err := create(unit)
	if err != nil {
		return nil, err
	}
	ptr, err := attach(id)
	if err != nil {
		return nil, err
	}
	return ptrToNTPSHM(ptr)
}

// Writer publishes TimeDelta-shaped samples into an ntpd SHM segment. It
// keeps the segment attached for the lifetime of the process, mirroring how
// gpsd's shared-memory driver holds the segment open rather than
// attach/detach per sample.
type Writer struct {
	unit    int
	shmptr  uintptr
	attached bool
}

// NewWriter creates (or attaches to an existing) SHM segment for unit.
func NewWriter(unit int) (*Writer, error) {
	id, err := create(unit)
	if err != nil {
		return nil, err
	}
	ptr, err := attach(id)
	if err != nil {
		return nil, err
	}
	return &Writer{unit: unit, shmptr: ptr, attached: true}, nil
}

// Write stores clockTime/receiveTime into the segment and bumps Count,
// following the handshake ntpd's refclock_shm.c expects: Valid is cleared
// while we write, then set once the new sample is fully in place, and Count
// is incremented last so a racing reader either sees the old, fully-valid
// sample or the new one, never a torn write.
func (w *Writer) Write(clockTime, receiveTime time.Time, precision int32, leap int32) error {
	if !w.attached {
		return fmt.Errorf("ntpshm: writer for unit %d is closed", w.unit)
	}
	b := ptrToBytes(w.shmptr)
	cur, err := ptrToNTPSHM(w.shmptr)
	if err != nil {
		return err
	}
	cur.Valid = 0
	sample := &NTPSHM{
		Mode:                 1,
		Count:                cur.Count,
		ClockTimeStampSec:    clockTime.Unix(),
		ClockTimeStampNSec:   int32(clockTime.Nanosecond()), //#nosec G115
		ClockTimeStampUSec:   int32(clockTime.Nanosecond() / 1000),
		ReceiveTimeStampSec:  receiveTime.Unix(),
		ReceiveTimeStampNSec: int32(receiveTime.Nanosecond()), //#nosec G115
		ReceiveTimeStampUSec: int32(receiveTime.Nanosecond() / 1000),
		Leap:                 leap,
		Precision:            precision,
		Nsamples:             3,
		Valid:                0,
	}
	valid := *sample
	valid.Valid = 1
	bumped := valid
	bumped.Count++
	// Each store differs from the previous one in a single handshake step:
	// Valid cleared, new sample in place, Valid set, Count bumped.
	for _, s := range []*NTPSHM{cur, sample, &valid, &bumped} {
		out, err := ntpshmToBytes(s)
		if err != nil {
			return err
		}
		copy(b, out)
	}
	return nil
}

// Close detaches the segment.
func (w *Writer) Close() error {
	if !w.attached {
		return nil
	}
	w.attached = false
	_, _, errno := unix.Syscall(unix.SYS_SHMDT, w.shmptr, 0, 0)
	if errno != 0 {
		return fmt.Errorf("failed to detach shm: %s", unix.ErrnoName(errno))
	}
	return nil
}
