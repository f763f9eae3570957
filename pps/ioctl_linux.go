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

import "unsafe"

// The kernel PPS API (linux/timepps.h) has no binding in golang.org/x/sys,
// unlike the more common tty ioctls. We derive the ioctl request codes the
// same way the kernel headers do (asm-generic/ioctl.h's _IOR/_IOW/_IOWR),
// rather than hardcoding the resulting numbers. As in those headers, each
// request's size field is the size of a pointer to its argument, not the
// size of the argument struct itself.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr uintptr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func ior(typ, nr byte, size uintptr) uintptr {
	return ioc(iocRead, uintptr(typ), uintptr(nr), size)
}

func iow(typ, nr byte, size uintptr) uintptr {
	return ioc(iocWrite, uintptr(typ), uintptr(nr), size)
}

func iowr(typ, nr byte, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, uintptr(typ), uintptr(nr), size)
}

// ppsIOCType is the ioctl type byte ('p') the kernel PPS API registers
// under.
const ppsIOCType = 'p'

// pps_ktime, from linux/timepps.h.
type ppsKTime struct {
	Sec   int64
	Nsec  int32
	Flags uint32
}

// pps_info, from linux/timepps.h.
type ppsInfo struct {
	AssertSequence uint32
	ClearSequence  uint32
	AssertTU       ppsKTime
	ClearTU        ppsKTime
	CurrentMode    int32
	_              int32 // pad to the 8-byte alignment pps_ktime requires
}

// pps_fdata, from linux/timepps.h; the argument to PPS_FETCH.
type ppsFData struct {
	Info    ppsInfo
	Timeout ppsKTime
}

// pps_kparams, from linux/timepps.h; the argument to PPS_GETPARAMS and
// PPS_SETPARAMS.
type ppsKParams struct {
	APIVersion  int32
	Mode        int32
	AssertOffTU ppsKTime
	ClearOffTU  ppsKTime
}

// PPS capture/offset mode bits, from linux/pps.h.
const (
	ppsCaptureAssert = 0x01
	ppsCaptureClear  = 0x02
	ppsCaptureBoth   = ppsCaptureAssert | ppsCaptureClear
)

var (
	ppsGetParams = ior(ppsIOCType, 0xa1, unsafe.Sizeof(&ppsKParams{}))
	ppsSetParams = iow(ppsIOCType, 0xa2, unsafe.Sizeof(&ppsKParams{}))
	ppsGetCap    = ior(ppsIOCType, 0xa3, unsafe.Sizeof(new(int32)))
	ppsFetch     = iowr(ppsIOCType, 0xa4, unsafe.Sizeof(&ppsFData{}))
)

// nPPS is the N_PPS line discipline number (include/uapi/linux/tty.h); it
// must be attached to a plain serial tty before the kernel exposes a
// /sys/class/pps node for it.
const nPPS = 18
