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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/ItWillBeSkrskr/gpsd/timespec"

	"golang.org/x/sys/unix"
)

const (
	kernelPPSDevicePrefix = "/dev/pps"
	sysfsPPSClassDir      = "/sys/class/pps"
)

// KernelSource is the RFC2783 kernel edge source: a /dev/ppsN node attached,
// directly or via the N_PPS line discipline, to the same hardware line the
// user-space waiter polls through modem-control bits. Its timestamps come
// from the kernel's capture interrupt handler and are preferred over the
// user-space ones whenever their cycle looks sane.
type KernelSource struct {
	fd int
}

// newKernelSource resolves and opens the kernel PPS device bound to
// ctx.DeviceName, attaching the N_PPS line discipline first if DeviceName
// doesn't already name a /dev/ppsN node directly.
func newKernelSource(ctx *MonitorContext) (KernelFetcher, error) {
	devicePath := ctx.DeviceName
	if !strings.HasPrefix(devicePath, kernelPPSDevicePrefix) {
		if err := attachLineDiscipline(ctx.DeviceFD); err != nil {
			return nil, newError(ClassSetupTransient, "attaching N_PPS line discipline", err)
		}
		resolved, err := findKernelPPSDevice(ctx.DeviceName)
		if err != nil {
			return nil, err
		}
		devicePath = resolved
	}

	fd, err := unix.Open(devicePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, newError(ClassSetupTransient, fmt.Sprintf("opening %s", devicePath), err)
	}
	ks := &KernelSource{fd: fd}

	if capBits, err := ks.getCap(); err != nil {
		ctx.log(LevelWarn, "PPS_GETCAP on %s failed, continuing without it: %v", devicePath, err)
	} else if capBits&ppsCaptureBoth != ppsCaptureBoth {
		ctx.log(LevelWarn, "%s does not advertise PPS_CAPTUREBOTH (caps=%#x), edges may be missed", devicePath, capBits)
	}

	if err := ks.setParams(); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	if params, err := ks.getParams(); err != nil {
		ctx.log(LevelWarn, "PPS_GETPARAMS on %s failed after PPS_SETPARAMS: %v", devicePath, err)
	} else if params.Mode&ppsCaptureBoth != ppsCaptureBoth {
		ctx.log(LevelWarn, "%s did not honor PPS_CAPTUREBOTH (mode=%#x after set)", devicePath, params.Mode)
	}

	return ks, nil
}

// findKernelPPSDevice walks /sys/class/pps looking for the entry whose
// "path" attribute names the tty at ttyPath, and returns the matching
// /dev/ppsN node. It derives N from the sysfs directory's own basename
// rather than slicing a fixed offset out of a longer path, so it keeps
// working if the kernel ever changes how many pps devices can exist or how
// their sysfs entries are named.
func findKernelPPSDevice(ttyPath string) (string, error) {
	entries, err := os.ReadDir(sysfsPPSClassDir)
	if err != nil {
		return "", newError(ClassSetupTransient, fmt.Sprintf("enumerating %s", sysfsPPSClassDir), err)
	}
	for _, e := range entries {
		content, err := os.ReadFile(filepath.Join(sysfsPPSClassDir, e.Name(), "path"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(content)) != ttyPath {
			continue
		}
		return filepath.Join("/dev", e.Name()), nil
	}
	return "", newError(ClassSetupTransient, fmt.Sprintf("no pps device bound to %s", ttyPath), ErrNoKernelPPS)
}

func attachLineDiscipline(fd int) error {
	return unix.IoctlSetInt(fd, unix.TIOCSETD, nPPS)
}

func (ks *KernelSource) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(ks.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (ks *KernelSource) setParams() error {
	params := ppsKParams{APIVersion: 1, Mode: ppsCaptureBoth}
	if err := ks.ioctl(ppsSetParams, unsafe.Pointer(&params)); err != nil {
		return newError(ClassSetupTransient, "PPS_SETPARAMS", err)
	}
	return nil
}

// getCap runs PPS_GETCAP, the capability query a setup routine is expected
// to make before trusting a source's capture mode (linux/timepps.h's
// PPS_CAP* bits).
func (ks *KernelSource) getCap() (int32, error) {
	var capBits int32
	if err := ks.ioctl(ppsGetCap, unsafe.Pointer(&capBits)); err != nil {
		return 0, newError(ClassSetupTransient, "PPS_GETCAP", err)
	}
	return capBits, nil
}

// getParams runs PPS_GETPARAMS, used to verify the kernel actually applied
// the mode requested by setParams rather than silently ignoring it.
func (ks *KernelSource) getParams() (ppsKParams, error) {
	var params ppsKParams
	if err := ks.ioctl(ppsGetParams, unsafe.Pointer(&params)); err != nil {
		return ppsKParams{}, newError(ClassSetupTransient, "PPS_GETPARAMS", err)
	}
	return params, nil
}

// Fetch reads the latest assert/clear timestamps. nonBlocking requests a
// zero-timeout (poll, don't wait for a fresh edge) PPS_FETCH.
func (ks *KernelSource) Fetch(nonBlocking bool) (timespec.T, Polarity, bool, error) {
	var fdata ppsFData
	if !nonBlocking {
		fdata.Timeout = ppsKTime{Sec: 1}
	}
	if err := ks.ioctl(ppsFetch, unsafe.Pointer(&fdata)); err != nil {
		return timespec.T{}, Clear, false, newError(ClassCaptureTransient, "PPS_FETCH", err)
	}

	assertTS := timespec.T{Sec: fdata.Info.AssertTU.Sec, Nsec: fdata.Info.AssertTU.Nsec}
	clearTS := timespec.T{Sec: fdata.Info.ClearTU.Sec, Nsec: fdata.Info.ClearTU.Nsec}
	if assertTS.IsZero() && clearTS.IsZero() {
		return timespec.T{}, Clear, false, nil
	}
	if assertTS.After(clearTS) {
		return assertTS, Assert, true, nil
	}
	return clearTS, Clear, true, nil
}

// Close releases the kernel capture handle; the kernel tears down the PPS
// source state on close.
func (ks *KernelSource) Close() error {
	return unix.Close(ks.fd)
}
