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
	"fmt"
)

// ErrClass buckets failures by how the caller should react to them.
type ErrClass int

// Error classes.
const (
	// ClassSetupTransient means Activate may be retried later (device not
	// ready yet, kernel PPS not bound to this tty yet).
	ClassSetupTransient ErrClass = iota
	// ClassSetupFatal means the descriptor will never work (not a tty).
	ClassSetupFatal
	// ClassLoopFatal means the worker's edge source failed in a way that
	// will keep failing (device gone, ioctl rejected); the worker exits.
	ClassLoopFatal
	// ClassCaptureTransient means a single kernel PPS fetch failed; the
	// worker falls back to the user-space timestamp for this edge only.
	ClassCaptureTransient
	// ClassMutexOp marks an error that occurred while holding (or trying to
	// take) a MonitorContext's mutex; always a programming error.
	ClassMutexOp
	// ClassClassifierReject means an edge or a correlation was rejected by
	// policy, not by failure; Reason carries the human-readable cause.
	ClassClassifierReject
)

func (c ErrClass) String() string {
	switch c {
	case ClassSetupTransient:
		return "setup-transient"
	case ClassSetupFatal:
		return "setup-fatal"
	case ClassLoopFatal:
		return "loop-fatal"
	case ClassCaptureTransient:
		return "capture-transient"
	case ClassMutexOp:
		return "mutex-op"
	case ClassClassifierReject:
		return "classifier-reject"
	default:
		return "unknown"
	}
}

// Error is the error type returned by this package's exported operations.
type Error struct {
	Class  ErrClass
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pps: %s: %s: %v", e.Class, e.Reason, e.Err)
	}
	return fmt.Sprintf("pps: %s: %s", e.Class, e.Reason)
}

// Unwrap lets errors.Is/As see through to the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func newError(class ErrClass, reason string, err error) *Error {
	return &Error{Class: class, Reason: reason, Err: err}
}

func reject(reason string) *Error {
	return newError(ClassClassifierReject, reason, nil)
}

// Sentinel causes, wrapped by *Error values returned from this package so
// callers can errors.Is against the mechanism rather than the reason text.
var (
	// ErrUnsupported is returned by a capture backend that has no
	// implementation on the current platform.
	ErrUnsupported = errors.New("pps: capture mechanism not supported on this platform")
	// ErrNoKernelPPS is returned when no /sys/class/pps entry is bound to
	// the requested tty.
	ErrNoKernelPPS = errors.New("pps: no kernel pps device bound to this tty")
	// ErrNotATTY is returned by Activate when the descriptor is not a
	// terminal.
	ErrNotATTY = errors.New("pps: descriptor is not a tty")
)
