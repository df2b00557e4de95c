// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kerrno implements the core's error taxonomy (spec §7). It is
// modeled on the standard library's syscall.Errno: a small defined integer
// type with an Error() method, used pervasively as the error return type
// throughout the VFS, TTY and synchronization layers so that every
// subsystem has exactly one error vocabulary and the system-call surface
// can negate it mechanically (see Negate).
package kerrno

import "fmt"

// Errno is the core's error code. The zero value, OK, means success --
// exactly like syscall.Errno(0).
type Errno int

const (
	// OK indicates success.
	OK Errno = iota
	// ErrInvalid is returned for malformed arguments.
	ErrInvalid
	// ErrNotFound is returned when a named object does not exist.
	ErrNotFound
	// ErrPermission is returned when the caller lacks rights to an object.
	ErrPermission
	// ErrExists is returned by create-if-absent operations when the target
	// already exists (O_CREAT|O_EXCL, link, mkdir).
	ErrExists
	// ErrNotDir is returned when a directory was required but not given.
	ErrNotDir
	// ErrIsDir is returned when a non-directory was required but a
	// directory was given.
	ErrIsDir
	// ErrNotTTY is returned when a terminal operation targets a
	// non-terminal descriptor.
	ErrNotTTY
	// ErrNoDevice is returned when a major/minor pair has no registered
	// driver.
	ErrNoDevice
	// ErrBadFD is returned for an out-of-range or empty descriptor slot.
	ErrBadFD
	// ErrTooManyFiles is returned when a descriptor table or open-file
	// list is exhausted.
	ErrTooManyFiles
	// ErrNoMemory is returned when allocation fails.
	ErrNoMemory
	// ErrCrossDevice is returned when an operation (link, rename) spans
	// two file systems.
	ErrCrossDevice
	// ErrBusy is returned when a resource (mount point, pipe) cannot be
	// removed because it is in use.
	ErrBusy
	// ErrBrokenPipe is returned by a pipe write with no readers left.
	ErrBrokenPipe
	// ErrWouldBlock is returned by a non-blocking operation that would
	// otherwise block.
	ErrWouldBlock
	// ErrInterrupted is returned by a blocking acquire cancelled by a
	// pending signal.
	ErrInterrupted
	// ErrPaused is returned when a blocking operation must be restarted
	// by the system-call layer after signal delivery (spec §4.7).
	ErrPaused
	// ErrTimeout is returned by a timed acquire whose deadline elapsed.
	ErrTimeout
	// ErrOverflow is returned when an arithmetic result does not fit its
	// destination type.
	ErrOverflow
	// ErrReadOnly is returned when a write targets a read-only file
	// system or file.
	ErrReadOnly
	// ErrRange is returned for an out-of-range result, including seek on
	// a file kind that does not support it (spec §9 open question 3).
	ErrRange
	// ErrIO is returned when a background terminal read is blocked by a
	// disposition that suppresses the terminal-input signal (spec §4.6
	// "If the signal is blocked or ignored, return an I/O error instead").
	ErrIO
)

var names = map[Errno]string{
	OK:              "success",
	ErrInvalid:      "invalid argument",
	ErrNotFound:     "no such file or directory",
	ErrPermission:   "permission denied",
	ErrExists:       "file exists",
	ErrNotDir:       "not a directory",
	ErrIsDir:        "is a directory",
	ErrNotTTY:       "not a typewriter",
	ErrNoDevice:     "no such device",
	ErrBadFD:        "bad file descriptor",
	ErrTooManyFiles: "too many open files",
	ErrNoMemory:     "cannot allocate memory",
	ErrCrossDevice:  "invalid cross-device link",
	ErrBusy:         "device or resource busy",
	ErrBrokenPipe:   "broken pipe",
	ErrWouldBlock:   "resource temporarily unavailable",
	ErrInterrupted:  "interrupted system call",
	ErrPaused:       "paused for signal",
	ErrTimeout:      "timer expired",
	ErrOverflow:     "value too large",
	ErrReadOnly:     "read-only file system",
	ErrRange:        "result out of range",
	ErrIO:           "input/output error",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("kerrno %d", int(e))
}

// Is reports whether err is this Errno, unwrapping through fmt.Errorf-style
// wrapping in the usual way via errors.Is semantics (Errno implements the
// simple equality that errors.Is falls back on).
func (e Errno) Is(target error) bool {
	o, ok := target.(Errno)
	return ok && o == e
}

// Negate renders e the way the system-call surface returns it: 0 on
// success, or the negative of the taxonomy code on failure (spec §6, §7).
// Library wrappers do the inverse (negative return -> positive errno in a
// global) outside the core; that translation is not this package's job.
func Negate(e Errno) int {
	if e == OK {
		return 0
	}
	return -int(e)
}

// FromErr maps a generic error to an Errno, returning ErrInvalid if err is
// non-nil and not already an Errno. Used at boundaries where a driver hook
// (§6 file-system/device driver contract) returns a plain error.
func FromErr(err error) Errno {
	if err == nil {
		return OK
	}
	if e, ok := err.(Errno); ok {
		return e
	}
	return ErrInvalid
}
