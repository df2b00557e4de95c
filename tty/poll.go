// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

import (
	"golang.org/x/sys/unix"

	"github.com/christianb93/ctos-core/kerrno"
)

// TranslateErrno maps a host OS error into the core's error taxonomy. It
// exists for a host-backed terminal (a real pty master forwarding bytes
// from /dev/ptmx into Input, or a driver polling a real line for
// readiness) that needs to turn a syscall failure into the same
// kerrno.Errno vocabulary Read and the rest of the core already return --
// TTY itself never makes a real syscall, and nothing in this module calls
// it; it is the module's only use of unix.Errno.
func TranslateErrno(err error) kerrno.Errno {
	if err == nil {
		return kerrno.OK
	}
	errno, ok := err.(unix.Errno)
	if !ok {
		return kerrno.ErrIO
	}
	switch errno {
	case unix.EAGAIN:
		return kerrno.ErrWouldBlock
	case unix.EINTR:
		return kerrno.ErrInterrupted
	case unix.ENOTTY:
		return kerrno.ErrNotTTY
	case unix.EBADF:
		return kerrno.ErrBadFD
	case unix.ENOMEM:
		return kerrno.ErrNoMemory
	case unix.EACCES, unix.EPERM:
		return kerrno.ErrPermission
	case unix.ENODEV:
		return kerrno.ErrNoDevice
	case unix.ETIMEDOUT:
		return kerrno.ErrTimeout
	default:
		return kerrno.ErrIO
	}
}
