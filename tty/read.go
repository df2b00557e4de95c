// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

import (
	"time"

	"github.com/christianb93/ctos-core/kerrno"
)

// Read implements spec §4.6's read operation: acquire the terminal's
// "available" mutex so at most one reader exists, wait on the data-
// available semaphore (blocking, non-blocking, or timed per flags and
// VTIME), then under the terminal's spinlock copy up to len(buf) bytes
// from the read buffer. If the read buffer still has data left after the
// copy, data-available is re-posted so the next reader proceeds
// immediately. The background-read check (spec §4.6) runs both before and
// after the wait.
func (t *TTY) Read(caller Caller, buf []byte, nonBlocking bool) (int, kerrno.Errno) {
	t.available.Lock()
	defer t.available.Unlock()

	if errno := t.backgroundCheck(caller); errno != kerrno.OK {
		return 0, errno
	}

	var errno kerrno.Errno
	switch {
	case nonBlocking:
		errno = t.dataAvail.DownNoWait()
	case t.timedWait() > 0:
		errno = t.dataAvail.DownTimed(t.timedWait())
	default:
		t.dataAvail.Down()
	}
	if errno != kerrno.OK {
		return 0, errno
	}

	if errno := t.backgroundCheck(caller); errno != kerrno.OK {
		// The permit we just consumed belongs to whatever data is still
		// buffered; give it back so the eventual foreground reader sees it.
		t.dataAvail.Up()
		return 0, errno
	}

	tok := t.spin.Acquire()
	n := copy(buf, t.readBuf)
	t.readBuf = t.readBuf[n:]
	remaining := len(t.readBuf) > 0
	t.spin.Release(tok)

	if remaining {
		t.dataAvail.Up()
	}
	return n, kerrno.OK
}

// timedWait returns the VTIME-derived wait duration for a non-canonical
// read, or 0 to mean "block indefinitely" (canonical mode, or VTIME
// unset). VTIME is in tenths of a second, matching POSIX termios.
func (t *TTY) timedWait() time.Duration {
	tok := t.spin.Acquire()
	defer t.spin.Release(tok)
	if t.settings.LocalFlags&Canon != 0 {
		return 0
	}
	if v := t.settings.CC[VTIME]; v > 0 {
		return time.Duration(v) * 100 * time.Millisecond
	}
	return 0
}

// backgroundCheck implements spec §4.6's background-read check: a caller
// reading from a terminal that is its controlling terminal, but whose
// process group is not the terminal's foreground group, is either signaled
// and paused or rejected with an I/O error, depending on its disposition
// for the terminal-input signal.
func (t *TTY) backgroundCheck(caller Caller) kerrno.Errno {
	if caller == nil || !caller.HasControllingTerminal(t) {
		return kerrno.OK
	}
	if caller.Pgid() == t.Foreground() {
		return kerrno.OK
	}
	switch caller.Disposition(SigTTYInput) {
	case DispositionDefault:
		if t.signaler != nil {
			t.signaler.SendSignal(caller.Pgid(), SigTTYInput)
		}
		return kerrno.ErrPaused
	default:
		return kerrno.ErrIO
	}
}
