// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

import (
	"io"
	"log"

	"github.com/christianb93/ctos-core/kerrno"
	"github.com/christianb93/ctos-core/ksync"
)

// TTY is a singleton per terminal (spec §3 TTY entity): settings, the
// staging line buffer, the read buffer readers copy out of, the foreground
// process group, and the three synchronization objects the line discipline
// and Read need -- a spinlock guarding the buffers and foreground group, a
// mutex admitting at most one concurrent reader, and a semaphore signaling
// data availability.
type TTY struct {
	spin      ksync.SpinLock
	available *ksync.Mutex
	dataAvail *ksync.Semaphore

	settings   Settings
	lineBuf    []byte
	readBuf    []byte
	foreground int

	winsize Winsize

	screen   io.Writer
	signaler Signaler
	logger   *log.Logger
	debug    bool
}

// New returns a TTY ready for input and reads.
func New(opts Options) *TTY {
	opts = opts.withDefaults()
	return &TTY{
		available:  ksync.NewMutex(),
		dataAvail:  ksync.NewSemaphore(0),
		settings:   *opts.Settings,
		foreground: opts.Foreground,
		screen:     opts.Screen,
		signaler:   opts.Signaler,
		logger:     opts.Logger,
		debug:      opts.Debug,
	}
}

// Foreground returns the terminal's current foreground process group.
func (t *TTY) Foreground() int {
	tok := t.spin.Acquire()
	defer t.spin.Release(tok)
	return t.foreground
}

// SetForeground updates the foreground process group. Foreground-group
// updates are serialized by the same spinlock the line discipline and Read
// use for the buffers (spec §3 "foreground-group updates are serialized").
func (t *TTY) SetForeground(pgid int) {
	tok := t.spin.Acquire()
	t.foreground = pgid
	t.spin.Release(tok)
	if t.debug {
		t.logger.Printf("foreground group set to %d", pgid)
	}
}

// Tcgetattr returns a copy of the terminal's current settings.
func (t *TTY) Tcgetattr() Settings {
	tok := t.spin.Acquire()
	defer t.spin.Release(tok)
	return t.settings
}

// Tcsetattr replaces the terminal's settings wholesale, matching tcsetattr
// TCSANOW semantics (no draining of pending output is modeled, since
// output processing is out of scope).
func (t *TTY) Tcsetattr(s Settings) {
	tok := t.spin.Acquire()
	t.settings = s
	t.spin.Release(tok)
}

// GetWinsize returns the terminal's current window size.
func (t *TTY) GetWinsize() Winsize {
	tok := t.spin.Acquire()
	defer t.spin.Release(tok)
	return t.winsize
}

// SetWinsize stores a new window size, with no further behavior: resize
// signal delivery is a Non-goal (§C.2 of the expanded spec).
func (t *TTY) SetWinsize(w Winsize) {
	tok := t.spin.Acquire()
	t.winsize = w
	t.spin.Release(tok)
}

// Write sends p to the terminal's screen sink unprocessed; output
// processing beyond echo is not part of the line discipline (spec §4.6
// covers input only).
func (t *TTY) Write(p []byte) (int, kerrno.Errno) {
	n, err := t.screen.Write(p)
	if err != nil {
		return n, kerrno.ErrIO
	}
	return n, kerrno.OK
}

func (t *TTY) echo(p []byte) {
	t.screen.Write(p)
}
