// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

import (
	"io"
	"io/ioutil"
	"log"
	"sync"

	"github.com/christianb93/ctos-core/ctoslog"
)

// Options configures a TTY, following the corpus's constructor-option
// convention (fuse.MountOptions, fs.Options) rather than a global config
// file (spec §6 "Persisted state: None").
type Options struct {
	// Settings seeds the terminal's initial termios-equivalent state;
	// the zero value means DefaultSettings().
	Settings *Settings

	// Screen receives echoed bytes and raw writes to the terminal. Nil
	// discards all output, useful for tests that only care about the
	// read buffer's contents.
	Screen io.Writer

	// Signaler delivers job-control signals (spec §4.6); with nil no
	// signal is sent, but signal-raising control characters still have
	// their buffer-side effects and a background read still fails with
	// ErrPaused or ErrIO.
	Signaler Signaler

	// Foreground is the terminal's initial foreground process group.
	Foreground int

	// Logger receives diagnostic output; nil falls back to a package
	// default logger with the "tty: " prefix.
	Logger *log.Logger

	// Debug enables verbose tracing of signal delivery and foreground
	// group changes.
	Debug bool
}

func (o Options) withDefaults() Options {
	if o.Settings == nil {
		d := DefaultSettings()
		o.Settings = &d
	}
	if o.Screen == nil {
		o.Screen = ioutil.Discard
	}
	if o.Logger == nil {
		o.Logger = defaultLogger()
	}
	return o
}

var (
	defaultLoggerOnce sync.Once
	theDefaultLogger  *log.Logger
)

func defaultLogger() *log.Logger {
	defaultLoggerOnce.Do(func() {
		theDefaultLogger = ctoslog.New("tty")
	})
	return theDefaultLogger
}
