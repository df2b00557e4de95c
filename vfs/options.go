// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"log"

	"github.com/christianb93/ctos-core/vfs/pipe"
)

// Options configures a System, following the corpus's constructor-option
// convention (fuse.MountOptions, fs.Options) rather than a global config
// file -- there is no persisted configuration (spec §6).
type Options struct {
	// MaxOpenFiles bounds the process-global open-file list (spec §7
	// ErrTooManyFiles). Zero means use DefaultMaxOpenFiles.
	MaxOpenFiles int

	// MaxDescriptors bounds each process's descriptor table. Zero means
	// use DefaultMaxDescriptors.
	MaxDescriptors int

	// Logger receives diagnostic output; nil falls back to a package
	// default logger with the "vfs: " prefix, mirroring
	// fuse.MountOptions.Logger in the corpus.
	Logger *log.Logger

	// Debug enables verbose tracing of mount/unmount and open/close,
	// mirroring FileSystemConnector.Debug in the corpus.
	Debug bool

	// SignalSink receives broken-pipe notifications for writers that find
	// no readers left (spec §4.5). Nil means writes still return
	// ErrBrokenPipe but no signal is delivered, the same degraded mode
	// pipe.New documents for a nil sink -- useful when no process manager
	// is wired in (tests, early boot).
	SignalSink pipe.SignalSink
}

// DefaultMaxOpenFiles is used when Options.MaxOpenFiles is zero.
const DefaultMaxOpenFiles = 4096

// DefaultMaxDescriptors is used when Options.MaxDescriptors is zero.
const DefaultMaxDescriptors = 256

func (o Options) withDefaults() Options {
	if o.MaxOpenFiles == 0 {
		o.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if o.MaxDescriptors == 0 {
		o.MaxDescriptors = DefaultMaxDescriptors
	}
	if o.Logger == nil {
		o.Logger = ctoslogDefault()
	}
	return o
}
