// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctoslog provides the subsystem loggers shared by the kernel
// core. Every package that wants to log injects a *log.Logger through its
// Options struct rather than writing to a package-level global, and falls
// back to a lazily-created default of its own when none is given.
package ctoslog

import (
	"log"
	"os"
)

// New returns a standard library logger writing to stderr, tagged with
// prefix. Subsystems call this once to build the default they fall back to
// when callers don't supply their own Logger.
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix+": ", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// Default returns l if non-nil, otherwise a freshly built logger tagged
// with prefix. Subsystem constructors call this so a nil Options.Logger
// never has to be special-cased at every call site.
func Default(l *log.Logger, prefix string) *log.Logger {
	if l != nil {
		return l
	}
	return New(prefix)
}
