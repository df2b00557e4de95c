// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

// Signal identifies one of the job-control signals the line discipline can
// generate (spec §4.6, §GLOSSARY "foreground process group").
type Signal int

const (
	// SigInterrupt corresponds to the interrupt control character (VINTR).
	SigInterrupt Signal = iota
	// SigQuit corresponds to the quit control character (VQUIT).
	SigQuit
	// SigSuspend corresponds to the suspend control character (VSUSP).
	SigSuspend
	// SigTTYInput is posted to a background reader (spec §4.6
	// "background-read check", GLOSSARY "Controlling terminal").
	SigTTYInput
)

// Disposition is how a process has a given signal configured, consulted
// only for SigTTYInput by the background-read check (spec §4.6).
type Disposition int

const (
	// DispositionDefault means the signal runs its default action.
	DispositionDefault Disposition = iota
	// DispositionBlocked means the signal is held pending, never delivered.
	DispositionBlocked
	// DispositionIgnored means the signal is discarded on delivery.
	DispositionIgnored
)

// Signaler delivers a signal to every process in a process group. It is
// the same shape as smp.APDriver/ksync.InterruptController: the process
// manager that actually owns signal delivery and process groups is out of
// scope (spec §1), so the line discipline only needs this narrow interface
// to reach it. With a nil Signaler no signal is sent; signal-raising
// control characters still have their buffer-side effects, and a
// background read still fails with ErrPaused or ErrIO.
type Signaler interface {
	SendSignal(pgid int, sig Signal)
}

// Caller is what the background-read check (spec §4.6) needs to know about
// the process attempting a read.
type Caller interface {
	// Pgid is the calling process's process group id.
	Pgid() int
	// HasControllingTerminal reports whether t is the calling process's
	// controlling terminal (GLOSSARY "Controlling terminal").
	HasControllingTerminal(t *TTY) bool
	// Disposition reports how the calling process has sig configured.
	Disposition(sig Signal) Disposition
}
