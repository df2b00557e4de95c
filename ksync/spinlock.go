// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// InterruptController abstracts the hardware interrupt-enable flag that a
// real x86 CPU exposes through cli/sti/pushfl. This is one of the small
// external-collaborator contracts the core consumes rather than owns (spec
// §1): pure Go has no instruction-set-level notion of an interrupt flag, so
// SpinLock talks to this interface instead of touching hardware directly.
// A kernel port supplies one InterruptController per logical CPU; this
// package defaults to a single shared one suitable for single-process
// tests.
type InterruptController interface {
	// Enabled reports whether interrupts are currently enabled on the
	// calling CPU.
	Enabled() bool
	// Disable turns interrupts off on the calling CPU.
	Disable()
	// Restore sets the interrupt-enable flag to exactly the given value.
	// It must never unconditionally enable interrupts (spec §4.1).
	Restore(enabled bool)
}

// flagController is the default InterruptController: a single process-wide
// flag, initially enabled. It is intentionally not goroutine-local, since
// ordinary Go programs have no per-CPU interrupt concept; a real port
// supplies a per-CPU instance obtained from smp.CPU.Interrupts.
type flagController struct {
	mu      sync.Mutex
	enabled bool
}

func newFlagController() *flagController {
	return &flagController{enabled: true}
}

func (f *flagController) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *flagController) Disable() {
	f.mu.Lock()
	f.enabled = false
	f.mu.Unlock()
}

func (f *flagController) Restore(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
}

// DefaultInterrupts is the InterruptController new SpinLocks use when none
// is supplied explicitly.
var DefaultInterrupts InterruptController = newFlagController()

// IFlag is the token returned by SpinLock.Acquire, carrying the
// interrupt-enable state that was in effect immediately before the
// acquisition. Release must be given exactly the token its matching
// Acquire returned.
type IFlag struct {
	enabled bool
}

// SpinLock is a non-reentrant mutual-exclusion lock that busy-waits instead
// of parking a task, for use in regions that must not block (spec §4.1,
// §4.7 hazards). Acquire saves and clears the caller's interrupt-enable
// state; Release restores it verbatim, never unconditionally re-enabling,
// so nested critical sections compose correctly.
type SpinLock struct {
	flag    uint32
	Interrupts InterruptController
}

// NewSpinLock returns an unlocked SpinLock using the default interrupt
// controller.
func NewSpinLock() *SpinLock {
	return &SpinLock{Interrupts: DefaultInterrupts}
}

func (s *SpinLock) controller() InterruptController {
	if s.Interrupts != nil {
		return s.Interrupts
	}
	return DefaultInterrupts
}

// Acquire disables interrupts, then busy-waits until the lock is free.
// SpinLocks must never be held across a call that may block (semaphore
// down, I/O) -- see spec §4.7.
func (s *SpinLock) Acquire() IFlag {
	ic := s.controller()
	saved := ic.Enabled()
	ic.Disable()

	for !atomic.CompareAndSwapUint32(&s.flag, 0, 1) {
		runtime.Gosched()
	}
	Trace(uintptr(unsafe.Pointer(s)), KindSpin, IntentWrite, callerID(), "acquired")
	return IFlag{enabled: saved}
}

// Release stores 0 with a full memory fence (spec §5: "a release of a
// spinlock ... publish[es] prior writes"), then restores the
// interrupt-enable state captured by the matching Acquire.
func (s *SpinLock) Release(tok IFlag) {
	atomic.StoreUint32(&s.flag, 0)
	s.controller().Restore(tok.enabled)
	Trace(uintptr(unsafe.Pointer(s)), KindSpin, IntentWrite, callerID(), "released")
}

// TryAcquire attempts to take the lock without blocking. On success it
// behaves like Acquire (interrupts saved and disabled) and the second
// return value is true; the caller must still call Release. On failure,
// interrupt state is left untouched and the second return value is false.
func (s *SpinLock) TryAcquire() (IFlag, bool) {
	if !atomic.CompareAndSwapUint32(&s.flag, 0, 1) {
		return IFlag{}, false
	}
	ic := s.controller()
	saved := ic.Enabled()
	ic.Disable()
	return IFlag{enabled: saved}, true
}
