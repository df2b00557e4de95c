// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"context"
	"math"
	"time"
	"unsafe"

	"golang.org/x/sync/semaphore"

	"github.com/christianb93/ctos-core/kerrno"
)

// semCeiling is the nominal capacity handed to the underlying weighted
// semaphore. A counting semaphore's count is unbounded in principle (spec
// §3), so this just needs to be larger than any plausible outstanding-post
// count; it is not a behavioral limit callers are expected to hit.
const semCeiling = math.MaxInt32

// Semaphore is a FIFO counting semaphore with blocking, interruptible,
// timed and non-blocking acquire variants (spec §4.1). It is built on
// golang.org/x/sync/semaphore.Weighted, whose Acquire already implements
// exactly the cancellation-safe handoff spec §5 requires: a waiter racing
// its own cancellation against a concurrent Release either observes the
// permit it was just granted (and proceeds) or removes itself from the
// wait list atomically with the cancellation, so no post is ever lost.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns a semaphore initialized with the given count. The
// count must be non-negative.
func NewSemaphore(initial int) *Semaphore {
	if initial < 0 {
		panic("ksync: negative initial semaphore count")
	}
	w := semaphore.NewWeighted(semCeiling)
	if occupied := int64(semCeiling - initial); occupied > 0 {
		if !w.TryAcquire(occupied) {
			panic("ksync: initial semaphore count exceeds capacity")
		}
	}
	return &Semaphore{w: w}
}

// Down blocks unconditionally until a post is available.
func (s *Semaphore) Down() {
	_ = s.w.Acquire(context.Background(), 1)
	Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "acquired")
}

// DownIntr blocks until a post is available or ctx is done (representing a
// pending signal for the calling task, spec §4.1/§5). It returns
// kerrno.ErrInterrupted, never kerrno.OK, when ctx ends the wait; the
// underlying semaphore guarantees a concurrent Up is never lost in that
// race (see type doc).
func (s *Semaphore) DownIntr(ctx context.Context) kerrno.Errno {
	if err := s.w.Acquire(ctx, 1); err != nil {
		Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "cancelled")
		return kerrno.ErrInterrupted
	}
	Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "acquired")
	return kerrno.OK
}

// DownTimed blocks for at most d before giving up with kerrno.ErrTimeout.
func (s *Semaphore) DownTimed(d time.Duration) kerrno.Errno {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := s.w.Acquire(ctx, 1); err != nil {
		Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "timeout")
		return kerrno.ErrTimeout
	}
	Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "acquired")
	return kerrno.OK
}

// DownNoWait acquires the semaphore only if it would not block.
func (s *Semaphore) DownNoWait() kerrno.Errno {
	if !s.w.TryAcquire(1) {
		return kerrno.ErrWouldBlock
	}
	Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "acquired")
	return kerrno.OK
}

// Up posts the semaphore, waking the longest-waiting blocked acquirer if
// any, otherwise incrementing the count.
func (s *Semaphore) Up() {
	s.w.Release(1)
	Trace(uintptr(unsafe.Pointer(s)), KindSemaphore, IntentWrite, callerID(), "released")
}
