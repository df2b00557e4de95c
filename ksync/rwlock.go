// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import "unsafe"

// RWLock is a reader-writer lock (spec §3, §4.1). Readers increment a
// counter guarded by a small mutex; the first reader acquires the
// writer-admission semaphore and the last reader releases it. Writers
// simply acquire the writer-admission semaphore. There is no fairness
// guarantee -- starvation avoidance is an explicit non-goal.
type RWLock struct {
	readerMu    *Mutex
	readerCount int
	writerSem   *Semaphore
}

// NewRWLock returns an unlocked RWLock.
func NewRWLock() *RWLock {
	return &RWLock{
		readerMu:  NewMutex(),
		writerSem: NewSemaphore(1),
	}
}

// RLock admits the calling reader, blocking only if a writer currently
// holds the lock.
func (l *RWLock) RLock() {
	l.readerMu.Lock()
	l.readerCount++
	if l.readerCount == 1 {
		l.writerSem.Down()
	}
	l.readerMu.Unlock()
	Trace(uintptr(unsafe.Pointer(l)), KindRWLock, IntentRead, callerID(), "acquired")
}

// RUnlock releases one reader admission.
func (l *RWLock) RUnlock() {
	l.readerMu.Lock()
	l.readerCount--
	if l.readerCount == 0 {
		l.writerSem.Up()
	}
	l.readerMu.Unlock()
	Trace(uintptr(unsafe.Pointer(l)), KindRWLock, IntentRead, callerID(), "released")
}

// Lock excludes all readers and other writers.
func (l *RWLock) Lock() {
	l.writerSem.Down()
	Trace(uintptr(unsafe.Pointer(l)), KindRWLock, IntentWrite, callerID(), "acquired")
}

// Unlock releases the write lock, admitting either the next writer or all
// currently queued readers.
func (l *RWLock) Unlock() {
	l.writerSem.Up()
	Trace(uintptr(unsafe.Pointer(l)), KindRWLock, IntentWrite, callerID(), "released")
}
