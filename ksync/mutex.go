// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"unsafe"

	"github.com/christianb93/ctos-core/kerrno"
)

// Mutex is a counting semaphore initialized to one (spec §4.1: "Mutex is
// semaphore initialized to 1").
type Mutex struct {
	sem *Semaphore
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: NewSemaphore(1)}
}

// Lock blocks until the mutex is free.
func (m *Mutex) Lock() {
	m.sem.Down()
	Trace(uintptr(unsafe.Pointer(m)), KindMutex, IntentWrite, callerID(), "acquired")
}

// Unlock releases the mutex. Unlock of an already-unlocked Mutex is, like
// Semaphore.Up on a non-deficit semaphore, simply an extra post -- callers
// are responsible for balanced Lock/Unlock pairs, same as spec's semaphore
// contract.
func (m *Mutex) Unlock() {
	m.sem.Up()
	Trace(uintptr(unsafe.Pointer(m)), KindMutex, IntentWrite, callerID(), "released")
}

// TryLock acquires the mutex only if it would not block.
func (m *Mutex) TryLock() bool {
	return m.sem.DownNoWait() == kerrno.OK
}
