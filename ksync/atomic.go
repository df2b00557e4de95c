// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import "sync/atomic"

// OrderedWord is a 32-bit aligned word with atomic load/store and a full
// memory fence on both operations (spec §4.1, §5: "Atomic store
// establishes a happens-before with the subsequent atomic load from any
// CPU"). Go's sync/atomic operations are already sequentially consistent
// under the Go memory model, so this is a thin, explicitly-named wrapper
// rather than a reimplementation of a fence.
type OrderedWord struct {
	v uint32
}

// Store publishes val, along with every write that happened-before this
// call on the calling goroutine.
func (w *OrderedWord) Store(val uint32) {
	atomic.StoreUint32(&w.v, val)
}

// Load returns the most recent Store, establishing a happens-before
// relationship with it.
func (w *OrderedWord) Load() uint32 {
	return atomic.LoadUint32(&w.v)
}

// Add atomically adds delta and returns the new value, for callers that
// need a fetch-and-add rather than independent load/store (e.g. reference
// counters).
func (w *OrderedWord) Add(delta int32) uint32 {
	return atomic.AddUint32(&w.v, uint32(delta))
}

// CompareAndSwap performs the usual atomic CAS.
func (w *OrderedWord) CompareAndSwap(old, new uint32) bool {
	return atomic.CompareAndSwapUint32(&w.v, old, new)
}
