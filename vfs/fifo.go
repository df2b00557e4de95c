// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sync"

	"github.com/christianb93/ctos-core/kerrno"
	"github.com/christianb93/ctos-core/vfs/pipe"
)

// fifoKey identifies a named pipe by the inode identity it is attached to
// (spec §3 "Identity is (Sb.DeviceID(), Number)").
type fifoKey struct {
	device uint64
	number uint64
}

// FifoRegistry maps named-FIFO inodes to the single pipe.Pipe every
// independent open() of that path shares (spec §4.5's ring buffer, extended
// to the "named pipe" case the distilled pipe section leaves implicit:
// unlike an anonymous pipe() pair, a FIFO's backing pipe is looked up by
// path and outlives any one opener). Entries are removed automatically once
// a pipe's reader and writer counts both reach zero, via Pipe's idle
// callback, so repeated open/close cycles on the same path do not leak.
type FifoRegistry struct {
	mu     sync.Mutex
	pipes  map[fifoKey]*pipe.Pipe
	signal pipe.SignalSink
}

// NewFifoRegistry returns an empty registry. signal is threaded through to
// every pipe it creates, and may be nil.
func NewFifoRegistry(signal pipe.SignalSink) *FifoRegistry {
	return &FifoRegistry{pipes: make(map[fifoKey]*pipe.Pipe), signal: signal}
}

// open returns the shared pipe for ino, creating it on first access. The
// returned endpoint already accounts for this open call's reader or writer
// reference; flags must include exactly one of ORead/OWrite.
func (r *FifoRegistry) open(ino *Inode, flags int) (PipeEndpoint, kerrno.Errno) {
	key := fifoKey{device: ino.Sb.DeviceID(), number: ino.Number}

	r.mu.Lock()
	p, ok := r.pipes[key]
	if !ok {
		p = pipe.New(pipe.DefaultCapacity, r.signal)
		p.SetIdleCallback(func() { r.drop(key) })
		r.pipes[key] = p
	}
	r.mu.Unlock()

	switch {
	case flags&ORead != 0:
		return pipe.NewReadEnd(p), kerrno.OK
	case flags&OWrite != 0:
		return pipe.NewWriteEnd(p), kerrno.OK
	default:
		return nil, kerrno.ErrInvalid
	}
}

func (r *FifoRegistry) drop(key fifoKey) {
	r.mu.Lock()
	delete(r.pipes, key)
	r.mu.Unlock()
}
