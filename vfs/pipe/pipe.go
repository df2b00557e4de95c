// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipe implements the bounded ring-buffer pipe (spec §4.5): a
// fixed-capacity byte ring with separate reader/writer reference counts,
// guarded by a single lock with two condition variables ("bytes written",
// "bytes read"), grounded on the corpus's own use of sync.Cond for
// multi-waiter coordination (unionfs/memunionfs.go's mutex+cond pair).
package pipe

import (
	"sync"

	"github.com/christianb93/ctos-core/kerrno"
)

// SignalSink delivers the broken-pipe signal to a writing task whose write
// finds no readers left (spec §4.5). It is a small external-collaborator
// contract, the same shape as smp.APDriver or ksync.InterruptController:
// the process manager that actually owns signal delivery is out of scope
// (spec §1), so pipe only needs a narrow interface to reach it.
type SignalSink interface {
	SendBrokenPipe()
}

// DefaultCapacity is used by New when capacity is zero.
const DefaultCapacity = 4096

// Pipe is a fixed-capacity byte ring shared between reader and writer
// endpoints (spec §4.5). Capacity is fixed at creation; Pipe itself is
// never resized.
type Pipe struct {
	mu         sync.Mutex
	written    *sync.Cond // signaled whenever bytes are written, or writers drop to 0
	read       *sync.Cond // signaled whenever bytes are read, or readers drop to 0
	buf        []byte
	head, tail int // buf[head:head+size] (mod len(buf)) holds valid bytes
	size       int // number of valid bytes currently buffered

	readers int
	writers int
	signal  SignalSink
	onIdle  func()
}

// New returns a pipe with the given capacity (DefaultCapacity if zero) and
// no reader or writer references yet: callers obtain endpoints (and the
// corresponding reference-count bumps) through NewReadEnd/NewWriteEnd or
// the NewPair convenience for an anonymous pipe() call. signal may be nil,
// in which case a broken-pipe write is still reported as an error but no
// signal is delivered (useful for tests).
func New(capacity int, signal SignalSink) *Pipe {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pipe{buf: make([]byte, capacity), signal: signal}
	p.written = sync.NewCond(&p.mu)
	p.read = sync.NewCond(&p.mu)
	return p
}

// AddReader/AddWriter account for an additional endpoint on this side;
// NewReadEnd/NewWriteEnd call them once per endpoint. Dup and fork share
// the existing open file and do not call them.
func (p *Pipe) AddReader() {
	p.mu.Lock()
	p.readers++
	p.mu.Unlock()
}

func (p *Pipe) AddWriter() {
	p.mu.Lock()
	p.writers++
	p.mu.Unlock()
}

// SetIdleCallback registers a function to run the moment both reader and
// writer counts reach zero. A named FIFO's backing registry uses this to
// drop its own entry once a pipe is no longer referenced by any open file
// (spec §4.5 "when both counters reach zero, the pipe is destroyed").
func (p *Pipe) SetIdleCallback(fn func()) {
	p.mu.Lock()
	p.onIdle = fn
	p.mu.Unlock()
}

// DisconnectReader/DisconnectWriter decrement the corresponding side's
// count and wake the opposite side (spec §4.5 "Disconnect decrements the
// appropriate side's counter and wakes the opposite side").
func (p *Pipe) DisconnectReader() {
	p.mu.Lock()
	p.readers--
	idle := p.readers == 0 && p.writers == 0
	cb := p.onIdle
	p.mu.Unlock()
	p.written.Broadcast()
	if idle && cb != nil {
		cb()
	}
}

func (p *Pipe) DisconnectWriter() {
	p.mu.Lock()
	p.writers--
	idle := p.readers == 0 && p.writers == 0
	cb := p.onIdle
	p.mu.Unlock()
	p.read.Broadcast()
	if idle && cb != nil {
		cb()
	}
}

// Read copies up to len(dst) bytes out of the ring into dst (spec §4.5).
// It blocks while the ring is empty and at least one writer remains;
// returns 0 bytes once the ring is empty and no writer remains. In
// non-blocking mode an empty ring with writers still attached returns
// ErrWouldBlock instead of blocking.
func (p *Pipe) Read(dst []byte, nonBlocking bool) (int, kerrno.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.size == 0 && p.writers > 0 {
		if nonBlocking {
			return 0, kerrno.ErrWouldBlock
		}
		p.written.Wait()
	}
	if p.size == 0 {
		return 0, kerrno.OK
	}

	n := len(dst)
	if n > p.size {
		n = p.size
	}
	for i := 0; i < n; i++ {
		dst[i] = p.buf[(p.head+i)%len(p.buf)]
	}
	p.head = (p.head + n) % len(p.buf)
	p.size -= n

	p.read.Broadcast()
	return n, kerrno.OK
}

// Write copies len(src) bytes into the ring, blocking in chunks while it
// fills (spec §4.5). The moment no reader remains it signals the writer via
// SignalSink and stops: it returns ErrBrokenPipe if nothing was written,
// otherwise the count already buffered with OK. In non-blocking mode, a
// full ring with a reader still attached likewise stops: ErrWouldBlock if
// nothing was written, otherwise the count written so far with OK.
func (p *Pipe) Write(src []byte, nonBlocking bool) (int, kerrno.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()

	written := 0
	for written < len(src) {
		if p.readers == 0 {
			if p.signal != nil {
				p.signal.SendBrokenPipe()
			}
			if written > 0 {
				return written, kerrno.OK
			}
			return 0, kerrno.ErrBrokenPipe
		}
		free := len(p.buf) - p.size
		if free == 0 {
			if nonBlocking {
				if written > 0 {
					return written, kerrno.OK
				}
				return 0, kerrno.ErrWouldBlock
			}
			p.read.Wait()
			continue
		}

		n := len(src) - written
		if n > free {
			n = free
		}
		for i := 0; i < n; i++ {
			p.buf[(p.tail+i)%len(p.buf)] = src[written+i]
		}
		p.tail = (p.tail + n) % len(p.buf)
		p.size += n
		written += n

		p.written.Broadcast()
	}
	return written, kerrno.OK
}

// Len reports the number of bytes currently buffered, for diagnostics.
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}
