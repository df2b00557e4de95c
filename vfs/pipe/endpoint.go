// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipe

import "github.com/christianb93/ctos-core/kerrno"

// ReadEnd and WriteEnd satisfy vfs.PipeEndpoint structurally (Go interface
// satisfaction needs no import back to vfs): one per open-file reference to
// a pipe, so Close on each side only disconnects that side, matching
// spec §3's "open file owns one reference... of the pipe, if any".
type ReadEnd struct {
	p *Pipe
}

type WriteEnd struct {
	p *Pipe
}

// NewPair creates a fresh, unshared pipe and returns its two endpoints,
// exactly the shape pipe(2) hands back (spec §6 system-call surface
// "pipe"): one reader reference, one writer reference.
func NewPair(capacity int, signal SignalSink) (*ReadEnd, *WriteEnd) {
	p := New(capacity, signal)
	return NewReadEnd(p), NewWriteEnd(p)
}

// NewReadEnd wraps an existing pipe (anonymous or a named FIFO's shared
// instance) as a read endpoint, accounting for the new reader reference
// (spec §4.5 reader/writer reference counts).
func NewReadEnd(p *Pipe) *ReadEnd {
	p.AddReader()
	return &ReadEnd{p: p}
}

// NewWriteEnd is NewReadEnd's write-side counterpart.
func NewWriteEnd(p *Pipe) *WriteEnd {
	p.AddWriter()
	return &WriteEnd{p: p}
}

func (r *ReadEnd) Read(dst []byte, nonBlocking bool) (int, kerrno.Errno) {
	return r.p.Read(dst, nonBlocking)
}

// Write on the read end of a pipe is never valid; the VFS only dispatches
// writes to open files opened for writing, so this exists to satisfy
// vfs.PipeEndpoint rather than to be called.
func (r *ReadEnd) Write(src []byte, nonBlocking bool) (int, kerrno.Errno) {
	return 0, kerrno.ErrInvalid
}

func (r *ReadEnd) Close() { r.p.DisconnectReader() }

func (w *WriteEnd) Read(dst []byte, nonBlocking bool) (int, kerrno.Errno) {
	return 0, kerrno.ErrInvalid
}

func (w *WriteEnd) Write(src []byte, nonBlocking bool) (int, kerrno.Errno) {
	return w.p.Write(src, nonBlocking)
}

func (w *WriteEnd) Close() { w.p.DisconnectWriter() }
