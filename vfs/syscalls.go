// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"log"

	"github.com/christianb93/ctos-core/kerrno"
	"github.com/christianb93/ctos-core/vfs/pipe"
)

// System is the process-lifetime singleton set of global state (spec §5
// "Process-wide state: the mount graph, the open-file list, the device
// registry"): each has exactly one designated lock, and all mutation goes
// through its owner.
type System struct {
	Mounts   *MountGraph
	Files    *OpenFileList
	Devices  *DeviceRegistry
	Drivers  *DriverRegistry
	Fifos    *FifoRegistry
	Root     *Inode
	MaxDescs int
	Logger   *log.Logger
	Debug    bool
}

// NewSystem wires up a System around an already-mounted root inode.
func NewSystem(root *Inode, opts Options) *System {
	opts = opts.withDefaults()
	return &System{
		Mounts:   NewMountGraph(),
		Files:    NewOpenFileList(opts.MaxOpenFiles),
		Devices:  NewDeviceRegistry(),
		Drivers:  NewDriverRegistry(),
		Fifos:    NewFifoRegistry(opts.SignalSink),
		Root:     root,
		MaxDescs: opts.MaxDescriptors,
		Logger:   opts.Logger,
		Debug:    opts.Debug,
	}
}

// resolver returns a path Resolver bound to this system's mount graph.
func (s *System) resolver() *Resolver {
	return &Resolver{Mounts: s.Mounts, Root: s.Root}
}

// ProcessFS is the per-process file-system state: cwd, descriptor table,
// umask, and its own spinlocks (spec §3 "Process file-system state").
type ProcessFS struct {
	sys   *System
	lock  spinlockPlaceholder
	Cwd   *Inode // nil means root
	Umask uint32
	Descs *DescriptorTable

	// ControllingTTY is not set by anything in this module: Open does not
	// attach a terminal as the process's controlling terminal.
	ControllingTTY interface{}
}

// spinlockPlaceholder stands in for the "own spinlocks" attribute of
// Process file-system state (spec §3) and guards nothing. The descriptor
// table has its own lock; Chdir and Fork read and replace Cwd without
// taking any lock.
type spinlockPlaceholder struct{}

// NewProcessFS returns a process rooted at sys's root inode with an empty
// descriptor table.
func NewProcessFS(sys *System) *ProcessFS {
	return &ProcessFS{sys: sys, Descs: NewDescriptorTable(sys.MaxDescs)}
}

// Open implements spec §4.4 open(path, flags, mode).
func (p *ProcessFS) Open(path string, flags int, mode uint32) (int, kerrno.Errno) {
	r := p.sys.resolver()

	parent, name, errno := r.ResolveParent(path, p.Cwd)
	if errno != kerrno.OK {
		return -1, errno
	}

	parent.Lock.Lock()
	child, lookupErrno := r.lookupChildNoLock(parent, name)

	var target *Inode
	switch {
	case lookupErrno == kerrno.OK:
		if flags&OCreate != 0 && flags&OExcl != 0 {
			parent.Lock.Unlock()
			child.Release()
			return -1, kerrno.ErrExists
		}
		target = child
	case lookupErrno == kerrno.ErrNotFound && flags&OCreate != 0:
		created, createErrno := parent.Ops.Create(parent, name, mode)
		if createErrno != kerrno.OK {
			parent.Lock.Unlock()
			return -1, createErrno
		}
		target = created
	default:
		parent.Lock.Unlock()
		return -1, lookupErrno
	}
	parent.Lock.Unlock()

	if flags&OTruncate != 0 && target.IsRegular() && flags&OWrite != 0 {
		target.Lock.Lock()
		errno := target.Ops.Truncate(target, 0)
		target.Lock.Unlock()
		if errno != kerrno.OK {
			target.Release()
			return -1, errno
		}
	}

	if target.IsCharDev() {
		if errno := p.sys.Devices.OpenChar(target, flags); errno != kerrno.OK {
			target.Release()
			return -1, errno
		}
	}

	var of *OpenFile
	if target.IsFIFO() {
		// A FIFO's data never passes through the inode at all: the
		// inode just names the shared pipe.Pipe, released here in
		// favor of the pipe endpoint's own reference counting
		// (spec §4.5 extended to named pipes).
		end, errno := p.sys.Fifos.open(target, flags&(ORead|OWrite))
		target.Release()
		if errno != kerrno.OK {
			return -1, errno
		}
		of = newOpenFile(KindPipe, nil, end, flags)
	} else {
		of = newOpenFile(KindInode, target, nil, flags)
	}
	if errno := p.sys.Files.add(of); errno != kerrno.OK {
		if of.Kind == KindInode {
			target.Release()
		} else {
			of.Pipe.Close()
		}
		return -1, errno
	}

	descFlags := 0
	if flags&OCloExec != 0 {
		descFlags = DescCloseOnExec
	}
	fd, errno := p.Descs.allocate(of, descFlags)
	if errno != kerrno.OK {
		p.sys.Files.remove(of)
		target.Release()
		return -1, errno
	}
	return fd, kerrno.OK
}

// Close implements spec §4.4 close(fd).
func (p *ProcessFS) Close(fd int) kerrno.Errno {
	of, errno := p.Descs.extract(fd)
	if errno != kerrno.OK {
		return errno
	}
	if of.dropRef() {
		releaseOpenFile(p.sys, of)
	}
	return kerrno.OK
}

// Read implements spec §4.4 read.
func (p *ProcessFS) Read(fd int, buf []byte) (int, kerrno.Errno) {
	of, _, errno := p.Descs.lookup(fd)
	if errno != kerrno.OK {
		return -1, errno
	}
	defer releaseRef(p.sys, of)

	switch of.Kind {
	case KindInode:
		return p.sys.readInode(of, buf)
	case KindPipe:
		return of.Pipe.Read(buf, of.Flags&ONonBlock != 0)
	default:
		return -1, kerrno.ErrInvalid
	}
}

func (s *System) readInode(of *OpenFile, buf []byte) (int, kerrno.Errno) {
	of.cursorSem.Down()
	defer of.cursorSem.Up()

	ino := of.Inode
	if ino.IsCharDev() {
		return s.Devices.ReadChar(ino, buf, of.Flags)
	}

	ino.Lock.RLock()
	n, errno := ino.Ops.Read(ino, buf, of.cursor)
	ino.Lock.RUnlock()
	if errno == kerrno.OK {
		of.cursor += int64(n)
	}
	return n, errno
}

// Write implements spec §4.4 write, including the APPEND-mode cursor
// reset ("reset to the current size under the inode's write lock
// immediately before the write").
func (p *ProcessFS) Write(fd int, buf []byte) (int, kerrno.Errno) {
	of, _, errno := p.Descs.lookup(fd)
	if errno != kerrno.OK {
		return -1, errno
	}
	defer releaseRef(p.sys, of)

	switch of.Kind {
	case KindInode:
		return p.sys.writeInode(of, buf)
	case KindPipe:
		return of.Pipe.Write(buf, of.Flags&ONonBlock != 0)
	default:
		return -1, kerrno.ErrInvalid
	}
}

func (s *System) writeInode(of *OpenFile, buf []byte) (int, kerrno.Errno) {
	of.cursorSem.Down()
	defer of.cursorSem.Up()

	ino := of.Inode
	if ino.IsCharDev() {
		return s.Devices.WriteChar(ino, buf)
	}

	ino.Lock.Lock()
	if of.Flags&OAppend != 0 {
		of.cursor = ino.Size
	}
	n, errno := ino.Ops.Write(ino, buf, of.cursor)
	ino.Lock.Unlock()
	if errno == kerrno.OK {
		of.cursor += int64(n)
	}
	return n, errno
}

// Seek implements spec §4.4 seek, rejecting overflow/negative results and
// treating seek on any non-regular, non-character file kind as out of
// range (spec §9 open question 3).
func (p *ProcessFS) Seek(fd int, offset int64, whence int) (int64, kerrno.Errno) {
	of, _, errno := p.Descs.lookup(fd)
	if errno != kerrno.OK {
		return -1, errno
	}
	defer releaseRef(p.sys, of)

	if of.Kind != KindInode || (!of.Inode.IsRegular() && !of.Inode.IsCharDev()) {
		return -1, kerrno.ErrRange
	}

	of.cursorSem.Down()
	defer of.cursorSem.Up()

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = of.cursor
	case SeekEnd:
		of.Inode.Lock.RLock()
		base = of.Inode.Size
		of.Inode.Lock.RUnlock()
	default:
		return -1, kerrno.ErrInvalid
	}

	next := base + offset
	if next < 0 {
		return -1, kerrno.ErrRange
	}
	of.cursor = next

	if of.Inode.IsCharDev() {
		if errno := p.sys.Devices.SeekChar(of.Inode, next); errno != kerrno.OK {
			return -1, errno
		}
	}
	return next, kerrno.OK
}

// Seek whence values.
const (
	SeekSet = iota
	SeekCur
	SeekEnd
)

// Dup implements dup(fd).
func (p *ProcessFS) Dup(fd int) (int, kerrno.Errno) { return p.Descs.dup(fd) }

// Dup2 implements dup2(fd, newfd).
func (p *ProcessFS) Dup2(fd, newfd int) kerrno.Errno {
	return p.Descs.dup2(fd, newfd, p.sys)
}

// Fork implements spec §4.4 fork/clone: copy the descriptor table
// slot-for-slot (incrementing refcounts), copy cwd (with an inode
// refcount increment) and umask.
func (p *ProcessFS) Fork() *ProcessFS {
	child := &ProcessFS{
		sys:   p.sys,
		Cwd:   p.Cwd,
		Umask: p.Umask,
		Descs: p.Descs.cloneTable(),
	}
	if child.Cwd != nil {
		child.Cwd.Clone()
	}
	return child
}

// Exec implements spec §4.4 exec: close every close-on-exec slot and every
// slot referencing a directory inode.
func (p *ProcessFS) Exec() {
	p.Descs.closeOnExec(p.sys)
}

// Chdir resolves path and, on success, replaces the process's cwd.
func (p *ProcessFS) Chdir(path string) kerrno.Errno {
	r := p.sys.resolver()
	target, errno := r.Resolve(path, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	if !target.IsDir() {
		target.Release()
		return kerrno.ErrNotDir
	}
	if p.Cwd != nil {
		p.Cwd.Release()
	}
	p.Cwd = target
	return kerrno.OK
}

// Unlink implements spec §6 system call unlink(path, flags): remove path's
// directory entry, taking the child's lock before the parent's (spec §5
// rule 5 "child before parent").
func (p *ProcessFS) Unlink(path string, flags int) kerrno.Errno {
	r := p.sys.resolver()
	parent, name, errno := r.ResolveParent(path, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	defer parent.Release()

	child, errno := r.lookupChild(parent, name)
	if errno != kerrno.OK {
		return errno
	}
	defer child.Release()

	lockChildParent(child, parent)
	errno = parent.Ops.Unlink(parent, name, flags)
	unlockChildParent(child, parent)
	return errno
}

// Link implements spec §6 system call link(oldpath, newpath): add a new
// directory entry naming the same inode oldpath resolves to. Directories and
// cross-device targets are rejected (spec §6; kerrno.ErrCrossDevice "returned
// when an operation (link, rename) spans two file systems").
func (p *ProcessFS) Link(oldpath, newpath string) kerrno.Errno {
	r := p.sys.resolver()

	target, errno := r.Resolve(oldpath, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	defer target.Release()
	if target.IsDir() {
		return kerrno.ErrPermission
	}

	newParent, newName, errno := r.ResolveParent(newpath, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	defer newParent.Release()

	if target.Sb.DeviceID() != newParent.Sb.DeviceID() {
		return kerrno.ErrCrossDevice
	}

	lockChildParent(target, newParent)
	defer unlockChildParent(target, newParent)

	if existing, errno := r.lookupChildNoLock(newParent, newName); errno == kerrno.OK {
		existing.Release()
		return kerrno.ErrExists
	}
	return newParent.Ops.Link(newParent, newName, target)
}

// Rename implements spec §6 system call rename(oldpath, newpath). InodeOps
// has no dedicated rename hook, so it is composed from Link followed by
// Unlink (spec §6 driver contract). Because two distinct parent directories
// plus the target inode may all need locking at once, this uses the general
// address-ordered lockInodes rather than the single-pair lockChildParent
// (spec §5 rule 5 generalized to more than one parent).
func (p *ProcessFS) Rename(oldpath, newpath string) kerrno.Errno {
	r := p.sys.resolver()

	oldParent, oldName, errno := r.ResolveParent(oldpath, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	defer oldParent.Release()

	newParent, newName, errno := r.ResolveParent(newpath, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	defer newParent.Release()

	target, errno := r.lookupChild(oldParent, oldName)
	if errno != kerrno.OK {
		return errno
	}
	defer target.Release()

	if target.Sb.DeviceID() != newParent.Sb.DeviceID() {
		return kerrno.ErrCrossDevice
	}
	if oldParent == newParent && oldName == newName {
		return kerrno.OK
	}

	locked := lockInodes(target, oldParent, newParent)
	defer unlockInodes(locked)

	if existing, errno := r.lookupChildNoLock(newParent, newName); errno == kerrno.OK {
		existing.Release()
		return kerrno.ErrExists
	}

	if errno := newParent.Ops.Link(newParent, newName, target); errno != kerrno.OK {
		return errno
	}
	return oldParent.Ops.Unlink(oldParent, oldName, 0)
}

// Mkdir implements spec §6 system call mkdir(path, mode).
func (p *ProcessFS) Mkdir(path string, mode uint32) kerrno.Errno {
	r := p.sys.resolver()
	parent, name, errno := r.ResolveParent(path, p.Cwd)
	if errno != kerrno.OK {
		return errno
	}
	defer parent.Release()

	parent.Lock.Lock()
	if existing, errno := r.lookupChildNoLock(parent, name); errno == kerrno.OK {
		existing.Release()
		parent.Lock.Unlock()
		return kerrno.ErrExists
	}

	child, errno := parent.Ops.Create(parent, name, mode|ModeDir)
	parent.Lock.Unlock()
	if errno != kerrno.OK {
		return errno
	}
	// mkdir does not keep the new directory open (spec §6).
	child.Release()
	return kerrno.OK
}

// Readdir implements spec §6 system call readdir(fd, index), returning one
// entry per call until InodeOps.GetDirEntry reports ErrNotFound ("no more
// entries", spec §6).
func (p *ProcessFS) Readdir(fd int, index int) (DirEntry, kerrno.Errno) {
	of, _, errno := p.Descs.lookup(fd)
	if errno != kerrno.OK {
		return DirEntry{}, errno
	}
	defer releaseRef(p.sys, of)

	if of.Kind != KindInode || !of.Inode.IsDir() {
		return DirEntry{}, kerrno.ErrNotDir
	}

	ino := of.Inode
	ino.Lock.RLock()
	defer ino.Lock.RUnlock()
	return ino.Ops.GetDirEntry(ino, index)
}

// Fcntl command values (spec §6 fcntl: "descriptor flag get/set, file-status
// flag get/set").
const (
	FGetFD = iota
	FSetFD
	FGetFL
	FSetFL
)

// Fcntl implements the descriptor-flag and file-status-flag get/set commands
// of spec §6's fcntl (dup-to-lowest-free is covered separately by Dup).
func (p *ProcessFS) Fcntl(fd, cmd, arg int) (int, kerrno.Errno) {
	switch cmd {
	case FGetFD:
		return p.Descs.getDescFlags(fd)
	case FSetFD:
		return 0, p.Descs.setDescFlags(fd, arg)
	case FGetFL:
		of, _, errno := p.Descs.lookup(fd)
		if errno != kerrno.OK {
			return -1, errno
		}
		defer releaseRef(p.sys, of)
		return of.statusFlags(), kerrno.OK
	case FSetFL:
		of, _, errno := p.Descs.lookup(fd)
		if errno != kerrno.OK {
			return -1, errno
		}
		defer releaseRef(p.sys, of)
		of.setStatusFlags(arg)
		return 0, kerrno.OK
	default:
		return -1, kerrno.ErrInvalid
	}
}

// Pipe implements spec §6 system call "pipe": it creates an unnamed pipe
// private to this call (one reader, one writer) and returns descriptors for
// both ends, the read end first.
func (p *ProcessFS) Pipe() (readFD, writeFD int, errno kerrno.Errno) {
	r, w := pipe.NewPair(pipe.DefaultCapacity, p.sys.pipeSignal())

	rOf := newOpenFile(KindPipe, nil, r, ORead)
	if errno = p.sys.Files.add(rOf); errno != kerrno.OK {
		r.Close()
		w.Close()
		return -1, -1, errno
	}
	wOf := newOpenFile(KindPipe, nil, w, OWrite)
	if errno = p.sys.Files.add(wOf); errno != kerrno.OK {
		p.sys.Files.remove(rOf)
		r.Close()
		w.Close()
		return -1, -1, errno
	}

	readFD, errno = p.Descs.allocate(rOf, 0)
	if errno != kerrno.OK {
		releaseOpenFile(p.sys, rOf)
		releaseOpenFile(p.sys, wOf)
		return -1, -1, errno
	}
	writeFD, errno = p.Descs.allocate(wOf, 0)
	if errno != kerrno.OK {
		p.Descs.extract(readFD)
		releaseOpenFile(p.sys, rOf)
		releaseOpenFile(p.sys, wOf)
		return -1, -1, errno
	}
	return readFD, writeFD, kerrno.OK
}

// pipeSignal exposes the System's configured broken-pipe sink to Pipe's
// anonymous pair; the FIFO registry carries its own copy for named pipes.
func (s *System) pipeSignal() pipe.SignalSink {
	return s.Fifos.signal
}

// releaseRef drops the extra reference Read/Write/Seek's lookup took.
func releaseRef(sys *System, of *OpenFile) {
	if of.dropRef() {
		releaseOpenFile(sys, of)
	}
}

// releaseOpenFile tears an open file down once its reference count has
// reached zero: remove from the global list, release inode/pipe/socket
// references, and invoke the character-device close hook if applicable
// (spec §4.4). The caller must not be holding any spinlock, since these
// hooks may block (spec §5 hazards).
func releaseOpenFile(sys *System, of *OpenFile) {
	sys.Files.remove(of)
	switch of.Kind {
	case KindInode:
		if of.Inode.IsCharDev() {
			sys.Devices.CloseChar(of.Inode)
		}
		of.Inode.Release()
	case KindPipe:
		of.Pipe.Close()
	}
}
