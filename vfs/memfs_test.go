// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sync"

	"github.com/christianb93/ctos-core/kerrno"
)

// memFS is a minimal, wholly in-memory Driver+Superblock+InodeOps
// implementation used across this package's tests, grounded on the
// corpus's loopback test filesystems (fuse/test's loopback setup): a tree
// of nodes kept in a map, with no real backing storage. It exists purely
// to exercise vfs's core logic against a driver that obeys the contract in
// driver.go.
type memFS struct {
	mu      sync.Mutex
	device  uint64
	nodes   map[uint64]*memNode
	inodes  map[uint64]*Inode // canonical *Inode per number, for identity (mount points, address-sorted locks)
	nextIno uint64
	busy    bool
}

type memDirEntry struct {
	name string
	ino  uint64
}

type memNode struct {
	number  uint64
	mode    uint32
	data    []byte
	entries []memDirEntry
	refs    int
	major   uint32
	minor   uint32
}

func newMemFS(device uint64) *memFS {
	fs := &memFS{device: device, nodes: make(map[uint64]*memNode), inodes: make(map[uint64]*Inode), nextIno: 1}
	root := &memNode{number: 1, mode: ModeDir, refs: 1}
	root.entries = append(root.entries, memDirEntry{".", 1}, memDirEntry{"..", 1})
	fs.nodes[1] = root
	fs.nextIno = 2
	return fs
}

func (fs *memFS) Name() string            { return "memfs" }
func (fs *memFS) CanMount(device string) bool { return device == "memfs" }

func (fs *memFS) Mount(device string) (Superblock, kerrno.Errno) { return fs, kerrno.OK }

func (fs *memFS) DeviceID() uint64        { return fs.device }
func (fs *memFS) RootInodeNumber() uint64 { return 1 }
func (fs *memFS) ReleaseSuperblock()      {}
func (fs *memFS) IsBusy() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.busy
}

// GetInode returns the canonical *Inode for number, constructing it once
// and caching it thereafter: identity-based bookkeeping elsewhere in the
// package (the mount graph's MountPoint flag and pointer comparisons, the
// address-sorted multi-lock helpers) depends on a driver returning the
// same *Inode object for the same (device, number) pair every time.
func (fs *memFS) GetInode(number uint64) (*Inode, kerrno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[number]
	if !ok {
		return nil, kerrno.ErrNotFound
	}
	n.refs++

	if ino, ok := fs.inodes[number]; ok {
		ino.Size = int64(len(n.data))
		return ino, kerrno.OK
	}
	ino := NewInode(fs, number, fs, n.mode)
	ino.Major = n.major
	ino.Minor = n.minor
	ino.Size = int64(len(n.data))
	fs.inodes[number] = ino
	return ino, kerrno.OK
}

func (fs *memFS) node(number uint64) *memNode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.nodes[number]
}

// InodeOps implementation: all methods take the backing *memNode by the
// inode's Number, since memFS holds the only mutable state.

func (fs *memFS) Read(ino *Inode, p []byte, offset int64) (int, kerrno.Errno) {
	n := fs.node(ino.Number)
	if n == nil {
		return 0, kerrno.ErrNotFound
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if offset >= int64(len(n.data)) {
		return 0, kerrno.OK
	}
	c := copy(p, n.data[offset:])
	return c, kerrno.OK
}

func (fs *memFS) Write(ino *Inode, p []byte, offset int64) (int, kerrno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := fs.nodes[ino.Number]
	if n == nil {
		return 0, kerrno.ErrNotFound
	}
	end := offset + int64(len(p))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:], p)
	ino.Size = int64(len(n.data))
	return len(p), kerrno.OK
}

func (fs *memFS) Truncate(ino *Inode, size int64) kerrno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := fs.nodes[ino.Number]
	if n == nil {
		return kerrno.ErrNotFound
	}
	if size < int64(len(n.data)) {
		n.data = n.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, n.data)
		n.data = grown
	}
	ino.Size = size
	return kerrno.OK
}

func (fs *memFS) GetDirEntry(ino *Inode, index int) (DirEntry, kerrno.Errno) {
	n := fs.node(ino.Number)
	if n == nil {
		return DirEntry{}, kerrno.ErrNotFound
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if index < 0 || index >= len(n.entries) {
		return DirEntry{}, kerrno.ErrNotFound
	}
	e := n.entries[index]
	return DirEntry{Name: e.name, InodeNumber: e.ino}, kerrno.OK
}

func (fs *memFS) Create(parent *Inode, name string, mode uint32) (*Inode, kerrno.Errno) {
	fs.mu.Lock()
	p := fs.nodes[parent.Number]
	if p == nil {
		fs.mu.Unlock()
		return nil, kerrno.ErrNotFound
	}
	for _, e := range p.entries {
		if e.name == name {
			fs.mu.Unlock()
			return nil, kerrno.ErrExists
		}
	}
	number := fs.nextIno
	fs.nextIno++
	child := &memNode{number: number, mode: mode, refs: 1}
	if mode&ModeDir != 0 {
		child.entries = append(child.entries, memDirEntry{".", number}, memDirEntry{"..", parent.Number})
	}
	fs.nodes[number] = child
	p.entries = append(p.entries, memDirEntry{name, number})
	ino := NewInode(fs, number, fs, mode)
	fs.inodes[number] = ino
	fs.mu.Unlock()

	return ino, kerrno.OK
}

func (fs *memFS) Unlink(parent *Inode, name string, flags int) kerrno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := fs.nodes[parent.Number]
	if p == nil {
		return kerrno.ErrNotFound
	}
	for i, e := range p.entries {
		if e.name == name {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return kerrno.OK
		}
	}
	return kerrno.ErrNotFound
}

func (fs *memFS) Link(parent *Inode, name string, target *Inode) kerrno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := fs.nodes[parent.Number]
	if p == nil {
		return kerrno.ErrNotFound
	}
	p.entries = append(p.entries, memDirEntry{name, target.Number})
	return kerrno.OK
}

func (fs *memFS) Clone(ino *Inode) {
	fs.mu.Lock()
	if n := fs.nodes[ino.Number]; n != nil {
		n.refs++
	}
	fs.mu.Unlock()
}

func (fs *memFS) Release(ino *Inode) {
	fs.mu.Lock()
	if n := fs.nodes[ino.Number]; n != nil {
		n.refs--
	}
	fs.mu.Unlock()
}

func (fs *memFS) Flush(ino *Inode) kerrno.Errno { return kerrno.OK }

// newMemRoot returns a fresh memFS's root inode, cloned once on the
// caller's behalf, matching the ownership convention every other root
// inode in the package follows.
func newMemRoot(device uint64) (*memFS, *Inode) {
	fs := newMemFS(device)
	root, _ := fs.GetInode(1)
	return fs, root
}
