// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sync"

	"github.com/christianb93/ctos-core/kerrno"
)

// DirEntry is one row of a directory listing, as returned by
// InodeOps.GetDirEntry (spec §6).
type DirEntry struct {
	Name        string
	InodeNumber uint64
}

// Unlink flag bits (spec §6: "two flag bits: force removal past the last
// hard link, and do not truncate a unlinked directory").
const (
	UnlinkForce      = 1 << iota // remove past the last hard link
	UnlinkNoTruncDir             // do not truncate an unlinked directory
)

// InodeOps is the per-file-system operation vector every inode a driver
// returns must carry (spec §6 "File-system driver contract"). The core
// never interprets on-disk layout; every method here is a pass-through to
// the driver, invoked under the locking discipline spec §5 mandates.
//
// Drivers own inode and superblock reference counts; Clone/Release are the
// only hooks the core uses to adjust them (spec §3 "reference count
// managed by driver").
type InodeOps interface {
	Read(ino *Inode, p []byte, offset int64) (int, kerrno.Errno)
	Write(ino *Inode, p []byte, offset int64) (int, kerrno.Errno)
	Truncate(ino *Inode, size int64) kerrno.Errno

	// GetDirEntry returns the directory entry at index, or ErrNotFound
	// once index is past the last entry ("no more entries", spec §6).
	GetDirEntry(ino *Inode, index int) (DirEntry, kerrno.Errno)

	Create(parent *Inode, name string, mode uint32) (*Inode, kerrno.Errno)
	Unlink(parent *Inode, name string, flags int) kerrno.Errno
	Link(parent *Inode, name string, target *Inode) kerrno.Errno

	// Clone increments ino's driver-managed reference count.
	Clone(ino *Inode)
	// Release decrements ino's driver-managed reference count; it may
	// block (spec §5 "never call under any spinlock").
	Release(ino *Inode)
	Flush(ino *Inode) kerrno.Errno
}

// Superblock is what a mounted file system exposes to the core (spec §6).
type Superblock interface {
	// DeviceID identifies the mounted device; inode identity is
	// (DeviceID, inode number).
	DeviceID() uint64
	RootInodeNumber() uint64

	GetInode(number uint64) (*Inode, kerrno.Errno)
	ReleaseSuperblock()
	IsBusy() bool
}

// Driver is a registered file-system type (spec §6: "Each driver registers
// a name, a probe predicate, and a superblock factory").
type Driver interface {
	Name() string
	CanMount(device string) bool
	Mount(device string) (Superblock, kerrno.Errno)
}

// DriverRegistry maps file-system type names to registered Drivers and
// probes them in registration order to find one willing to mount a given
// device string.
type DriverRegistry struct {
	mu      sync.Mutex
	drivers []Driver
	byName  map[string]Driver
}

// NewDriverRegistry returns an empty registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{byName: make(map[string]Driver)}
}

// Register adds d to the registry. It panics if a driver with the same
// name is already registered, matching the corpus's fail-fast registration
// idiom for static, boot-time setup.
func (r *DriverRegistry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[d.Name()]; ok {
		panic("vfs: duplicate driver name " + d.Name())
	}
	r.byName[d.Name()] = d
	r.drivers = append(r.drivers, d)
}

// Lookup returns the driver registered under name, if any.
func (r *DriverRegistry) Lookup(name string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	return d, ok
}

// Probe returns the first registered driver whose CanMount(device) is
// true, in registration order.
func (r *DriverRegistry) Probe(device string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.CanMount(device) {
			return d, true
		}
	}
	return nil, false
}
