// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sync"

	"github.com/christianb93/ctos-core/kerrno"
)

// CharDeviceOps is a character device's operation table, addressed by minor
// number within a major (spec §6 "Device driver contract"). Open/close
// bracket every file-descriptor-level open/close of an inode carrying this
// major; Read/Write/Seek back the corresponding ProcessFS calls directly,
// bypassing the regular inode read/write path entirely.
type CharDeviceOps interface {
	Open(minor uint32, flags int) kerrno.Errno
	Close(minor uint32)
	Read(minor uint32, buf []byte, flags int) (int, kerrno.Errno)
	Write(minor uint32, buf []byte) (int, kerrno.Errno)
	Seek(minor uint32, position int64) kerrno.Errno
}

// BlockDeviceOps is a block device's operation table, addressed by minor
// number. Block devices are accessed by file-system drivers (§6), never
// directly through ProcessFS; the registry only tracks them so a driver's
// Mount can look its backing device up by major/minor at mount time.
type BlockDeviceOps interface {
	Read(minor uint32, block, count int64, buf []byte) (int, kerrno.Errno)
	Write(minor uint32, block, count int64, buf []byte) (int, kerrno.Errno)
}

// DeviceRegistry is the process-wide major-number lookup table for both
// device classes (spec §3 "Block & character device registry", §5
// "device registry" owner lock). Registration happens at boot; lookups
// happen on every device-backed open/read/write/seek.
type DeviceRegistry struct {
	mu    sync.Mutex
	chars map[uint32]CharDeviceOps
	blks  map[uint32]BlockDeviceOps
}

// NewDeviceRegistry returns an empty registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		chars: make(map[uint32]CharDeviceOps),
		blks:  make(map[uint32]BlockDeviceOps),
	}
}

// RegisterChar binds major to ops. It panics on a duplicate major,
// matching DriverRegistry.Register's fail-fast boot-time discipline.
func (r *DeviceRegistry) RegisterChar(major uint32, ops CharDeviceOps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chars[major]; ok {
		panic("vfs: duplicate character device major")
	}
	r.chars[major] = ops
}

// RegisterBlock binds major to ops, as RegisterChar does for block devices.
func (r *DeviceRegistry) RegisterBlock(major uint32, ops BlockDeviceOps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blks[major]; ok {
		panic("vfs: duplicate block device major")
	}
	r.blks[major] = ops
}

func (r *DeviceRegistry) charOps(major uint32) (CharDeviceOps, kerrno.Errno) {
	r.mu.Lock()
	ops, ok := r.chars[major]
	r.mu.Unlock()
	if !ok {
		return nil, kerrno.ErrNoDevice
	}
	return ops, kerrno.OK
}

// BlockOps looks up the registered operation table for a block device
// major, for use by file-system drivers mounting on top of it.
func (r *DeviceRegistry) BlockOps(major uint32) (BlockDeviceOps, kerrno.Errno) {
	r.mu.Lock()
	ops, ok := r.blks[major]
	r.mu.Unlock()
	if !ok {
		return nil, kerrno.ErrNoDevice
	}
	return ops, kerrno.OK
}

// OpenChar dispatches to the character device backing ino's Major at open
// time (spec §4.4 open: "character device open hook").
func (r *DeviceRegistry) OpenChar(ino *Inode, flags int) kerrno.Errno {
	ops, errno := r.charOps(ino.Major)
	if errno != kerrno.OK {
		return errno
	}
	return ops.Open(ino.Minor, flags)
}

// CloseChar dispatches to the character device's close hook. It may block
// (spec §5 hazards): callers must not hold any spinlock.
func (r *DeviceRegistry) CloseChar(ino *Inode) {
	ops, errno := r.charOps(ino.Major)
	if errno != kerrno.OK {
		return
	}
	ops.Close(ino.Minor)
}

// ReadChar dispatches a character-device read, bypassing the inode's own
// Read entirely (spec §4.4 "character devices never touch the driver's
// regular read/write path").
func (r *DeviceRegistry) ReadChar(ino *Inode, buf []byte, flags int) (int, kerrno.Errno) {
	ops, errno := r.charOps(ino.Major)
	if errno != kerrno.OK {
		return -1, errno
	}
	return ops.Read(ino.Minor, buf, flags)
}

// WriteChar dispatches a character-device write.
func (r *DeviceRegistry) WriteChar(ino *Inode, buf []byte) (int, kerrno.Errno) {
	ops, errno := r.charOps(ino.Major)
	if errno != kerrno.OK {
		return -1, errno
	}
	return ops.Write(ino.Minor, buf)
}

// SeekChar dispatches a character-device seek to reposition its internal
// read/write point, after ProcessFS.Seek has already validated and
// computed the new offset.
func (r *DeviceRegistry) SeekChar(ino *Inode, position int64) kerrno.Errno {
	ops, errno := r.charOps(ino.Major)
	if errno != kerrno.OK {
		return errno
	}
	return ops.Seek(ino.Minor, position)
}
