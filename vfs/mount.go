// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"github.com/moby/sys/mountinfo"

	"github.com/christianb93/ctos-core/kerrno"
	"github.com/christianb93/ctos-core/ksync"
)

// mountEntry is one row of the mount graph (spec §3 "Mount point", §4.3):
// a device, the inode it is mounted on, and the mounted file system's
// root inode.
type mountEntry struct {
	device    uint64
	mountedOn *Inode
	root      *Inode
	sb        Superblock
	fsType    string
}

// MountGraph is the process-wide, ordered list of mount points, guarded by
// a single reader-writer lock that also protects every mountedOn inode's
// MountPoint flag (spec §4.3).
type MountGraph struct {
	lock    *ksync.RWLock
	entries []*mountEntry
}

// NewMountGraph returns an empty mount graph.
func NewMountGraph() *MountGraph {
	return &MountGraph{lock: ksync.NewRWLock()}
}

// Mount adds a mount point: fsType names the driver for diagnostics only,
// sb is the freshly mounted superblock, mountedOn is the inode the new
// file system is mounted on, and root is sb's root inode. Mount takes one
// reference on both mountedOn and root on the caller's behalf (spec §3
// "Ownership summary").
func (g *MountGraph) Mount(fsType string, sb Superblock, mountedOn, root *Inode) kerrno.Errno {
	g.lock.Lock()
	defer g.lock.Unlock()

	if mountedOn.MountPoint {
		return kerrno.ErrBusy
	}

	mountedOn.Clone()
	root.Clone()
	mountedOn.MountPoint = true

	g.entries = append(g.entries, &mountEntry{
		device:    sb.DeviceID(),
		mountedOn: mountedOn,
		root:      root,
		sb:        sb,
		fsType:    fsType,
	})
	return kerrno.OK
}

// Unmount removes the mount point whose root inode is root. It fails with
// ErrBusy if sb reports itself busy, or if any other mount in the graph is
// mounted on an inode belonging to sb's device (spec §4.3 condition (c)).
func (g *MountGraph) Unmount(root *Inode) kerrno.Errno {
	g.lock.Lock()
	defer g.lock.Unlock()

	idx := -1
	for i, e := range g.entries {
		if e.root == root {
			idx = i
			break
		}
	}
	if idx < 0 {
		return kerrno.ErrInvalid
	}
	entry := g.entries[idx]

	if entry.sb.IsBusy() {
		return kerrno.ErrBusy
	}
	for i, e := range g.entries {
		if i == idx {
			continue
		}
		if e.mountedOn.Sb.DeviceID() == entry.device {
			return kerrno.ErrBusy
		}
	}

	g.entries = append(g.entries[:idx], g.entries[idx+1:]...)
	entry.mountedOn.MountPoint = false
	entry.mountedOn.Release()
	entry.root.Release()
	return kerrno.OK
}

// ResolveMountPoint returns the mounted file system's root inode if ino
// currently has a file system mounted on it, under the graph's read lock.
func (g *MountGraph) ResolveMountPoint(ino *Inode) (*Inode, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	if !ino.MountPoint {
		return nil, false
	}
	for _, e := range g.entries {
		if e.mountedOn == ino {
			return e.root, true
		}
	}
	return nil, false
}

// MountedOnFor returns the inode a mounted file system's root was mounted
// on, for crossing back up through "..". ok is false if root is not
// currently any mount's root (e.g. the overall system root).
func (g *MountGraph) MountedOnFor(root *Inode) (*Inode, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	for _, e := range g.entries {
		if e.root == root {
			return e.mountedOn, true
		}
	}
	return nil, false
}

// RLock/RUnlock expose the graph's reader-writer lock to the path
// resolver, which must hold it for the entire walk (spec §4.3 "The
// operation is atomic with respect to mount/unmount").
func (g *MountGraph) RLock()   { g.lock.RLock() }
func (g *MountGraph) RUnlock() { g.lock.RUnlock() }

// ListMounts returns a diagnostic snapshot of the mount graph, shaped like
// moby/sys/mountinfo.Info rows (§B of the expanded spec): ID is the
// entry's position, Major/Minor are the high and low 32 bits of the
// mounted device id, and FSType and Source both hold the file-system type
// name. Root and Mountpoint are left empty (the graph itself has no notion
// of path strings).
func (g *MountGraph) ListMounts() []mountinfo.Info {
	g.lock.RLock()
	defer g.lock.RUnlock()

	out := make([]mountinfo.Info, 0, len(g.entries))
	for i, e := range g.entries {
		out = append(out, mountinfo.Info{
			ID:     i,
			Major:  int(e.device >> 32),
			Minor:  int(e.device & 0xffffffff),
			FSType: e.fsType,
			Source: e.fsType,
		})
	}
	return out
}
