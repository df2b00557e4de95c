// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"testing"

	"github.com/christianb93/ctos-core/kerrno"
)

func TestMountAndResolveMountPoint(t *testing.T) {
	fs1, root := newMemRoot(1)
	defer root.Release()

	fs2, subFS := newMemRoot(2)
	defer subFS.Release()

	g := NewMountGraph()
	mountedOn, _ := fs1.GetInode(1) // stand-in mount point inode on device 1's tree
	defer mountedOn.Release()

	if errno := g.Mount("memfs", fs2, mountedOn, subFS); errno != kerrno.OK {
		t.Fatalf("Mount: %v", errno)
	}
	if !mountedOn.MountPoint {
		t.Fatal("MountPoint flag not set")
	}

	got, ok := g.ResolveMountPoint(mountedOn)
	if !ok || got != subFS {
		t.Fatalf("ResolveMountPoint: got %v, %v", got, ok)
	}

	back, ok := g.MountedOnFor(subFS)
	if !ok || back != mountedOn {
		t.Fatalf("MountedOnFor: got %v, %v", back, ok)
	}
}

func TestMountTwiceOnSamePointFails(t *testing.T) {
	_, root := newMemRoot(1)
	defer root.Release()
	fs2, subFS := newMemRoot(2)
	defer subFS.Release()
	fs3, subFS2 := newMemRoot(3)
	defer subFS2.Release()

	g := NewMountGraph()
	if errno := g.Mount("memfs", fs2, root, subFS); errno != kerrno.OK {
		t.Fatalf("first mount: %v", errno)
	}
	if errno := g.Mount("memfs", fs3, root, subFS2); errno != kerrno.ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", errno)
	}
}

func TestUnmountFailsWhenBusy(t *testing.T) {
	_, root := newMemRoot(1)
	defer root.Release()
	fs2, subFS := newMemRoot(2)
	defer subFS.Release()

	g := NewMountGraph()
	g.Mount("memfs", fs2, root, subFS)
	fs2.busy = true

	if errno := g.Unmount(subFS); errno != kerrno.ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", errno)
	}
}

func TestUnmountSucceedsAndClearsFlag(t *testing.T) {
	_, root := newMemRoot(1)
	defer root.Release()
	fs2, subFS := newMemRoot(2)
	defer subFS.Release()

	g := NewMountGraph()
	g.Mount("memfs", fs2, root, subFS)

	if errno := g.Unmount(subFS); errno != kerrno.OK {
		t.Fatalf("Unmount: %v", errno)
	}
	if root.MountPoint {
		t.Fatal("MountPoint flag should be cleared after unmount")
	}
	if _, ok := g.ResolveMountPoint(root); ok {
		t.Fatal("mount point should no longer resolve")
	}
}

func TestListMountsShapesRows(t *testing.T) {
	_, root := newMemRoot(1)
	defer root.Release()
	fs2, subFS := newMemRoot(2)
	defer subFS.Release()

	g := NewMountGraph()
	g.Mount("memfs", fs2, root, subFS)

	rows := g.ListMounts()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].FSType != "memfs" {
		t.Fatalf("unexpected FSType %q", rows[0].FSType)
	}
}
