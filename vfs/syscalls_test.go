// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"bytes"
	"testing"

	"github.com/christianb93/ctos-core/kerrno"
)

func newTestSystem(t *testing.T) (*memFS, *System, *ProcessFS) {
	t.Helper()
	fs, root := newMemRoot(1)
	sys := NewSystem(root, Options{})
	return fs, sys, NewProcessFS(sys)
}

func TestOpenCreateWriteReadRoundTrip(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, errno := p.Open("/greeting", OCreate|OWrite|ORead, ModeRegular)
	if errno != kerrno.OK {
		t.Fatalf("Open create: %v", errno)
	}

	n, errno := p.Write(fd, []byte("hello"))
	if errno != kerrno.OK || n != 5 {
		t.Fatalf("Write: n=%d errno=%v", n, errno)
	}

	if _, errno := p.Seek(fd, 0, SeekSet); errno != kerrno.OK {
		t.Fatalf("Seek: %v", errno)
	}

	buf := make([]byte, 5)
	n, errno = p.Read(fd, buf)
	if errno != kerrno.OK || n != 5 {
		t.Fatalf("Read: n=%d errno=%v", n, errno)
	}
	if !bytes.Equal(buf, []byte("hello")) {
		t.Fatalf("unexpected read content %q", buf)
	}

	if errno := p.Close(fd); errno != kerrno.OK {
		t.Fatalf("Close: %v", errno)
	}
}

func TestOpenExclFailsWhenExists(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, errno := p.Open("/f", OCreate|OWrite, ModeRegular)
	if errno != kerrno.OK {
		t.Fatalf("first create: %v", errno)
	}
	p.Close(fd)

	if _, errno := p.Open("/f", OCreate|OExcl|OWrite, ModeRegular); errno != kerrno.ErrExists {
		t.Fatalf("expected ErrExists, got %v", errno)
	}
}

func TestAppendResetsCursorToSize(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/log", OCreate|OWrite, ModeRegular)
	p.Write(fd, []byte("aaaa"))
	p.Close(fd)

	fd2, errno := p.Open("/log", OWrite|OAppend, 0)
	if errno != kerrno.OK {
		t.Fatalf("reopen: %v", errno)
	}
	n, errno := p.Write(fd2, []byte("bb"))
	if errno != kerrno.OK || n != 2 {
		t.Fatalf("append write: n=%d errno=%v", n, errno)
	}
	p.Close(fd2)

	fd3, _ := p.Open("/log", ORead, 0)
	buf := make([]byte, 6)
	n, errno = p.Read(fd3, buf)
	if errno != kerrno.OK || n != 6 || string(buf) != "aaaabb" {
		t.Fatalf("expected 'aaaabb', got %q (n=%d errno=%v)", buf[:n], n, errno)
	}
	p.Close(fd3)
}

func TestSeekRejectsDirectory(t *testing.T) {
	fs, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	dir, _ := fs.Create(sys.Root, "d", ModeDir)
	dir.Release()

	fd, errno := p.Open("/d", ORead, 0)
	if errno != kerrno.OK {
		t.Fatalf("open dir: %v", errno)
	}
	if _, errno := p.Seek(fd, 0, SeekSet); errno != kerrno.ErrRange {
		t.Fatalf("expected ErrRange seeking a directory, got %v", errno)
	}
	p.Close(fd)
}

func TestDupSharesCursor(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/f", OCreate|OWrite|ORead, ModeRegular)
	p.Write(fd, []byte("0123456789"))
	p.Seek(fd, 0, SeekSet)

	dup, errno := p.Dup(fd)
	if errno != kerrno.OK {
		t.Fatalf("Dup: %v", errno)
	}

	buf := make([]byte, 4)
	p.Read(fd, buf)
	// Both descriptors share one OpenFile, so the cursor moved by the read
	// through fd must be visible to dup too (spec §3 "duplicating
	// preserves open-file identity").
	n, errno := p.Read(dup, buf)
	if errno != kerrno.OK || n != 4 || string(buf) != "4567" {
		t.Fatalf("expected shared cursor to continue at '4567', got %q", buf[:n])
	}

	p.Close(fd)
	p.Close(dup)
}

func TestDup2ClosesTarget(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fdA, _ := p.Open("/a", OCreate|OWrite, ModeRegular)
	fdB, _ := p.Open("/b", OCreate|OWrite, ModeRegular)

	if errno := p.Dup2(fdA, fdB); errno != kerrno.OK {
		t.Fatalf("Dup2: %v", errno)
	}

	n, errno := p.Write(fdB, []byte("x"))
	if errno != kerrno.OK || n != 1 {
		t.Fatalf("write through dup2'd fd: n=%d errno=%v", n, errno)
	}
	p.Close(fdA)
	p.Close(fdB)
}

func TestForkClonesDescriptorTable(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/shared", OCreate|OWrite, ModeRegular)
	child := p.Fork()

	if _, errno := child.Write(fd, []byte("y")); errno != kerrno.OK {
		t.Fatalf("child write through inherited fd: %v", errno)
	}
	p.Close(fd)
	child.Close(fd)
}

func TestExecClosesCloseOnExecAndDirectories(t *testing.T) {
	fs, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	dir, _ := fs.Create(sys.Root, "d", ModeDir)
	dir.Release()

	keepFd, _ := p.Open("/keep", OCreate|OWrite, ModeRegular)
	cloexecFd, _ := p.Open("/cloexec", OCreate|OWrite|OCloExec, ModeRegular)
	dirFd, _ := p.Open("/d", ORead, 0)

	p.Exec()

	if _, errno := p.Write(keepFd, []byte("x")); errno != kerrno.OK {
		t.Fatal("non-cloexec regular file descriptor should survive exec")
	}
	if _, errno := p.Write(cloexecFd, []byte("x")); errno != kerrno.ErrBadFD {
		t.Fatal("close-on-exec descriptor should not survive exec")
	}
	if _, errno := p.Read(dirFd, make([]byte, 1)); errno != kerrno.ErrBadFD {
		t.Fatal("directory descriptor should not survive exec")
	}
	p.Close(keepFd)
}

func TestChdirAndRelativeOpen(t *testing.T) {
	fs, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	dir, _ := fs.Create(sys.Root, "home", ModeDir)
	dir.Release()

	if errno := p.Chdir("/home"); errno != kerrno.OK {
		t.Fatalf("Chdir: %v", errno)
	}

	fd, errno := p.Open("file", OCreate|OWrite, ModeRegular)
	if errno != kerrno.OK {
		t.Fatalf("relative open after chdir: %v", errno)
	}
	p.Close(fd)

	fd2, errno := p.Open("/home/file", ORead, 0)
	if errno != kerrno.OK {
		t.Fatalf("file created relatively should be reachable by absolute path: %v", errno)
	}
	p.Close(fd2)
}

func TestUnlinkRemovesEntry(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/f", OCreate|OWrite, ModeRegular)
	p.Close(fd)

	if errno := p.Unlink("/f", 0); errno != kerrno.OK {
		t.Fatalf("Unlink: %v", errno)
	}
	if _, errno := p.Open("/f", ORead, 0); errno != kerrno.ErrNotFound {
		t.Fatalf("expected ErrNotFound after unlink, got %v", errno)
	}
}

func TestUnlinkMissingReturnsNotFound(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	if errno := p.Unlink("/nope", 0); errno != kerrno.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", errno)
	}
}

func TestLinkAddsSecondNameForSameInode(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/a", OCreate|OWrite, ModeRegular)
	p.Write(fd, []byte("hi"))
	p.Close(fd)

	if errno := p.Link("/a", "/b"); errno != kerrno.OK {
		t.Fatalf("Link: %v", errno)
	}

	fd2, errno := p.Open("/b", ORead, 0)
	if errno != kerrno.OK {
		t.Fatalf("open linked name: %v", errno)
	}
	buf := make([]byte, 2)
	n, errno := p.Read(fd2, buf)
	if errno != kerrno.OK || string(buf[:n]) != "hi" {
		t.Fatalf("expected linked name to read 'hi', got %q (%v)", buf[:n], errno)
	}
	p.Close(fd2)

	// The original name must still work -- link adds, it doesn't move.
	if errno := p.Unlink("/a", 0); errno != kerrno.OK {
		t.Fatalf("unlink original name: %v", errno)
	}
	if _, errno := p.Open("/b", ORead, 0); errno != kerrno.OK {
		t.Fatalf("linked name should survive unlinking the original: %v", errno)
	}
}

func TestLinkRejectsDirectory(t *testing.T) {
	fs, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	dir, _ := fs.Create(sys.Root, "d", ModeDir)
	dir.Release()

	if errno := p.Link("/d", "/d2"); errno != kerrno.ErrPermission {
		t.Fatalf("expected ErrPermission linking a directory, got %v", errno)
	}
}

func TestLinkRejectsExistingName(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fdA, _ := p.Open("/a", OCreate|OWrite, ModeRegular)
	p.Close(fdA)
	fdB, _ := p.Open("/b", OCreate|OWrite, ModeRegular)
	p.Close(fdB)

	if errno := p.Link("/a", "/b"); errno != kerrno.ErrExists {
		t.Fatalf("expected ErrExists, got %v", errno)
	}
}

func TestRenameMovesEntryToNewName(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/old", OCreate|OWrite, ModeRegular)
	p.Write(fd, []byte("payload"))
	p.Close(fd)

	if errno := p.Rename("/old", "/new"); errno != kerrno.OK {
		t.Fatalf("Rename: %v", errno)
	}

	if _, errno := p.Open("/old", ORead, 0); errno != kerrno.ErrNotFound {
		t.Fatalf("old name should be gone, got %v", errno)
	}

	fd2, errno := p.Open("/new", ORead, 0)
	if errno != kerrno.OK {
		t.Fatalf("open new name: %v", errno)
	}
	buf := make([]byte, 7)
	n, errno := p.Read(fd2, buf)
	if errno != kerrno.OK || string(buf[:n]) != "payload" {
		t.Fatalf("expected 'payload', got %q (%v)", buf[:n], errno)
	}
	p.Close(fd2)
}

func TestRenameToExistingNameFails(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fdA, _ := p.Open("/a", OCreate|OWrite, ModeRegular)
	p.Close(fdA)
	fdB, _ := p.Open("/b", OCreate|OWrite, ModeRegular)
	p.Close(fdB)

	if errno := p.Rename("/a", "/b"); errno != kerrno.ErrExists {
		t.Fatalf("expected ErrExists, got %v", errno)
	}
}

func TestRenameSamePathIsNoop(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/same", OCreate|OWrite, ModeRegular)
	p.Close(fd)

	if errno := p.Rename("/same", "/same"); errno != kerrno.OK {
		t.Fatalf("Rename to the same path should be a no-op, got %v", errno)
	}
	if _, errno := p.Open("/same", ORead, 0); errno != kerrno.OK {
		t.Fatalf("entry should still exist after no-op rename: %v", errno)
	}
}

func TestRenameAcrossDirectories(t *testing.T) {
	fs, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	dir, _ := fs.Create(sys.Root, "d", ModeDir)
	dir.Release()

	fd, _ := p.Open("/f", OCreate|OWrite, ModeRegular)
	p.Close(fd)

	if errno := p.Rename("/f", "/d/f"); errno != kerrno.OK {
		t.Fatalf("Rename across directories: %v", errno)
	}
	if _, errno := p.Open("/f", ORead, 0); errno != kerrno.ErrNotFound {
		t.Fatalf("source name should be gone, got %v", errno)
	}
	if _, errno := p.Open("/d/f", ORead, 0); errno != kerrno.OK {
		t.Fatalf("destination name should exist: %v", errno)
	}
}

func TestMkdirCreatesDirectory(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	if errno := p.Mkdir("/d", ModeDir); errno != kerrno.OK {
		t.Fatalf("Mkdir: %v", errno)
	}

	fd, errno := p.Open("/d/f", OCreate|OWrite, ModeRegular)
	if errno != kerrno.OK {
		t.Fatalf("create inside new directory: %v", errno)
	}
	p.Close(fd)
}

func TestMkdirRejectsExistingName(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	if errno := p.Mkdir("/d", ModeDir); errno != kerrno.OK {
		t.Fatalf("first Mkdir: %v", errno)
	}
	if errno := p.Mkdir("/d", ModeDir); errno != kerrno.ErrExists {
		t.Fatalf("expected ErrExists, got %v", errno)
	}
}

func TestReaddirListsEntries(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	if errno := p.Mkdir("/d", ModeDir); errno != kerrno.OK {
		t.Fatalf("Mkdir: %v", errno)
	}
	fd1, _ := p.Open("/d/a", OCreate|OWrite, ModeRegular)
	p.Close(fd1)
	fd2, _ := p.Open("/d/b", OCreate|OWrite, ModeRegular)
	p.Close(fd2)

	dirFd, errno := p.Open("/d", ORead, 0)
	if errno != kerrno.OK {
		t.Fatalf("open directory: %v", errno)
	}
	defer p.Close(dirFd)

	seen := make(map[string]bool)
	for i := 0; ; i++ {
		entry, errno := p.Readdir(dirFd, i)
		if errno != kerrno.OK {
			break
		}
		seen[entry.Name] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected readdir to surface 'a' and 'b', got %v", seen)
	}
}

func TestReaddirRejectsNonDirectory(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/f", OCreate|OWrite, ModeRegular)
	if _, errno := p.Readdir(fd, 0); errno != kerrno.ErrNotDir {
		t.Fatalf("expected ErrNotDir, got %v", errno)
	}
	p.Close(fd)
}

func TestFcntlDescriptorFlags(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/f", OCreate|OWrite, ModeRegular)
	defer p.Close(fd)

	if flags, errno := p.Fcntl(fd, FGetFD, 0); errno != kerrno.OK || flags != 0 {
		t.Fatalf("expected no descriptor flags initially, got flags=%d errno=%v", flags, errno)
	}
	if _, errno := p.Fcntl(fd, FSetFD, DescCloseOnExec); errno != kerrno.OK {
		t.Fatalf("FSetFD: %v", errno)
	}
	if flags, errno := p.Fcntl(fd, FGetFD, 0); errno != kerrno.OK || flags != DescCloseOnExec {
		t.Fatalf("expected DescCloseOnExec, got flags=%d errno=%v", flags, errno)
	}
}

func TestFcntlStatusFlagsPreserveAccessMode(t *testing.T) {
	_, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	fd, _ := p.Open("/f", OCreate|OWrite, ModeRegular)
	defer p.Close(fd)

	if _, errno := p.Fcntl(fd, FSetFL, ONonBlock); errno != kerrno.OK {
		t.Fatalf("FSetFL: %v", errno)
	}
	flags, errno := p.Fcntl(fd, FGetFL, 0)
	if errno != kerrno.OK {
		t.Fatalf("FGetFL: %v", errno)
	}
	if flags&ONonBlock == 0 {
		t.Fatalf("expected ONonBlock set, got %d", flags)
	}
	if flags&OWrite == 0 {
		t.Fatalf("expected OWrite preserved from open(), got %d", flags)
	}
}

func TestCharDeviceOpenReadWriteSeekClose(t *testing.T) {
	fs, sys, p := newTestSystem(t)
	defer sys.Root.Release()

	dev := newFakeCharDevice()
	sys.Devices.RegisterChar(4, dev)

	ttyNode, _ := fs.Create(sys.Root, "tty0", ModeCharDev)
	ttyNode.Major = 4
	ttyNode.Minor = 1
	ttyNode.Release()

	fd, errno := p.Open("/tty0", ORead|OWrite, 0)
	if errno != kerrno.OK {
		t.Fatalf("open char device: %v", errno)
	}
	if !dev.opened[1] {
		t.Fatal("expected device open hook to run")
	}

	buf := make([]byte, 16)
	if _, errno := p.Read(fd, buf); errno != kerrno.OK {
		t.Fatalf("read from char device: %v", errno)
	}
	if _, errno := p.Write(fd, []byte("cmd")); errno != kerrno.OK {
		t.Fatalf("write to char device: %v", errno)
	}
	if _, errno := p.Seek(fd, 3, SeekSet); errno != kerrno.OK {
		t.Fatalf("seek on char device: %v", errno)
	}
	if dev.seekTo != 3 {
		t.Fatalf("expected device seek hook called with 3, got %d", dev.seekTo)
	}

	if errno := p.Close(fd); errno != kerrno.OK {
		t.Fatalf("close char device: %v", errno)
	}
	if dev.opened[1] {
		t.Fatal("expected device close hook to run")
	}
}
