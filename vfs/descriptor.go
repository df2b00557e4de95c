// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"github.com/christianb93/ctos-core/kerrno"
	"github.com/christianb93/ctos-core/ksync"
)

// DescFlags are per-slot descriptor flags (spec §3 "Descriptor slot").
const (
	DescCloseOnExec = 1 << iota
)

type descSlot struct {
	file  *OpenFile
	flags int
}

// DescriptorTable is a process's per-descriptor indirection array, guarded
// by its own spinlock (spec §3, §4.4). Allocation always picks the
// lowest-numbered empty slot (spec §4.4 "store in the lowest free slot",
// §6 fcntl "dup-to-lowest-free"), the descriptor-table analogue of the
// corpus's portableHandleMap free-list discipline -- indices are
// user-visible here, so unlike the corpus's handle map (which reuses any
// free slot), the search is ordered rather than LIFO.
type DescriptorTable struct {
	lock  ksync.SpinLock
	slots []descSlot
	max   int
}

// NewDescriptorTable returns an empty table bounded at max descriptors.
func NewDescriptorTable(max int) *DescriptorTable {
	return &DescriptorTable{max: max}
}

// allocateLocked finds the lowest empty slot, growing the table if needed,
// and must be called with t.lock held.
func (t *DescriptorTable) allocateLocked(of *OpenFile, flags int) (int, kerrno.Errno) {
	for i := range t.slots {
		if t.slots[i].file == nil {
			t.slots[i] = descSlot{file: of, flags: flags}
			return i, kerrno.OK
		}
	}
	if len(t.slots) >= t.max {
		return 0, kerrno.ErrTooManyFiles
	}
	t.slots = append(t.slots, descSlot{file: of, flags: flags})
	return len(t.slots) - 1, kerrno.OK
}

func (t *DescriptorTable) allocate(of *OpenFile, flags int) (int, kerrno.Errno) {
	tok := t.lock.Acquire()
	defer t.lock.Release(tok)
	return t.allocateLocked(of, flags)
}

// lookup returns the slot's OpenFile (with an extra reference taken) and
// its flags, dropping the table lock before returning (spec §4.4 "look up
// the slot under the descriptor-table lock, incrementing the open-file
// refcount; drop the descriptor-table lock").
func (t *DescriptorTable) lookup(fd int) (*OpenFile, int, kerrno.Errno) {
	tok := t.lock.Acquire()
	if fd < 0 || fd >= len(t.slots) || t.slots[fd].file == nil {
		t.lock.Release(tok)
		return nil, 0, kerrno.ErrBadFD
	}
	of := t.slots[fd].file
	flags := t.slots[fd].flags
	t.lock.Release(tok)

	of.Clone()
	return of, flags, kerrno.OK
}

// extract atomically removes and returns the slot at fd (spec §4.4
// "close(fd): atomically extract the slot").
func (t *DescriptorTable) extract(fd int) (*OpenFile, kerrno.Errno) {
	tok := t.lock.Acquire()
	defer t.lock.Release(tok)

	if fd < 0 || fd >= len(t.slots) || t.slots[fd].file == nil {
		return nil, kerrno.ErrBadFD
	}
	of := t.slots[fd].file
	t.slots[fd] = descSlot{}
	return of, kerrno.OK
}

// getDescFlags returns the per-slot flags at fd (spec §6 fcntl F_GETFD).
func (t *DescriptorTable) getDescFlags(fd int) (int, kerrno.Errno) {
	tok := t.lock.Acquire()
	defer t.lock.Release(tok)
	if fd < 0 || fd >= len(t.slots) || t.slots[fd].file == nil {
		return 0, kerrno.ErrBadFD
	}
	return t.slots[fd].flags, kerrno.OK
}

// setDescFlags replaces the per-slot flags at fd (spec §6 fcntl F_SETFD).
func (t *DescriptorTable) setDescFlags(fd, flags int) kerrno.Errno {
	tok := t.lock.Acquire()
	defer t.lock.Release(tok)
	if fd < 0 || fd >= len(t.slots) || t.slots[fd].file == nil {
		return kerrno.ErrBadFD
	}
	t.slots[fd].flags = flags
	return kerrno.OK
}

// dup stores a new reference to the same open file at the lowest free
// slot and returns its index (spec §3 "duplicating preserves open-file
// identity, resets flags").
func (t *DescriptorTable) dup(fd int) (int, kerrno.Errno) {
	of, _, errno := t.lookup(fd)
	if errno != kerrno.OK {
		return 0, errno
	}
	// lookup already took a reference on our behalf; that reference
	// becomes the new slot's reference.
	return t.allocate(of, 0)
}

// dup2 duplicates fd onto exactly newfd, closing whatever newfd held.
func (t *DescriptorTable) dup2(fd, newfd int, sys *System) kerrno.Errno {
	of, _, errno := t.lookup(fd)
	if errno != kerrno.OK {
		return errno
	}

	tok := t.lock.Acquire()
	if newfd < 0 {
		t.lock.Release(tok)
		if of.dropRef() {
			releaseOpenFile(sys, of)
		}
		return kerrno.ErrBadFD
	}
	for len(t.slots) <= newfd {
		t.slots = append(t.slots, descSlot{})
	}
	old := t.slots[newfd].file
	t.slots[newfd] = descSlot{file: of}
	t.lock.Release(tok)

	if old != nil && old.dropRef() {
		releaseOpenFile(sys, old)
	}
	return kerrno.OK
}

// cloneTable copies slot-for-slot into a fresh table for fork/clone (spec
// §4.4), incrementing every referenced open file's refcount.
func (t *DescriptorTable) cloneTable() *DescriptorTable {
	tok := t.lock.Acquire()
	defer t.lock.Release(tok)

	out := &DescriptorTable{max: t.max}
	out.slots = make([]descSlot, len(t.slots))
	copy(out.slots, t.slots)
	for _, s := range out.slots {
		if s.file != nil {
			s.file.Clone()
		}
	}
	return out
}

// closeOnExec drops every slot flagged close-on-exec, and every slot whose
// open file points at a directory inode (spec §4.4 "exec").
func (t *DescriptorTable) closeOnExec(sys *System) {
	tok := t.lock.Acquire()
	var toClose []*OpenFile
	for i := range t.slots {
		s := t.slots[i]
		if s.file == nil {
			continue
		}
		isDir := s.file.Kind == KindInode && s.file.Inode != nil && s.file.Inode.IsDir()
		if s.flags&DescCloseOnExec != 0 || isDir {
			toClose = append(toClose, s.file)
			t.slots[i] = descSlot{}
		}
	}
	t.lock.Release(tok)

	for _, of := range toClose {
		if of.dropRef() {
			releaseOpenFile(sys, of)
		}
	}
}
