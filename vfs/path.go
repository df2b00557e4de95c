// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"strings"

	"github.com/christianb93/ctos-core/kerrno"
)

// splitPath splits a path into its slash-separated components, dropping
// empty components produced by repeated or leading/trailing slashes. It
// takes no "split" parameter (spec §9 open question 2): callers that want
// trailing-slash information call stripTrailingSlash explicitly.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// stripTrailingSlash reports whether path ends in "/" (after trimming any
// repeated trailing slashes), which Resolve uses to require the final
// inode be a directory.
func stripTrailingSlash(path string) (trimmed string, hadTrailingSlash bool) {
	trimmed = strings.TrimRight(path, "/")
	return trimmed, trimmed != path && path != ""
}

// Resolver walks paths against a Resolver's mount graph, switching into
// mounted file systems at mount points and back out on cross-mount ".."
// (spec §4.3).
type Resolver struct {
	Mounts *MountGraph
	Root   *Inode
}

// Resolve resolves path to an inode, starting at r.Root for an absolute
// path or at cwd for a relative one. The mount graph's reader lock is held
// for the entire walk (spec §4.3): the returned inode has had Clone called
// on its behalf of the caller, matching an open-file's or cwd's ownership.
func (r *Resolver) Resolve(path string, cwd *Inode) (*Inode, kerrno.Errno) {
	_, trailingSlash := stripTrailingSlash(path)
	components := splitPath(path)

	start := cwd
	if strings.HasPrefix(path, "/") || cwd == nil {
		start = r.Root
	}

	r.Mounts.RLock()
	defer r.Mounts.RUnlock()

	cur := start
	for _, comp := range components {
		next, errno := r.stepLocked(cur, comp)
		if errno != kerrno.OK {
			return nil, errno
		}
		cur = next
	}

	if trailingSlash && !cur.IsDir() {
		return nil, kerrno.ErrNotDir
	}

	cur.Clone()
	return cur, kerrno.OK
}

// ResolveParent resolves all but the last component of path, returning the
// parent directory inode (cloned) and the final component's name. It is
// used by open/create/unlink/link/rename, which need to hold the parent's
// write lock themselves around the final-component operation (spec §4.4).
func (r *Resolver) ResolveParent(path string, cwd *Inode) (*Inode, string, kerrno.Errno) {
	components := splitPath(path)
	if len(components) == 0 {
		return nil, "", kerrno.ErrInvalid
	}
	last := components[len(components)-1]
	trimmed, _ := stripTrailingSlash(path)
	dir := strings.TrimSuffix(trimmed, last)

	parent, errno := r.Resolve(dir, cwd)
	if errno != kerrno.OK {
		return nil, "", errno
	}
	if !parent.IsDir() {
		parent.Release()
		return nil, "", kerrno.ErrNotDir
	}
	return parent, last, kerrno.OK
}

// stepLocked resolves one path component from cur, following mount points
// and handling ".." cross-mount transitions. The mount graph's read lock
// must already be held by the caller.
func (r *Resolver) stepLocked(cur *Inode, comp string) (*Inode, kerrno.Errno) {
	if comp == ".." {
		if mountedOn, ok := r.Mounts.MountedOnFor(cur); ok {
			// cur is the root of a mounted file system: cross back
			// onto the parent file system, then continue ".." from
			// there (spec §4.3).
			return r.lookupChild(mountedOn, "..")
		}
		return r.lookupChild(cur, "..")
	}
	if comp == "." {
		return cur, kerrno.OK
	}

	next, errno := r.lookupChild(cur, comp)
	if errno != kerrno.OK {
		return nil, errno
	}
	if root, ok := r.Mounts.ResolveMountPoint(next); ok {
		return root, kerrno.OK
	}
	return next, kerrno.OK
}

// lookupChild scans dir's directory entries under its read lock for a
// byte-for-byte name match, then fetches the matching inode through the
// owning superblock (spec §4.3).
func (r *Resolver) lookupChild(dir *Inode, name string) (*Inode, kerrno.Errno) {
	if !dir.IsDir() {
		return nil, kerrno.ErrNotDir
	}

	dir.Lock.RLock()
	defer dir.Lock.RUnlock()
	return r.lookupChildLocked(dir, name)
}

// lookupChildNoLock is lookupChild for a caller that already holds dir's
// write lock (open's create-if-absent path resolves the final component
// under the parent's write lock, spec §4.4).
func (r *Resolver) lookupChildNoLock(dir *Inode, name string) (*Inode, kerrno.Errno) {
	if !dir.IsDir() {
		return nil, kerrno.ErrNotDir
	}
	return r.lookupChildLocked(dir, name)
}

func (r *Resolver) lookupChildLocked(dir *Inode, name string) (*Inode, kerrno.Errno) {
	for i := 0; ; i++ {
		entry, errno := dir.Ops.GetDirEntry(dir, i)
		if errno != kerrno.OK {
			return nil, kerrno.ErrNotFound
		}
		if entry.Name == name {
			return dir.Sb.GetInode(entry.InodeNumber)
		}
	}
}

// DirnameOf walks upward from ino via ".." entries, scanning each parent
// directory for the name of the child it came from, and returns the
// reconstructed absolute path (spec §4.3). Cross-mount transitions on the
// upward walk mirror those on the downward walk.
func (r *Resolver) DirnameOf(ino *Inode) (string, kerrno.Errno) {
	var segments []string
	cur := ino

	r.Mounts.RLock()
	defer r.Mounts.RUnlock()

	for cur != r.Root {
		var parent *Inode
		var errno kerrno.Errno
		// labelled is the inode whose name-in-parent is the path
		// segment for this step: for a plain inode that's cur itself,
		// but for a mount root the segment is the name of the inode
		// it is mounted on, not of the root inode from the other
		// device (spec §4.3: "cross-mount transitions on the upward
		// walk mirror those on the downward walk").
		labelled := cur

		if mountedOn, ok := r.Mounts.MountedOnFor(cur); ok {
			labelled = mountedOn
			parent, errno = r.lookupChild(mountedOn, "..")
		} else {
			parent, errno = r.lookupChild(cur, "..")
		}
		if errno != kerrno.OK {
			return "", errno
		}

		name, errno := nameInParent(parent, labelled)
		if errno != kerrno.OK {
			return "", errno
		}
		segments = append(segments, name)
		cur = parent
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return "/" + strings.Join(segments, "/"), kerrno.OK
}

// nameInParent scans parent's directory entries for the one naming child,
// by inode number.
func nameInParent(parent, child *Inode) (string, kerrno.Errno) {
	parent.Lock.RLock()
	defer parent.Lock.RUnlock()

	for i := 0; ; i++ {
		entry, errno := parent.Ops.GetDirEntry(parent, i)
		if errno != kerrno.OK {
			return "", kerrno.ErrNotFound
		}
		if entry.InodeNumber == child.Number && entry.Name != ".." && entry.Name != "." {
			return entry.Name, kerrno.OK
		}
	}
}
