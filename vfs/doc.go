// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs implements the polymorphic inode layer, mount graph, path
// resolver, open-file table and per-process descriptor tables (spec §3,
// §4.3, §4.4, §6). File systems are pluggable: a Driver supplies a
// Superblock, and every Inode a Superblock returns carries an InodeOps
// operation vector. The package itself never interprets on-disk layout;
// it only orchestrates driver calls under the locks spec.md §5 mandates.
package vfs
