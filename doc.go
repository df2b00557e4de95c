// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is a repository containing a small concurrency and I/O core:
// synchronization primitives (ksync), SMP bring-up (smp), an in-memory
// virtual file system with pipes (vfs, vfs/pipe), and a terminal line
// discipline (tty).
//
// See the package documentation under each directory for details.
package lib
