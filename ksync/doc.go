// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ksync implements the synchronization primitives of the kernel
// core (spec §4.1): an interrupt-flag-aware spinlock, a FIFO counting
// semaphore with blocking/interruptible/timed/non-blocking acquire
// variants, a mutex and reader-writer lock built on top of the semaphore,
// an ordered-store/load atomic word, and the lock-tracing hook surface
// used by the debugger-assisted diagnostics.
package ksync
