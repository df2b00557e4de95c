// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tty implements the terminal line discipline (spec §4.6): input
// processing from raw bytes into a canonical- or raw-mode read buffer,
// echo, signal-generating control characters, and the background-read
// check that pauses a read from a non-foreground process group.
package tty
