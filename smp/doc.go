// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package smp implements CPU identity and the BSP/AP bring-up handshake
// (spec §4.2), plus cross-CPU debug stop (spec §2 item 7). It deliberately
// knows nothing about the x86 instruction set: hardware access (sending
// INIT/STARTUP IPIs, reading a local-APIC-style per-CPU register) is
// expressed as small interfaces a real port implements, exactly the kind
// of external collaborator spec.md §1 and §6 carve out of the core's
// scope.
package smp
