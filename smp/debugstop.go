// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smp

import (
	"sync"
	"time"
)

// DebugStop coordinates a cross-CPU debug stop (spec §2 item 7): one CPU
// asks every other running CPU to suspend at its next poll point and
// record its current execution context, then waits for all of them to
// report in before returning control to the caller (a kernel debugger
// stub, typically). Resume releases every stopped CPU again.
//
// Each participating CPU's idle/interrupt-return path must call Poll once
// per loop iteration; DebugStop never preempts a CPU directly, matching
// spec §2 item 7's "cooperative, poll-driven" cross-CPU stop model.
type DebugStop struct {
	mu        sync.Mutex
	requested bool
	contexts  map[int]interface{}
	resume    chan struct{}
	total     int
}

// NewDebugStop returns a DebugStop ready to coordinate a registry with the
// given number of CPUs (including the one that will issue the stop).
func NewDebugStop(numCPUs int) *DebugStop {
	return &DebugStop{
		contexts: make(map[int]interface{}),
		total:    numCPUs,
	}
}

// Trigger requests a stop and blocks until every other CPU has reported
// its context via Poll, or timeout elapses. On success it returns a
// snapshot mapping logical CPU id to the context each CPU last passed to
// Poll. The caller itself does not call Poll and is not counted among the
// CPUs waited for.
func (d *DebugStop) Trigger(timeout time.Duration) (map[int]interface{}, bool) {
	d.mu.Lock()
	d.requested = true
	d.contexts = make(map[int]interface{})
	d.resume = make(chan struct{})
	want := d.total - 1
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		got := len(d.contexts)
		d.mu.Unlock()
		if got >= want {
			break
		}
		if time.Now().After(deadline) {
			d.mu.Lock()
			snapshot := copyContexts(d.contexts)
			d.mu.Unlock()
			return snapshot, false
		}
		time.Sleep(time.Millisecond)
	}

	d.mu.Lock()
	snapshot := copyContexts(d.contexts)
	d.mu.Unlock()
	return snapshot, true
}

// Resume releases every CPU parked in Poll by a prior Trigger.
func (d *DebugStop) Resume() {
	d.mu.Lock()
	d.requested = false
	ch := d.resume
	d.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Poll is called by each non-initiating CPU's idle or interrupt-return
// path. If a stop has been requested it records ctx as that CPU's stopped
// context and blocks until Resume is called; otherwise it returns
// immediately. cpuID identifies the calling CPU (see Registry.CurrentCPUID).
func (d *DebugStop) Poll(cpuID int, ctx interface{}) {
	d.mu.Lock()
	if !d.requested {
		d.mu.Unlock()
		return
	}
	d.contexts[cpuID] = ctx
	ch := d.resume
	d.mu.Unlock()

	<-ch
}

func copyContexts(in map[int]interface{}) map[int]interface{} {
	out := make(map[int]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
