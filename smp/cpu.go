// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smp

import (
	"fmt"
	"sync"

	"github.com/christianb93/ctos-core/ksync"
)

// State is a CPU's bring-up state (spec §3 CPU descriptor).
type State int

const (
	NotStarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CPU is a per-CPU descriptor (spec §3). LogicalID 0 always denotes the
// boot processor; the mapping from LogicalID to LocalAPICID is fixed once
// bring-up completes.
type CPU struct {
	LogicalID   int
	LocalAPICID uint32

	mu    sync.Mutex
	state State

	// Interrupts is this CPU's interrupt-enable-flag collaborator,
	// handed to every SpinLock that may be acquired while running on
	// this CPU.
	Interrupts ksync.InterruptController
}

func newCPU(logicalID int, apicID uint32) *CPU {
	return &CPU{
		LogicalID:   logicalID,
		LocalAPICID: apicID,
		Interrupts:  ksync.DefaultInterrupts,
	}
}

// State returns the CPU's current bring-up state.
func (c *CPU) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CPU) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// IDProvider reads the per-CPU register value (the local-APIC-id
// equivalent) that identifies the CPU the calling goroutine is currently
// running on. A real port reads this from hardware; it is supplied here
// as an external collaborator so the core stays ISA-agnostic (spec §1).
type IDProvider interface {
	// ReadLocalID returns the calling CPU's raw per-CPU register value.
	// The return is only valid for the duration of the current
	// non-preemptible section (spec §4.2): callers that may block must
	// reread.
	ReadLocalID() uint32
}

// Registry tracks the set of CPUs known to the system and maps raw
// per-CPU register values to logical CPU ids (spec §3, §4.2).
type Registry struct {
	mu       sync.Mutex
	enabled  bool
	provider IDProvider
	byAPIC   map[uint32]int
	cpus     []*CPU
}

// NewRegistry returns a Registry with only the boot processor (logical id
// 0) registered. SMP is disabled until EnableSMP is called with an
// IDProvider and the application processors.
func NewRegistry(bspAPICID uint32) *Registry {
	bsp := newCPU(0, bspAPICID)
	bsp.setState(Running)
	return &Registry{
		byAPIC: map[uint32]int{bspAPICID: 0},
		cpus:   []*CPU{bsp},
	}
}

// BSP returns the boot processor's descriptor.
func (r *Registry) BSP() *CPU {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cpus[0]
}

// CPUs returns a snapshot slice of all registered CPU descriptors, ordered
// by logical id.
func (r *Registry) CPUs() []*CPU {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CPU, len(r.cpus))
	copy(out, r.cpus)
	return out
}

// Register adds a new application processor with the given local-APIC-style
// id and returns its CPU descriptor, which carries the freshly assigned
// logical id. It is called by the
// bring-up coordinator once an AP has reached protected mode and announced
// itself (spec §4.2: "Each AP ... registers itself").
func (r *Registry) Register(apicID uint32) *CPU {
	r.mu.Lock()
	defer r.mu.Unlock()

	logical := len(r.cpus)
	cpu := newCPU(logical, apicID)
	r.cpus = append(r.cpus, cpu)
	r.byAPIC[apicID] = logical
	return cpu
}

// EnableSMP arms current-CPU-id lookups; before this is called,
// CurrentCPUID always returns 0 (spec §4.2).
func (r *Registry) EnableSMP(provider IDProvider) {
	r.mu.Lock()
	r.provider = provider
	r.enabled = true
	r.mu.Unlock()
}

// CurrentCPUID returns the logical id of the CPU executing the call. It
// returns 0 when SMP has not been enabled. The result is valid only for
// the duration of the current non-preemptible section (spec §4.2);
// callers that may subsequently block must call it again.
func (r *Registry) CurrentCPUID() int {
	r.mu.Lock()
	enabled := r.enabled
	provider := r.provider
	r.mu.Unlock()

	if !enabled {
		return 0
	}

	apicID := provider.ReadLocalID()

	r.mu.Lock()
	defer r.mu.Unlock()
	logical, ok := r.byAPIC[apicID]
	if !ok {
		panic(fmt.Sprintf("smp: unregistered CPU id %#x", apicID))
	}
	return logical
}

// CurrentCPU returns the full descriptor for CurrentCPUID(), primarily so
// callers can reach its Interrupts collaborator for SpinLock use.
func (r *Registry) CurrentCPU() *CPU {
	r.mu.Lock()
	cpus := r.cpus
	r.mu.Unlock()
	return cpus[r.CurrentCPUID()]
}
