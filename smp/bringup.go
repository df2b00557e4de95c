// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smp

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// APDriver is the external collaborator that knows how to drive real
// application-processor bring-up: publishing the trampoline and
// descriptor-table pointers, sending INIT/STARTUP inter-processor
// interrupts, and polling for the AP's protected-mode-reached flag (spec
// §4.2). A production x86 port implements this against real hardware;
// tests supply a fake.
type APDriver interface {
	// PublishTrampoline copies the relocated trampoline template and
	// descriptor-table pointer to the well-known low-memory addresses.
	// It is called once, before any AP is brought up, and its failure is
	// fatal to the whole bring-up (spec §4.7).
	PublishTrampoline() error

	// SendInit asks the named raw APIC id to INIT.
	SendInit(apicID uint32) error

	// DeassertLevel issues the legacy level-deassert step required by
	// older interrupt controllers. Drivers for modern hardware may make
	// this a no-op.
	DeassertLevel(apicID uint32) error

	// SendStartup sends a STARTUP IPI to the named raw APIC id.
	SendStartup(apicID uint32) error

	// ProtectedModeReached polls whether the AP has transitioned into
	// protected mode after a STARTUP attempt.
	ProtectedModeReached(apicID uint32) bool
}

// Options configures a Coordinator.
type Options struct {
	// APICIDs lists the raw ids of the application processors to bring
	// up, in the order they will be started.
	APICIDs []uint32
}

// Coordinator drives the strictly-serial BSP/AP bring-up handshake (spec
// §4.2): for each AP it sends INIT, waits, optionally deasserts, sends
// STARTUP (twice if the first attempt did not reach protected mode), then
// waits for the AP to register itself and reach its idle loop before
// moving on to the next one.
type Coordinator struct {
	driver   APDriver
	registry *Registry
	apicIDs  []uint32
}

// NewCoordinator returns a Coordinator that will bring up, in order, the
// application processors named by opts.APICIDs, registering each one with
// registry as it comes up.
func NewCoordinator(driver APDriver, registry *Registry, opts Options) *Coordinator {
	return &Coordinator{driver: driver, registry: registry, apicIDs: opts.APICIDs}
}

// BringUp brings up every configured AP, one at a time: AP i+1 is not
// started until AP i has registered and run idleTask to completion (or
// failed). idleTask stands in for "creates its idle task, sets idle
// reached" -- a real port's goroutine backing the AP calls it once it may
// proceed, and BringUp does not continue to the next AP until it returns.
//
// BringUp uses an errgroup.Group capped at one concurrent AP (SetLimit(1))
// rather than a hand-rolled serial for-loop with manual error
// accumulation: it gives bring-up a single Wait() that returns the first
// AP's fatal error (publishing the trampoline or reaching protected mode
// are both fatal per spec §4.7) while keeping the "at most one AP brought
// up at a time" invariant enforced by the library rather than by
// convention.
func (c *Coordinator) BringUp(ctx context.Context, idleTask func(cpu *CPU) error) error {
	if err := c.driver.PublishTrampoline(); err != nil {
		return fmt.Errorf("smp: publishing trampoline: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)

	for _, apicID := range c.apicIDs {
		apicID := apicID
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return c.bringUpOne(apicID, idleTask)
		})
	}
	return g.Wait()
}

func (c *Coordinator) bringUpOne(apicID uint32, idleTask func(cpu *CPU) error) error {
	if err := c.driver.SendInit(apicID); err != nil {
		return fmt.Errorf("smp: INIT to %#x: %w", apicID, err)
	}

	if err := c.driver.DeassertLevel(apicID); err != nil {
		return fmt.Errorf("smp: level-deassert to %#x: %w", apicID, err)
	}

	reached := false
	for attempt := 0; attempt < 2 && !reached; attempt++ {
		if err := c.driver.SendStartup(apicID); err != nil {
			return fmt.Errorf("smp: STARTUP to %#x: %w", apicID, err)
		}
		reached = c.driver.ProtectedModeReached(apicID)
	}
	if !reached {
		return fmt.Errorf("smp: AP %#x never reached protected mode", apicID)
	}

	cpu := c.registry.Register(apicID)
	cpu.setState(Running)

	if idleTask == nil {
		return nil
	}
	if err := idleTask(cpu); err != nil {
		cpu.setState(Stopped)
		return fmt.Errorf("smp: AP %#x idle task setup: %w", apicID, err)
	}
	return nil
}
