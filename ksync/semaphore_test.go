// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/christianb93/ctos-core/kerrno"
)

// TestSemaphoreDrain verifies property 2: N concurrent posters and N
// waiters drain a zero-initialized semaphore to count 0 with no waiter
// left behind.
func TestSemaphoreDrain(t *testing.T) {
	const n = 200
	sem := NewSemaphore(0)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			sem.Up()
			return nil
		})
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			sem.Down()
			return nil
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not complete: a waiter was left behind")
	}

	if errno := sem.DownNoWait(); errno != kerrno.ErrWouldBlock {
		t.Fatalf("semaphore not drained to zero, DownNoWait = %v", errno)
	}
}

func TestSemaphoreDownIntrCancelledReturnsInterrupted(t *testing.T) {
	sem := NewSemaphore(0)

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan kerrno.Errno, 1)
	go func() {
		resultCh <- sem.DownIntr(ctx)
	}()

	// Give the waiter time to block, then cancel instead of posting.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case errno := <-resultCh:
		if errno != kerrno.ErrInterrupted {
			t.Fatalf("DownIntr = %v, want ErrInterrupted", errno)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("DownIntr did not return after cancellation")
	}

	// The cancelled waiter must not have consumed a post: count is still
	// zero.
	if errno := sem.DownNoWait(); errno != kerrno.ErrWouldBlock {
		t.Fatalf("cancellation must not consume a post, DownNoWait = %v", errno)
	}
}

func TestSemaphoreDownIntrRaceWithUpNeverLosesPost(t *testing.T) {
	// Exercise the race explicitly: Up() and context cancellation fire at
	// nearly the same time. Either the waiter proceeds (consuming the
	// post) or it is cancelled and the post survives for somebody else --
	// it must never vanish.
	for i := 0; i < 200; i++ {
		sem := NewSemaphore(0)
		ctx, cancel := context.WithCancel(context.Background())

		resultCh := make(chan kerrno.Errno, 1)
		go func() {
			resultCh <- sem.DownIntr(ctx)
		}()

		upDone := make(chan struct{})
		go func() {
			sem.Up()
			close(upDone)
		}()
		go cancel()

		errno := <-resultCh
		<-upDone
		if errno == kerrno.OK {
			// Post delivered to the cancelling waiter: semaphore is back
			// to zero and balanced.
			if got := sem.DownNoWait(); got != kerrno.ErrWouldBlock {
				t.Fatalf("iteration %d: expected drained semaphore, got %v", i, got)
			}
		} else {
			// Cancelled before the post arrived: the post must still be
			// available to somebody else.
			if got := sem.DownNoWait(); got != kerrno.OK {
				t.Fatalf("iteration %d: post was lost on cancellation", i)
			}
		}
	}
}

func TestSemaphoreDownTimed(t *testing.T) {
	sem := NewSemaphore(0)
	start := time.Now()
	if errno := sem.DownTimed(30 * time.Millisecond); errno != kerrno.ErrTimeout {
		t.Fatalf("DownTimed on empty semaphore = %v, want ErrTimeout", errno)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("DownTimed returned too early: %v", elapsed)
	}

	sem.Up()
	if errno := sem.DownTimed(time.Second); errno != kerrno.OK {
		t.Fatalf("DownTimed with a pending post = %v, want OK", errno)
	}
}

func TestSemaphoreDownNoWait(t *testing.T) {
	sem := NewSemaphore(0)
	if errno := sem.DownNoWait(); errno != kerrno.ErrWouldBlock {
		t.Fatalf("DownNoWait on empty semaphore = %v, want ErrWouldBlock", errno)
	}

	sem.Up()
	if errno := sem.DownNoWait(); errno != kerrno.OK {
		t.Fatalf("DownNoWait with a pending post = %v, want OK", errno)
	}
}
