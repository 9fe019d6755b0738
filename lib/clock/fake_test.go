// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	fake.Advance(90 * time.Second)
	if got := fake.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", got)
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))
	ch := fake.After(10 * time.Second)

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(time.Unix(10, 0)) {
			t.Errorf("fire time = %v, want t+10s", fired)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))

	called := false
	timer := fake.AfterFunc(5*time.Second, func() { called = true })

	if !timer.Stop() {
		t.Error("Stop() on a pending timer should return true")
	}
	fake.Advance(10 * time.Second)
	if called {
		t.Error("stopped AfterFunc callback still ran")
	}
	if timer.Stop() {
		t.Error("second Stop() should return false")
	}
}

func TestFakeAfterFuncFiresInOrder(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))

	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))

	done := make(chan struct{})
	go func() {
		fake.Sleep(time.Minute)
		close(done)
	}()

	// Wait for the sleeper to register before advancing.
	for fake.PendingWaiters() == 0 {
		time.Sleep(time.Millisecond)
	}

	fake.Advance(time.Minute)
	<-done
}

func TestFakePendingWaiters(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))
	fake.After(time.Second)
	fake.After(2 * time.Second)

	if got := fake.PendingWaiters(); got != 2 {
		t.Errorf("PendingWaiters() = %d, want 2", got)
	}

	fake.Advance(time.Second)
	if got := fake.PendingWaiters(); got != 1 {
		t.Errorf("PendingWaiters() after firing one = %d, want 1", got)
	}
}
