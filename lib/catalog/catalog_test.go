// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/procinv/lib/inventory"
	"github.com/bureau-foundation/procinv/lib/testutil"
)

const receiveTimeout = 5 * time.Second

var testDevice = inventory.NewDeviceID("emulator-5554")

func processPIDs(processes []inventory.ProcessInfo) []int32 {
	var pids []int32
	for _, process := range processes {
		pids = append(pids, process.PID)
	}
	return pids
}

func addProcesses(pids ...int32) []inventory.Update {
	var batch []inventory.Update
	for _, pid := range pids {
		batch = append(batch, inventory.ProcessUpdated(inventory.ProcessInfo{PID: pid}))
	}
	return batch
}

func mustApply(t *testing.T, catalog *Catalog, batch []inventory.Update) {
	t.Helper()
	if err := catalog.Apply(batch); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

// subscription runs Track in a goroutine and forwards every diff on a
// channel.
type subscription struct {
	diffs  chan inventory.Diff
	result chan error
	cancel context.CancelFunc
}

func subscribe(t *testing.T, catalog *Catalog) *subscription {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		diffs:  make(chan inventory.Diff, 16),
		result: make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		s.result <- catalog.Track(ctx, func(diff inventory.Diff) error {
			s.diffs <- diff
			return nil
		})
	}()
	t.Cleanup(cancel)
	return s
}

func (s *subscription) next(t *testing.T) inventory.Diff {
	t.Helper()
	return testutil.RequireReceive(t, s.diffs, receiveTimeout, "waiting for diff")
}

func TestTrackInitialDiffAlwaysSent(t *testing.T) {
	catalog := New(testDevice, nil)
	sub := subscribe(t, catalog)

	if diff := sub.next(t); !diff.IsEmpty() {
		t.Errorf("initial diff of empty catalog = %+v, want empty", diff)
	}
}

func TestTrackSequence(t *testing.T) {
	catalog := New(testDevice, nil)
	mustApply(t, catalog, addProcesses(10))

	sub := subscribe(t, catalog)
	initial := sub.next(t)
	if diff := cmp.Diff([]int32{10}, processPIDs(initial.AddedProcesses)); diff != "" {
		t.Errorf("initial added (-want +got):\n%s", diff)
	}

	mustApply(t, catalog, addProcesses(11))
	added := sub.next(t)
	if diff := cmp.Diff([]int32{11}, processPIDs(added.AddedProcesses)); diff != "" {
		t.Errorf("added (-want +got):\n%s", diff)
	}

	mustApply(t, catalog, []inventory.Update{inventory.Terminated(10), inventory.Terminated(11)})
	removed := sub.next(t)
	if diff := cmp.Diff([]int32{10, 11}, processPIDs(removed.RemovedProcesses)); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
	if len(removed.AddedProcesses) != 0 || len(removed.UpdatedProcesses) != 0 {
		t.Errorf("removal diff has additions or updates: %+v", removed)
	}
}

func TestTrackSuppressesNoOpUpdates(t *testing.T) {
	catalog := New(testDevice, nil)
	name := "com.example"
	update := []inventory.Update{inventory.ProcessUpdated(inventory.ProcessInfo{PID: 7, ProcessName: &name})}
	mustApply(t, catalog, update)

	sub := subscribe(t, catalog)
	sub.next(t)

	// Re-applying an identical record changes nothing.
	mustApply(t, catalog, update)
	mustApply(t, catalog, addProcesses(8))

	next := sub.next(t)
	if diff := cmp.Diff([]int32{8}, processPIDs(next.AddedProcesses)); diff != "" {
		t.Errorf("diff after no-op (-want +got):\n%s", diff)
	}
	if len(next.UpdatedProcesses) != 0 {
		t.Errorf("no-op update reported as updated: %v", processPIDs(next.UpdatedProcesses))
	}
}

func TestTrackReportsUpdatedRecords(t *testing.T) {
	catalog := New(testDevice, nil)
	mustApply(t, catalog, addProcesses(5))
	sub := subscribe(t, catalog)
	sub.next(t)

	attached := true
	mustApply(t, catalog, []inventory.Update{
		inventory.ProxyUpdated(inventory.ProxyInfo{PID: 5, ExternalDebuggerAttached: &attached}),
	})
	next := sub.next(t)
	if len(next.AddedProxies) != 1 || next.AddedProxies[0].PID != 5 {
		t.Fatalf("AddedProxies = %+v, want pid 5", next.AddedProxies)
	}

	name := "renamed"
	mustApply(t, catalog, []inventory.Update{
		inventory.ProcessUpdated(inventory.ProcessInfo{PID: 5, ProcessName: &name}),
	})
	next = sub.next(t)
	if diff := cmp.Diff([]int32{5}, processPIDs(next.UpdatedProcesses)); diff != "" {
		t.Errorf("updated (-want +got):\n%s", diff)
	}
}

func TestSubscribersHaveIndependentBaselines(t *testing.T) {
	catalog := New(testDevice, nil)
	early := subscribe(t, catalog)
	early.next(t)

	mustApply(t, catalog, addProcesses(1))
	early.next(t)

	late := subscribe(t, catalog)
	initial := late.next(t)
	if diff := cmp.Diff([]int32{1}, processPIDs(initial.AddedProcesses)); diff != "" {
		t.Errorf("late subscriber initial diff (-want +got):\n%s", diff)
	}

	mustApply(t, catalog, addProcesses(2))
	for name, sub := range map[string]*subscription{"early": early, "late": late} {
		diff := sub.next(t)
		if d := cmp.Diff([]int32{2}, processPIDs(diff.AddedProcesses)); d != "" {
			t.Errorf("%s subscriber (-want +got):\n%s", name, d)
		}
	}
}

func TestTrackEmitErrorIsolated(t *testing.T) {
	catalog := New(testDevice, nil)
	healthy := subscribe(t, catalog)
	healthy.next(t)

	emitErr := errors.New("peer went away")
	failing := make(chan error, 1)
	initialSent := make(chan struct{})
	go func() {
		calls := 0
		failing <- catalog.Track(context.Background(), func(inventory.Diff) error {
			calls++
			if calls == 1 {
				close(initialSent)
				return nil
			}
			return emitErr
		})
	}()
	testutil.RequireClosed(t, initialSent, receiveTimeout, "waiting for initial diff")

	mustApply(t, catalog, addProcesses(3))

	if err := testutil.RequireReceive(t, failing, receiveTimeout, "waiting for failing subscriber"); err != emitErr {
		t.Errorf("Track error = %v, want the emit error unchanged", err)
	}
	diff := healthy.next(t)
	if d := cmp.Diff([]int32{3}, processPIDs(diff.AddedProcesses)); d != "" {
		t.Errorf("healthy subscriber (-want +got):\n%s", d)
	}

	mustApply(t, catalog, addProcesses(4))
	healthy.next(t)
	if got := processPIDs(catalog.Snapshot().Processes()); !cmp.Equal(got, []int32{3, 4}) {
		t.Errorf("catalog pids = %v, want [3 4]", got)
	}
}

func TestTrackCoalescesWhileEmitBlocks(t *testing.T) {
	catalog := New(testDevice, nil)
	mustApply(t, catalog, addProcesses(1))

	entered := make(chan struct{})
	release := make(chan struct{})
	diffs := make(chan inventory.Diff, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		first := true
		_ = catalog.Track(ctx, func(diff inventory.Diff) error {
			if first {
				first = false
				close(entered)
				<-release
			}
			diffs <- diff
			return nil
		})
	}()
	testutil.RequireClosed(t, entered, receiveTimeout, "waiting for initial emit")

	// Both replacements happen while the subscriber is busy and cancel
	// each other out.
	mustApply(t, catalog, addProcesses(2))
	mustApply(t, catalog, []inventory.Update{inventory.Terminated(2)})
	close(release)

	initial := testutil.RequireReceive(t, diffs, receiveTimeout, "waiting for initial diff")
	if d := cmp.Diff([]int32{1}, processPIDs(initial.AddedProcesses)); d != "" {
		t.Errorf("initial (-want +got):\n%s", d)
	}

	mustApply(t, catalog, addProcesses(3))
	next := testutil.RequireReceive(t, diffs, receiveTimeout, "waiting for diff")
	want := inventory.Diff{AddedProcesses: []inventory.ProcessInfo{{PID: 3}}}
	if d := cmp.Diff(want, next); d != "" {
		t.Errorf("diff after coalesced replacements (-want +got):\n%s", d)
	}
}

func TestTrackCancellation(t *testing.T) {
	catalog := New(testDevice, nil)
	sub := subscribe(t, catalog)
	sub.next(t)

	sub.cancel()
	err := testutil.RequireReceive(t, sub.result, receiveTimeout, "waiting for Track to return")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Track error = %v, want context.Canceled", err)
	}
}

func TestCloseEndsTracking(t *testing.T) {
	catalog := New(testDevice, nil)
	sub := subscribe(t, catalog)
	sub.next(t)

	if err := catalog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := catalog.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	err := testutil.RequireReceive(t, sub.result, receiveTimeout, "waiting for Track to return")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Track error = %v, want ErrClosed", err)
	}
	if err := catalog.Apply(addProcesses(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Apply after Close = %v, want ErrClosed", err)
	}
}

func TestApplyRejectsInvalidBatch(t *testing.T) {
	catalog := New(testDevice, nil)
	mustApply(t, catalog, addProcesses(1))

	err := catalog.Apply([]inventory.Update{inventory.Terminated(1), {}})
	if !errors.Is(err, inventory.ErrInvalidUpdate) {
		t.Fatalf("Apply error = %v, want ErrInvalidUpdate", err)
	}
	if _, ok := catalog.Snapshot().Process(1); !ok {
		t.Error("invalid batch was partially applied")
	}
}

func TestConcurrentWritersLoseNothing(t *testing.T) {
	catalog := New(testDevice, nil)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for writer := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range perWriter {
				pid := int32(writer*perWriter + index + 1)
				if err := catalog.Apply(addProcesses(pid)); err != nil {
					panic(fmt.Sprintf("Apply(%d): %v", pid, err))
				}
			}
		}()
	}
	wg.Wait()

	if got := len(catalog.Snapshot().Processes()); got != writers*perWriter {
		t.Errorf("snapshot has %d processes, want %d", got, writers*perWriter)
	}
}
