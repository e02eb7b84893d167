package worker

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func newLLMMachine(onT func(from, to Status)) *Machine {
	return NewMachine(MachineConfig{
		Initial:      StatusIdle,
		Ready:        StatusReady,
		Done:         StatusAnsweringDone,
		Failed:       StatusInitFailed,
		OnTransition: onT,
	})
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestMachineHistoryAndReadyLatch(t *testing.T) {
	m := newLLMMachine(nil)
	if closed(m.Ready()) {
		t.Fatal("ready latch set while IDLE")
	}
	for _, s := range []Status{StatusWaitForDependency, StatusStarting, StatusInitializing, StatusReady} {
		m.Apply(s)
	}
	if !closed(m.Ready()) {
		t.Fatal("ready latch not set in READY")
	}
	m.Apply(StatusAnswering)
	if closed(m.Ready()) {
		t.Fatal("ready latch still set in ANSWERING")
	}
	m.Apply(StatusAnsweringDone)
	m.Apply(StatusReady)
	want := []Status{StatusIdle, StatusWaitForDependency, StatusStarting, StatusInitializing, StatusReady, StatusAnswering, StatusAnsweringDone, StatusReady}
	if got := m.History(); !slices.Equal(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestMachineHistoryIsSnapshot(t *testing.T) {
	m := newLLMMachine(nil)
	h := m.History()
	m.Apply(StatusStarting)
	if len(h) != 1 {
		t.Fatalf("snapshot changed: %v", h)
	}
	h[0] = StatusReady
	if m.History()[0] != StatusIdle {
		t.Fatal("caller mutation leaked into machine history")
	}
}

func TestMachineCompletionLatch(t *testing.T) {
	m := newLLMMachine(nil)
	m.Apply(StatusReady)
	m.Apply(StatusAnswering)
	done := m.Completed()
	if closed(done) {
		t.Fatal("completion set before done")
	}
	m.Apply(StatusAnsweringDone)
	if !closed(done) {
		t.Fatal("completion not set on ANSWERING_DONE")
	}
	m.ClearCompletion()
	if closed(m.Completed()) {
		t.Fatal("completion still set after clear")
	}
}

func TestMachineFailedIsAbsorbing(t *testing.T) {
	m := newLLMMachine(nil)
	m.Apply(StatusInitializing)
	if !m.Apply(StatusInitFailed) {
		t.Fatal("apply INIT_FAILED refused")
	}
	if !closed(m.Failed()) {
		t.Fatal("failed latch not set")
	}
	if m.Apply(StatusReady) {
		t.Fatal("transition out of INIT_FAILED accepted")
	}
	if m.CompareAndApply([]Status{StatusInitFailed}, StatusIdle) {
		t.Fatal("compare-and-apply out of INIT_FAILED accepted")
	}
	if m.Status() != StatusInitFailed {
		t.Fatalf("status = %s", m.Status())
	}
}

func TestMachineCompareAndApply(t *testing.T) {
	m := newLLMMachine(nil)
	if m.CompareAndApply([]Status{StatusReady}, StatusAnswering) {
		t.Fatal("applied from wrong status")
	}
	if !m.CompareAndApply([]Status{StatusIdle}, StatusWaitForDependency) {
		t.Fatal("expected transition from IDLE")
	}
	if len(m.History()) != 2 {
		t.Fatalf("history = %v", m.History())
	}
}

func TestMachineOnTransition(t *testing.T) {
	var got [][2]Status
	m := newLLMMachine(func(from, to Status) { got = append(got, [2]Status{from, to}) })
	m.Apply(StatusStarting)
	m.Apply(StatusReady)
	want := [][2]Status{{StatusIdle, StatusStarting}, {StatusStarting, StatusReady}}
	if !slices.Equal(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestMachineReadyBroadcast(t *testing.T) {
	m := newLLMMachine(nil)
	const waiters = 5
	var wg sync.WaitGroup
	woke := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-m.Ready():
				woke <- struct{}{}
			case <-time.After(2 * time.Second):
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	m.Apply(StatusReady)
	wg.Wait()
	if len(woke) != waiters {
		t.Fatalf("woke %d of %d waiters", len(woke), waiters)
	}
}
