package worker

import (
	"slices"
	"sync"
)

// Machine holds the lifecycle status of one worker. Status, history and the
// latches change together under a single lock, so the readiness latch is set
// exactly when the current status is the ready status.
type Machine struct {
	mu      sync.Mutex
	status  Status
	history []Status

	readyStatus  Status
	doneStatus   Status
	failedStatus Status

	ready     *latch
	completed *latch
	failed    *latch

	onTransition func(from, to Status)
}

// MachineConfig selects which statuses drive the latches. Empty statuses
// never match.
type MachineConfig struct {
	Initial Status
	Ready   Status
	Done    Status
	Failed  Status
	// OnTransition runs under the machine lock after every applied transition.
	// It must not call back into the machine.
	OnTransition func(from, to Status)
}

// NewMachine returns a machine in the initial status with a one-entry history.
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		readyStatus:  cfg.Ready,
		doneStatus:   cfg.Done,
		failedStatus: cfg.Failed,
		ready:        newLatch(),
		completed:    newLatch(),
		failed:       newLatch(),
		onTransition: cfg.OnTransition,
	}
	m.applyLocked(cfg.Initial)
	return m
}

// Apply moves the machine to s. It reports false, changing nothing, when the
// machine is already in its absorbing failed status.
func (m *Machine) Apply(s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminalLocked() {
		return false
	}
	m.applyLocked(s)
	return true
}

// CompareAndApply moves the machine to s only if the current status is one of from.
func (m *Machine) CompareAndApply(from []Status, s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminalLocked() || !slices.Contains(from, m.status) {
		return false
	}
	m.applyLocked(s)
	return true
}

func (m *Machine) terminalLocked() bool {
	return m.failedStatus != "" && m.status == m.failedStatus
}

func (m *Machine) applyLocked(s Status) {
	prev := m.status
	m.status = s
	m.history = append(m.history, s)
	if s == m.readyStatus {
		m.ready.Set()
	} else {
		m.ready.Clear()
	}
	if m.doneStatus != "" && s == m.doneStatus {
		m.completed.Set()
	}
	if m.failedStatus != "" && s == m.failedStatus {
		m.failed.Set()
	}
	if m.onTransition != nil && prev != "" {
		m.onTransition(prev, s)
	}
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// History returns a copy of every status entered so far, oldest first.
func (m *Machine) History() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

// Ready is closed while the machine is in its ready status.
func (m *Machine) Ready() <-chan struct{} { return m.ready.C() }

// Completed is closed once the done status has been entered and until
// ClearCompletion is called.
func (m *Machine) Completed() <-chan struct{} { return m.completed.C() }

// Failed is closed once the machine has entered its failed status.
func (m *Machine) Failed() <-chan struct{} { return m.failed.C() }

// ClearCompletion consumes the completion latch.
func (m *Machine) ClearCompletion() { m.completed.Clear() }
