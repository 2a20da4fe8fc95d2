// Package session owns the editing lifecycle of the single active
// video: upload, analysis, segment selection, and generation. All state
// changes flow through one explicit machine; collaborators report
// outcomes and the machine decides the next state.
package session

import (
	"fmt"
	"sync"
)

// State is the session phase.
type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
)

// Machine tracks the session state and its last user-visible error.
// Completed is revisitable; the machine cycles for repeated edits
// within one uploaded video's lifetime.
type Machine struct {
	mu      sync.RWMutex
	state   State
	lastErr string
}

// NewMachine creates a machine in Idle.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the most recent recorded error message, empty when
// none is pending.
func (m *Machine) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Transition validates and applies one state change.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isValidTransition(m.state, to) {
		return fmt.Errorf("invalid transition: %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}

// Fail applies a failure transition and records the error message.
func (m *Machine) Fail(to State, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isValidTransition(m.state, to) {
		return fmt.Errorf("invalid transition: %s -> %s", m.state, to)
	}
	m.state = to
	m.lastErr = msg
	return nil
}

// SetError records an error without a state change, for rejections that
// are surfaced to the user but do not move the machine.
func (m *Machine) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = msg
}

// ClearError dismisses the recorded error.
func (m *Machine) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = ""
}

// Reset moves the machine to Analyzing from any state. A new upload
// always supersedes whatever was in flight.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAnalyzing
	m.lastErr = ""
}

// isValidTransition enforces the allowed session edges.
func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateAnalyzing
	case StateAnalyzing:
		return to == StateReady || to == StateIdle
	case StateReady:
		return to == StateGenerating
	case StateGenerating:
		return to == StateCompleted || to == StateReady
	case StateCompleted:
		return to == StateReady
	default:
		return false
	}
}
