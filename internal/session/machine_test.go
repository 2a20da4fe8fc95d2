package session

import "testing"

func TestMachineValidTransitions(t *testing.T) {
	steps := []struct {
		to   State
		want State
	}{
		{StateAnalyzing, StateAnalyzing},
		{StateReady, StateReady},
		{StateGenerating, StateGenerating},
		{StateCompleted, StateCompleted},
		{StateReady, StateReady},
		{StateGenerating, StateGenerating},
	}

	m := NewMachine()
	if m.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", m.State())
	}
	for i, step := range steps {
		if err := m.Transition(step.to); err != nil {
			t.Fatalf("step %d: Transition(%s): %v", i, step.to, err)
		}
		if m.State() != step.want {
			t.Fatalf("step %d: state = %s, want %s", i, m.State(), step.want)
		}
	}
}

func TestMachineRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{StateIdle, StateReady},
		{StateIdle, StateGenerating},
		{StateIdle, StateCompleted},
		{StateAnalyzing, StateGenerating},
		{StateAnalyzing, StateCompleted},
		{StateReady, StateIdle},
		{StateReady, StateAnalyzing},
		{StateReady, StateCompleted},
		{StateGenerating, StateIdle},
		{StateGenerating, StateAnalyzing},
		{StateCompleted, StateIdle},
		{StateCompleted, StateGenerating},
	}

	for _, tt := range tests {
		m := &Machine{state: tt.from}
		if err := m.Transition(tt.to); err == nil {
			t.Errorf("Transition(%s -> %s) allowed, want rejection", tt.from, tt.to)
		}
		if m.State() != tt.from {
			t.Errorf("rejected transition moved state to %s", m.State())
		}
	}
}

func TestMachineFailureTransitionsRecordError(t *testing.T) {
	m := &Machine{state: StateAnalyzing}
	if err := m.Fail(StateIdle, "analysis transport failed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if m.State() != StateIdle || m.LastError() != "analysis transport failed" {
		t.Errorf("state=%s err=%q", m.State(), m.LastError())
	}

	m = &Machine{state: StateGenerating}
	if err := m.Fail(StateReady, "composition failed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want ready after composition failure", m.State())
	}
}

func TestMachineSetErrorKeepsState(t *testing.T) {
	m := &Machine{state: StateReady}
	m.SetError("no segments selected")
	if m.State() != StateReady {
		t.Errorf("SetError moved state to %s", m.State())
	}
	if m.LastError() != "no segments selected" {
		t.Errorf("LastError = %q", m.LastError())
	}
	m.ClearError()
	if m.LastError() != "" {
		t.Errorf("error not cleared: %q", m.LastError())
	}
}

func TestMachineResetFromAnyState(t *testing.T) {
	for _, from := range []State{StateIdle, StateAnalyzing, StateReady, StateGenerating, StateCompleted} {
		m := &Machine{state: from, lastErr: "stale"}
		m.Reset()
		if m.State() != StateAnalyzing {
			t.Errorf("Reset from %s gave %s, want analyzing", from, m.State())
		}
		if m.LastError() != "" {
			t.Errorf("Reset from %s kept error %q", from, m.LastError())
		}
	}
}
