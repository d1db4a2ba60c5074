package schedule

import "pilldock/internal/model"

// FSM encodes the legal status transitions of a slot's dispensing cycle.
// pending is the initial state of a newly enabled slot; taken and missed
// end the cycle and only move forward through an explicit reset back to
// pending. The dispensing states in between are written by the device
// itself; this core only issues manual_trigger and the reset.
type FSM struct {
	transitions map[model.Status][]model.Status
}

// NewFSM creates the FSM with the fixed transition table.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[model.Status][]model.Status{
			model.StatusPending:       {model.StatusStarted, model.StatusManualTrigger},
			model.StatusStarted:       {model.StatusInProgress, model.StatusTaken, model.StatusMissed},
			model.StatusInProgress:    {model.StatusTaken, model.StatusMissed},
			model.StatusManualTrigger: {model.StatusInProgress, model.StatusTaken, model.StatusMissed},
			model.StatusTaken:         {model.StatusPending},
			model.StatusMissed:        {model.StatusPending},
		},
	}
}

// CanTransition checks if a transition is allowed.
func (f *FSM) CanTransition(from, to model.Status) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the current cycle.
func (f *FSM) IsTerminal(s model.Status) bool {
	return s == model.StatusTaken || s == model.StatusMissed
}
