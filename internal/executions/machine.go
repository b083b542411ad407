package executions

import (
	"fmt"

	"github.com/qmuntal/stateless"
)

// Trigger is a signal that moves an execution between states.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerComplete Trigger = "complete"
	TriggerFail     Trigger = "fail"
)

func machine(current Status) *stateless.StateMachine {
	sm := stateless.NewStateMachine(current)

	sm.Configure(StatusQueued).
		Permit(TriggerStart, StatusProcessing).
		Permit(TriggerComplete, StatusCompleted).
		Permit(TriggerFail, StatusFailed)

	sm.Configure(StatusProcessing).
		Ignore(TriggerStart).
		Permit(TriggerComplete, StatusCompleted).
		Permit(TriggerFail, StatusFailed)

	sm.Configure(StatusCompleted)
	sm.Configure(StatusFailed)

	return sm
}

// Next returns the state reached by firing trigger in current. A repeated start
// while processing returns current unchanged. Any signal to a terminal state
// yields ErrAlreadyTerminal.
func Next(current Status, trigger Trigger) (Status, error) {
	if current.Terminal() {
		return current, fmt.Errorf("%w: %s received %s", ErrAlreadyTerminal, current, trigger)
	}

	sm := machine(current)
	if err := sm.Fire(trigger); err != nil {
		return current, fmt.Errorf("%w: %s not permitted from %s", ErrInvalidTransition, trigger, current)
	}
	return sm.MustState().(Status), nil
}
