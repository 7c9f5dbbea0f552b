package join

import "fmt"

type State string

const (
	StateStart              State = "start"
	StateEligibilityChecked State = "eligibility_checked"
	StateSlotReserved       State = "slot_reserved"
	StateDebited            State = "debited"
	StateMembershipRecorded State = "membership_recorded"
	StateRefunded           State = "refunded"
	StateSlotReleased       State = "slot_released"
	StateRejected           State = "rejected"
)

var transitions = map[State][]State{
	StateStart:              {StateEligibilityChecked, StateRejected},
	StateEligibilityChecked: {StateSlotReserved, StateRejected},
	StateSlotReserved:       {StateDebited, StateSlotReleased},
	StateDebited:            {StateMembershipRecorded, StateRefunded},
	StateRefunded:           {StateSlotReleased},
	StateSlotReleased:       {StateRejected},
}

func (s State) Terminal() bool {
	return s == StateMembershipRecorded || s == StateRejected
}

func (s State) canMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition is reported to the orchestrator's observer on every step.
type Transition struct {
	From         State
	To           State
	UID          string
	TournamentID string
	Reservation  string
	Err          error
}

type invalidTransitionError struct {
	from, to State
}

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("join: invalid transition %s -> %s", e.from, e.to)
}
