package queue

import (
	"time"

	"github.com/google/uuid"
)

// Ticket states. A ticket is admitted WAITING, moves to IN_PROGRESS when
// called, and ends in DONE or SKIPPED. Terminal states are never left.
const (
	StateWaiting    = "WAITING"
	StateInProgress = "IN_PROGRESS"
	StateDone       = "DONE"
	StateSkipped    = "SKIPPED"
)

// transitions holds the allowed forward edges of the ticket state machine.
// WAITING may jump straight to a terminal state; terminal states have no
// outgoing edges.
var transitions = map[string][]string{
	StateWaiting:    {StateInProgress, StateDone, StateSkipped},
	StateInProgress: {StateDone, StateSkipped},
	StateDone:       {},
	StateSkipped:    {},
}

// CanTransition reports whether a ticket in state from may move to state to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionsInto returns the states a ticket may be in for a move to state
// to. The store uses this as the compare set of its conditional state write.
func TransitionsInto(to string) []string {
	var from []string
	for state, nexts := range transitions {
		for _, next := range nexts {
			if next == to {
				from = append(from, state)
			}
		}
	}
	return from
}

// IsTerminal reports whether the state has no outgoing transitions.
func IsTerminal(state string) bool {
	return len(transitions[state]) == 0 && (state == StateDone || state == StateSkipped)
}

// Ticket is one queue entry. Number is dense per tenant: the Nth admission
// for a tenant always receives number N, with no gaps and no reuse.
type Ticket struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	VisitID   uuid.UUID `db:"visit_id" json:"visit_id"`
	Number    int64     `db:"number" json:"number"`
	State     string    `db:"state" json:"state"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// PatientName is joined through the visit for display; not a column on
	// queue_tickets.
	PatientName string `db:"-" json:"patient_name,omitempty"`
}
