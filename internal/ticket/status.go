package ticket

import (
	"fmt"

	"leasebot/internal/domain"
)

// transitions encodes the ticket lifecycle:
// new → assigned → in_progress → {on_hold ⇄ in_progress} → completed,
// with cancelled reachable from any non-terminal state.
var transitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.StatusNew:        {domain.StatusAssigned, domain.StatusCancelled},
	domain.StatusAssigned:   {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusOnHold, domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusOnHold:     {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusCompleted:  nil,
	domain.StatusCancelled:  nil,
}

// CanTransition reports whether moving a ticket from one status to another
// is allowed by the lifecycle graph.
func CanTransition(from, to domain.TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the ticket lifecycle.
func IsTerminal(s domain.TicketStatus) bool {
	return s == domain.StatusCompleted || s == domain.StatusCancelled
}

// ValidateTransition returns a descriptive error for disallowed moves.
func ValidateTransition(from, to domain.TicketStatus) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	return nil
}
