// Package repository is the durable side of the reservation core: events and
// participants (read or written on behalf of the planning application) and
// join requests with their status-checked transitions.  Every write to a
// join request's status, hold or waitlist position goes through EventTx,
// which runs under a lock on the owning event row.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

var (
	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrRequestNotFound is returned when a join request does not exist or
	// does not belong to the event named by the caller.
	ErrRequestNotFound = errors.New("join request not found")
	// ErrParticipantNotFound is returned when no accepted participant
	// matches the event and user.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrDuplicateActiveRequest is returned when the user already has a
	// pending, waitlisted or approved request for the event, or holds a
	// participant row there (accepted or removed).
	ErrDuplicateActiveRequest = errors.New("user already has an active request for this event")
	// ErrEventNotOpen is returned when the event is not published.
	ErrEventNotOpen = errors.New("event is not accepting requests")
	// ErrInvalidPosition is returned by Reorder for a position outside 1..N.
	ErrInvalidPosition = errors.New("invalid waitlist position")

	// ErrInvalidTransition matches every *InvalidTransitionError via errors.Is.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrCapacityExceeded matches every *CapacityExceededError via errors.Is.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// InvalidTransitionError reports that the stored status differed from the
// status the caller expected, or that the requested change is not allowed
// from that status.  Callers should refresh the request rather than retry.
type InvalidTransitionError struct {
	RequestID string
	Expected  model.RequestStatus
	Actual    model.RequestStatus
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition for request %s: expected status %s, actual %s", e.RequestID, e.Expected, e.Actual)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CapacityExceededError reports that approving would push confirmed
// attendance past the event's capacity.  Available may be negative.
type CapacityExceededError struct {
	EventID   string
	Required  int
	Available int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded for event %s: required %d, available %d", e.EventID, e.Required, e.Available)
}

// Is lets errors.Is(err, ErrCapacityExceeded) match.
func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }
