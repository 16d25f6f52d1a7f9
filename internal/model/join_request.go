package model

import "time"

// RequestStatus is the state of a join request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusApproved   RequestStatus = "approved"
	StatusDeclined   RequestStatus = "declined"
	StatusWaitlisted RequestStatus = "waitlisted"
	StatusExpired    RequestStatus = "expired"
	StatusCancelled  RequestStatus = "cancelled"
)

// MaxNoteLength bounds the free-text note a guest may attach.
const MaxNoteLength = 500

// ActiveStatuses are the statuses that block a second request by the same
// user for the same event.
var ActiveStatuses = []RequestStatus{StatusPending, StatusWaitlisted, StatusApproved}

// transitions lists every legal status change.  Hold extension and waitlist
// reordering keep the status and are handled separately by the store.
var transitions = map[RequestStatus]map[RequestStatus]bool{
	StatusPending: {
		StatusApproved:   true,
		StatusDeclined:   true,
		StatusWaitlisted: true,
		StatusExpired:    true,
		StatusCancelled:  true,
	},
	StatusWaitlisted: {
		StatusApproved: true,
		StatusDeclined: true,
	},
}

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusWaitlisted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further change is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusDeclined || s == StatusExpired || s == StatusCancelled
}

// Active reports whether s counts toward the one-active-request rule.
func (s RequestStatus) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is allowed by the state machine.
func CanTransition(from, to RequestStatus) bool {
	return transitions[from][to]
}

// JoinRequest is a guest's request to attend an event.  While pending it
// holds PartySize seats until HoldExpiresAt; while waitlisted WaitlistPos
// orders it for promotion (lower first).
//
// Fields:
//
//	ID            – opaque identifier generated at creation.
//	EventID       – event the guest wants to join.
//	UserID        – requesting guest.
//	PartySize     – seats requested, at least one.
//	Note          – optional message to the host.
//	Status        – see RequestStatus.
//	HoldExpiresAt – end of the capacity hold; set only while pending.
//	WaitlistPos   – 1-based waitlist position; set only while waitlisted.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last status or hold change.
type JoinRequest struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	UserID        string        `json:"user_id"`
	PartySize     int           `json:"party_size"`
	Note          *string       `json:"note,omitempty"`
	Status        RequestStatus `json:"status"`
	HoldExpiresAt *time.Time    `json:"hold_expires_at,omitempty"`
	WaitlistPos   *int          `json:"waitlist_pos,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Holding reports whether the request counts toward held capacity at now.
func (r *JoinRequest) Holding(now time.Time) bool {
	return r.Status == StatusPending && r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
}

// HoldLapsed reports whether a pending request's hold has run out at now.
// A pending request without a hold never lapses.
func (r *JoinRequest) HoldLapsed(now time.Time) bool {
	return r.Status == StatusPending && r.HoldExpiresAt != nil && !r.HoldExpiresAt.After(now)
}
