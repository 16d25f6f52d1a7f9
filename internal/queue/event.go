// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import "time"

// Kind names what happened to a join request.
type Kind string

const (
	KindRequestCreated    Kind = "request.created"
	KindRequestApproved   Kind = "request.approved"
	KindRequestDeclined   Kind = "request.declined"
	KindRequestWaitlisted Kind = "request.waitlisted"
	KindRequestCancelled  Kind = "request.cancelled"
	KindRequestExpired    Kind = "request.expired"
	KindHoldExtended      Kind = "hold.extended"
	KindWaitlistReordered Kind = "waitlist.reordered"
	KindHoldExpiringSoon  Kind = "hold.expiring_soon"
)

// NotificationQueueName is the durable queue notifications are published to.
const NotificationQueueName = "joinrequest.events"

// Notification is published after a join request change commits.  It
// carries enough for downstream consumers (email, push, analytics) to act
// without querying the primary database.
type Notification struct {
	Kind          Kind       `json:"kind"`
	EventID       string     `json:"event_id"`
	RequestID     string     `json:"request_id"`
	UserID        string     `json:"user_id"`
	OldStatus     string     `json:"old_status,omitempty"`
	NewStatus     string     `json:"new_status,omitempty"`
	PartySize     int        `json:"party_size"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	WaitlistPos   *int       `json:"waitlist_pos,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}
