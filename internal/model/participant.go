package model

import "time"

// ParticipantStatus values. The reservation core only ever writes
// ParticipantAccepted; ParticipantRemoved is set when a host drops a
// confirmed guest.
const (
	ParticipantAccepted = "accepted"
	ParticipantRemoved  = "removed"
)

// Participant represents confirmed attendance for an event.  A row is
// inserted in the same transaction that moves a join request to approved.
//
// Fields:
//
//	ID        – participants.id
//	EventID   – event being attended.
//	UserID    – attending user; unique per event.
//	Status    – accepted or removed.
//	PartySize – number of seats the participant occupies.
//	RequestID – join request whose approval created the row.
//	CreatedAt – creation timestamp.
type Participant struct {
	ID        string    // participants.id
	EventID   string    // participants.event_id
	UserID    string    // participants.user_id
	Status    string    // participants.status
	PartySize int       // participants.party_size
	RequestID *string   // participants.request_id (nullable)
	CreatedAt time.Time // participants.created_at
}
