package model

import "time"

// EventStatus is the lifecycle state of an event as owned by the
// surrounding planning application.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Event is the read-only view of an event that the reservation core needs.
// Events are created and edited elsewhere; this package only reads them.
//
// Fields:
//
//	ID            – events.id
//	HostID        – user allowed to decide join requests for the event.
//	CapacityTotal – maximum confirmed attendance; nil means unbounded.
//	Status        – only published events accept join requests.
//	CreatedAt     – creation timestamp.
type Event struct {
	ID            string      // events.id
	HostID        string      // events.host_id
	CapacityTotal *int        // events.capacity_total (nullable)
	Status        EventStatus // events.status
	CreatedAt     time.Time   // events.created_at
}

// Bounded reports whether the event declares a capacity.
func (e *Event) Bounded() bool {
	return e.CapacityTotal != nil
}

// AcceptsRequests reports whether guests may currently ask to join.
func (e *Event) AcceptsRequests() bool {
	return e.Status == EventPublished
}
