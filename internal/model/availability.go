package model

// Availability is a point-in-time capacity snapshot for one event.
// Total and Available are nil when the event is unbounded.  Available is
// intentionally not clamped: concurrent holds may push it below zero and
// hosts need to see that.
type Availability struct {
	EventID   string `json:"event_id"`
	Total     *int   `json:"total"`
	Confirmed int    `json:"confirmed"`
	Held      int    `json:"held"`
	Available *int   `json:"available"`
}

// NewAvailability derives Available from the three counted figures.
func NewAvailability(eventID string, total *int, confirmed, held int) Availability {
	a := Availability{EventID: eventID, Total: total, Confirmed: confirmed, Held: held}
	if total != nil {
		avail := *total - confirmed - held
		a.Available = &avail
	}
	return a
}

// Fits reports whether n more seats fit into the remaining availability.
// Unbounded events always fit.
func (a Availability) Fits(n int) bool {
	return a.Available == nil || n <= *a.Available
}
