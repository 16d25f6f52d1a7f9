package service

import (
	"context"
	"time"

	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
)

// WaitlistManager orders and promotes an event's waitlisted requests.  Both
// operations run in a single event transaction.
type WaitlistManager struct {
	requests *repository.JoinRequestRepo
}

// NewWaitlistManager returns a WaitlistManager over requests.
func NewWaitlistManager(requests *repository.JoinRequestRepo) *WaitlistManager {
	return &WaitlistManager{requests: requests}
}

// Reordered is the outcome of a reorder: the full waitlist in its new order
// and the entries whose position changed, with their old positions.
type Reordered struct {
	Waitlist []model.JoinRequest
	Moved    []repository.TransitionResult
}

// Reorder moves requestID to position pos (1-based) and renumbers the rest.
func (w *WaitlistManager) Reorder(ctx context.Context, eventID, requestID string, pos int, now time.Time) (*Reordered, error) {
	out := &Reordered{}
	err := w.requests.InEventTx(ctx, eventID, func(tx *repository.EventTx) error {
		before, err := tx.Waitlist()
		if err != nil {
			return err
		}
		old := make(map[string]model.JoinRequest, len(before))
		for _, r := range before {
			old[r.ID] = r
		}
		list, err := tx.Reorder(requestID, pos, now)
		if err != nil {
			return err
		}
		out.Waitlist = list
		for _, r := range list {
			prev := old[r.ID]
			if prev.WaitlistPos != nil && r.WaitlistPos != nil && *prev.WaitlistPos == *r.WaitlistPos {
				continue
			}
			out.Moved = append(out.Moved, repository.TransitionResult{Before: prev, After: r})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Promote approves waitlisted requests in position order while their party
// fits into the event's availability, counting live holds.  It stops at the
// first request that does not fit, so a large party at the head is never
// skipped.  limit <= 0 means no limit.
func (w *WaitlistManager) Promote(ctx context.Context, eventID string, limit int, now time.Time) ([]repository.TransitionResult, error) {
	var promoted []repository.TransitionResult
	err := w.requests.InEventTx(ctx, eventID, func(tx *repository.EventTx) error {
		promoted = nil
		list, err := tx.Waitlist()
		if err != nil {
			return err
		}
		avail, err := tx.Availability(now)
		if err != nil {
			return err
		}
		for _, r := range list {
			if limit > 0 && len(promoted) >= limit {
				break
			}
			if !avail.Fits(r.PartySize) {
				break
			}
			res, err := tx.Transition(r.ID, model.StatusWaitlisted, model.StatusApproved, now)
			if err != nil {
				return err
			}
			promoted = append(promoted, *res)
			avail = model.NewAvailability(eventID, avail.Total, avail.Confirmed+r.PartySize, avail.Held)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}
