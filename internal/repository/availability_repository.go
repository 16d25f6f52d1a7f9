package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

// availabilityQuery counts confirmed and held seats in one statement so both
// figures come from the same snapshot; a hold that lapses mid-call cannot be
// counted twice or dropped.
const availabilityQuery = `SELECT e.capacity_total,
       (SELECT COALESCE(SUM(p.party_size), 0) FROM participants p
         WHERE p.event_id = e.id AND p.status = ?),
       (SELECT COALESCE(SUM(r.party_size), 0) FROM join_requests r
         WHERE r.event_id = e.id AND r.status = ? AND r.hold_expires_at > ?)
  FROM events e
 WHERE e.id = ?`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AvailabilityRepo is the read model behind the availability endpoint.
type AvailabilityRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewAvailabilityRepo returns an AvailabilityRepo bound to db.
func NewAvailabilityRepo(db *sql.DB, dialect database.Dialect) *AvailabilityRepo {
	return &AvailabilityRepo{db: db, dialect: dialect}
}

// Get computes {total, confirmed, held, available} for the event at now.
// It has no side effects.
func (r *AvailabilityRepo) Get(ctx context.Context, eventID string, now time.Time) (model.Availability, error) {
	return availability(ctx, r.db, r.dialect, eventID, now)
}

func availability(ctx context.Context, q queryer, d database.Dialect, eventID string, now time.Time) (model.Availability, error) {
	var (
		capacity  sql.NullInt64
		confirmed int64
		held      int64
	)
	err := q.QueryRowContext(ctx, d.Rebind(availabilityQuery),
		model.ParticipantAccepted, string(model.StatusPending), toMillis(now), eventID,
	).Scan(&capacity, &confirmed, &held)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Availability{}, ErrEventNotFound
		}
		return model.Availability{}, fmt.Errorf("availability: %w", err)
	}
	return model.NewAvailability(eventID, intPtr(capacity), int(confirmed), int(held)), nil
}
