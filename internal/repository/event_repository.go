package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
)

// EventRepo reads events owned by the planning application.  Create exists
// for seeding and tests; the reservation core never edits events.
type EventRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB, dialect database.Dialect) *EventRepo {
	return &EventRepo{db: db, dialect: dialect}
}

const eventColumns = `id, host_id, capacity_total, status, created_at`

// Create inserts an event.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?)`),
		e.ID, e.HostID, nullInt(e.CapacityTotal), string(e.Status), toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID.  It returns ErrEventNotFound if
// there is no matching row.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
	return scanEvent(row)
}

// SetStatus changes an event's status.  Used by seeding tools and tests to
// open or close an event.
func (r *EventRepo) SetStatus(ctx context.Context, id string, status model.EventStatus) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE events SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// getForUpdateTx reads and locks the event row for the rest of tx.
func getForUpdateTx(ctx context.Context, tx *sql.Tx, d database.Dialect, id string) (*model.Event, error) {
	row := tx.QueryRowContext(ctx, d.Rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`+d.ForUpdate()), id)
	return scanEvent(row)
}

func scanEvent(row *sql.Row) (*model.Event, error) {
	var (
		e         model.Event
		capacity  sql.NullInt64
		status    string
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.HostID, &capacity, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	e.CapacityTotal = intPtr(capacity)
	e.Status = model.EventStatus(status)
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}
