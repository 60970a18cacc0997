package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// eventColumns is shared by every event query so scanEvent stays in sync.
const eventColumns = `e.id, e.name, e.description, e.category, e.is_online, e.venue,
	e.start_date, e.end_date, e.start_time, e.end_time,
	e.max_capacity, e.current_capacity, e.ticket_price,
	e.redirect_link, e.additional_info,
	COALESCE((SELECT b.image FROM event_banners b WHERE b.event_id = e.id ORDER BY b.id DESC LIMIT 1), ''),
	e.created_at`

// EventRepository handles persistence for events, their organizers and banners.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e                  model.Event
		startTime, endTime pgtype.Time
	)
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Category, &e.IsOnline, &e.Venue,
		&e.StartDate, &e.EndDate, &startTime, &endTime,
		&e.MaxCapacity, &e.CurrentCapacity, &e.TicketPrice,
		&e.RedirectLink, &e.AdditionalInfo, &e.Banner, &e.CreatedAt,
	)
	if err != nil {
		return model.Event{}, err
	}
	e.StartTime = fromPgTime(startTime)
	e.EndTime = fromPgTime(endTime)
	return e, nil
}

func fromPgTime(t pgtype.Time) *time.Duration {
	if !t.Valid {
		return nil
	}
	d := time.Duration(t.Microseconds) * time.Microsecond
	return &d
}

func toPgTime(d *time.Duration) pgtype.Time {
	if d == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Create inserts a new event together with its organizer link and optional
// banner in one transaction. The id is assigned by the database.
func (r *EventRepository) Create(ctx context.Context, organizer string, e model.Event) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO event_details (name, description, category, is_online, venue,
			start_date, end_date, start_time, end_time,
			max_capacity, current_capacity, ticket_price, redirect_link, additional_info)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13)
		 RETURNING id, created_at`,
		e.Name, e.Description, e.Category, e.IsOnline, e.Venue,
		e.StartDate, e.EndDate, toPgTime(e.StartTime), toPgTime(e.EndTime),
		e.MaxCapacity, e.TicketPrice, e.RedirectLink, e.AdditionalInfo,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, wrapWriteErr("insert event", err)
	}
	e.CurrentCapacity = 0

	_, err = tx.Exec(ctx,
		`INSERT INTO organizer_event_relations (event_id, organizer_username) VALUES ($1, $2)`,
		e.ID, organizer,
	)
	if err != nil {
		return nil, wrapWriteErr("link organizer", err)
	}

	if e.Banner != "" {
		_, err = tx.Exec(ctx,
			`INSERT INTO event_banners (event_id, image) VALUES ($1, $2)`,
			e.ID, e.Banner,
		)
		if err != nil {
			return nil, wrapWriteErr("insert banner", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &e, nil
}

// List returns every event ordered by id. There is no pagination.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM event_details e ORDER BY e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// ListByIDs returns the events with the given ids in id order. Unknown ids
// are skipped.
func (r *EventRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM event_details e WHERE e.id = ANY($1) ORDER BY e.id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by id: %w", err)
	}
	return collectEvents(rows)
}

// ListByOrganizer returns the events linked to an organizer.
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizer string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM event_details e
		 JOIN organizer_event_relations o ON o.event_id = e.id
		 WHERE o.organizer_username = $1
		 ORDER BY e.start_date, e.id`,
		organizer,
	)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	return collectEvents(rows)
}

// ListRegisteredBy returns the events an attendee is registered for.
func (r *EventRepository) ListRegisteredBy(ctx context.Context, username string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM event_details e
		 JOIN event_registration reg ON reg.event_id = e.id
		 WHERE reg.attendee_username = $1
		 ORDER BY e.id`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list registered events: %w", err)
	}
	return collectEvents(rows)
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM event_details e WHERE e.id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// IsOrganizer reports whether username organizes the event.
func (r *EventRepository) IsOrganizer(ctx context.Context, eventID int64, username string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organizer_event_relations
		 WHERE event_id = $1 AND organizer_username = $2)`,
		eventID, username,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check organizer: %w", err)
	}
	return ok, nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpdateRegistrationCount adds delta to current_capacity, or returns
// ErrNotFound when the event has no row.
func (r *EventRepository) UpdateRegistrationCount(ctx context.Context, id int64, delta int) error {
	return updateRegistrationCount(ctx, r.db, id, delta)
}

func updateRegistrationCount(ctx context.Context, q rowQuerier, id int64, delta int) error {
	var updated int64
	err := q.QueryRow(ctx,
		`UPDATE event_details SET current_capacity = current_capacity + $2
		 WHERE id = $1 RETURNING id`,
		id, delta,
	).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return wrapWriteErr("update registration count", err)
	}
	return nil
}
