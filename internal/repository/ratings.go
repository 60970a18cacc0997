package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// RatingRepository handles persistence for event ratings.
type RatingRepository struct {
	db *pgxpool.Pool
}

// NewRatingRepository constructs a RatingRepository.
func NewRatingRepository(db *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{db: db}
}

// Get returns the rating username gave eventID, or ErrNotFound.
func (r *RatingRepository) Get(ctx context.Context, eventID int64, username string) (*model.Rating, error) {
	var rt model.Rating
	err := r.db.QueryRow(ctx,
		`SELECT event_id, attendee_username, rating, updated_at
		 FROM event_ratings WHERE event_id = $1 AND attendee_username = $2`,
		eventID, username,
	).Scan(&rt.EventID, &rt.AttendeeUsername, &rt.Value, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &rt, nil
}

// ListByAttendee returns every rating username has given.
func (r *RatingRepository) ListByAttendee(ctx context.Context, username string) ([]model.Rating, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_id, attendee_username, rating, updated_at
		 FROM event_ratings WHERE attendee_username = $1`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var rt model.Rating
		if err := rows.Scan(&rt.EventID, &rt.AttendeeUsername, &rt.Value, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rt)
	}
	return ratings, rows.Err()
}

// Upsert stores value as username's rating of eventID. A single
// INSERT ... ON CONFLICT statement keeps it atomic per pair; xmax is zero only
// for a freshly inserted tuple.
func (r *RatingRepository) Upsert(ctx context.Context, eventID int64, username string, value int) (model.RatingAction, error) {
	var inserted bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO event_ratings (event_id, attendee_username, rating, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (event_id, attendee_username)
		 DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		eventID, username, value,
	).Scan(&inserted)
	if err != nil {
		return "", wrapWriteErr("upsert rating", err)
	}
	if inserted {
		return model.RatingCreated, nil
	}
	return model.RatingUpdated, nil
}

// Summary returns the number of ratings and their mean for an event.
func (r *RatingRepository) Summary(ctx context.Context, eventID int64) (model.RatingSummary, error) {
	s := model.RatingSummary{EventID: eventID}
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8
		 FROM event_ratings WHERE event_id = $1`,
		eventID,
	).Scan(&s.Count, &s.Average)
	if err != nil {
		return s, fmt.Errorf("rating summary: %w", err)
	}
	return s, nil
}
