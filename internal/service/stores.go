// Package service implements the eligibility rules, the registration and
// rating mutations, and the discovery queries that compose the catalog with
// the search index.
package service

import (
	"context"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// EventStore is the event catalog.
type EventStore interface {
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Event, error)
	ListByOrganizer(ctx context.Context, organizer string) ([]model.Event, error)
	ListRegisteredBy(ctx context.Context, username string) ([]model.Event, error)
	IsOrganizer(ctx context.Context, eventID int64, username string) (bool, error)
	Create(ctx context.Context, organizer string, e model.Event) (*model.Event, error)
}

// RegistrationStore persists registrations. Toggle must be atomic per pair.
type RegistrationStore interface {
	Exists(ctx context.Context, eventID int64, username string) (bool, error)
	Toggle(ctx context.Context, eventID int64, username string) (model.RegistrationAction, error)
	ListByEvent(ctx context.Context, eventID int64) ([]model.Attendee, error)
}

// RatingStore persists ratings. Upsert must be atomic per pair.
type RatingStore interface {
	Get(ctx context.Context, eventID int64, username string) (*model.Rating, error)
	ListByAttendee(ctx context.Context, username string) ([]model.Rating, error)
	Upsert(ctx context.Context, eventID int64, username string, value int) (model.RatingAction, error)
	Summary(ctx context.Context, eventID int64) (model.RatingSummary, error)
}

// UserStore resolves identities owned by the auth collaborator.
type UserStore interface {
	GetIdentity(ctx context.Context, username string) (*model.Identity, error)
}
