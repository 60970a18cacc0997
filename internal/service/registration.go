package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/metrics"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository"
)

// Eligibility is the answer to "may this caller register for this event".
// Reason is nil when Eligible is true.
type Eligibility struct {
	Eligible bool
	Reason   error
}

// RegistrationOptions tunes the engine. The zero value means UTC, a date-only
// past check and unvalidated ratings.
type RegistrationOptions struct {
	Location            *time.Location
	PastIncludesEndTime bool
	StrictRatings       bool
	Now                 func() time.Time
}

// RegistrationService decides who may register or rate and performs the
// registration toggle and rating upsert.
type RegistrationService struct {
	users         UserStore
	events        EventStore
	registrations RegistrationStore
	ratings       RatingStore
	opts          RegistrationOptions
	log           *zap.Logger
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(
	users UserStore,
	events EventStore,
	registrations RegistrationStore,
	ratings RatingStore,
	opts RegistrationOptions,
	log *zap.Logger,
) *RegistrationService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RegistrationService{
		users:         users,
		events:        events,
		registrations: registrations,
		ratings:       ratings,
		opts:          opts,
		log:           log,
	}
}

// ResolveIdentity looks the caller up in the credentials store. The stored
// role wins over whatever the token claimed.
func (s *RegistrationService) ResolveIdentity(ctx context.Context, id model.Identity) (*model.Identity, error) {
	if id.Username == "" {
		return nil, ErrUnknownUser
	}
	stored, err := s.users.GetIdentity(ctx, id.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return stored, nil
}

// attendeeReason returns the eligibility failure for id, or nil when id is a
// known attendee. The error return is reserved for store failures.
func (s *RegistrationService) attendeeReason(ctx context.Context, id model.Identity) (reason error, err error) {
	stored, err := s.ResolveIdentity(ctx, id)
	if errors.Is(err, ErrUnknownUser) {
		return ErrUnknownUser, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.Role != model.RoleAttendee {
		return ErrRoleIneligible, nil
	}
	return nil, nil
}

// CanRegister checks, in order, that the caller is a known user, is an
// attendee, and that the event exists. Past events and full events are
// deliberately not rejected.
func (s *RegistrationService) CanRegister(ctx context.Context, id model.Identity, eventID int64) (Eligibility, error) {
	reason, err := s.attendeeReason(ctx, id)
	if err != nil {
		return Eligibility{}, err
	}
	if reason != nil {
		return Eligibility{Reason: reason}, nil
	}

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Eligibility{Reason: ErrEventNotFound}, nil
		}
		return Eligibility{}, fmt.Errorf("load event: %w", err)
	}
	return Eligibility{Eligible: true}, nil
}

// ToggleRegistration registers the caller when unregistered and cancels the
// registration otherwise. A constraint violation means a concurrent call won
// the race; the toggle is re-run once against the fresh state.
func (s *RegistrationService) ToggleRegistration(ctx context.Context, id model.Identity, eventID int64) (model.RegistrationAction, error) {
	elig, err := s.CanRegister(ctx, id, eventID)
	if err != nil {
		return "", err
	}
	if !elig.Eligible {
		return "", elig.Reason
	}

	var action model.RegistrationAction
	for attempt := 0; attempt < 2; attempt++ {
		action, err = s.registrations.Toggle(ctx, eventID, id.Username)
		if errors.Is(err, repository.ErrConstraintViolation) && attempt == 0 {
			metrics.TrackRetry("toggle_registration")
			s.log.Info("registration toggle lost a race, retrying",
				zap.Int64("event_id", eventID), zap.String("username", id.Username))
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrEventNotFound
		}
		return "", fmt.Errorf("toggle registration: %w", err)
	}

	metrics.TrackRegistration(string(action))
	s.log.Info("registration toggled",
		zap.Int64("event_id", eventID),
		zap.String("username", id.Username),
		zap.String("action", string(action)),
	)
	return action, nil
}

// IsPastEvent reports whether the event has ended.
func (s *RegistrationService) IsPastEvent(ctx context.Context, eventID int64) (bool, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrEventNotFound
		}
		return false, fmt.Errorf("load event: %w", err)
	}
	return s.isPast(e), nil
}

// isPast compares end_date with today's date in the configured location, or
// end_date+end_time with now when PastIncludesEndTime is set.
func (s *RegistrationService) isPast(e *model.Event) bool {
	now := s.opts.Now().In(s.opts.Location)
	if s.opts.PastIncludesEndTime {
		return e.EndsAt(s.opts.Location).Before(now)
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := e.EndDate.Date()
	return time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).Before(today)
}

// PreviousRating returns the caller's stored rating, or 0 when there is none.
func (s *RegistrationService) PreviousRating(ctx context.Context, id model.Identity, eventID int64) (int, error) {
	r, err := s.ratings.Get(ctx, eventID, id.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load rating: %w", err)
	}
	return r.Value, nil
}

// SubmitRating creates or overwrites the caller's rating. Values are stored
// as given unless StrictRatings is set. Neither the caller's role nor the
// event's end date is checked here.
func (s *RegistrationService) SubmitRating(ctx context.Context, id model.Identity, req model.RatingRequest) (model.RatingAction, error) {
	if id.Username == "" || req.EventID == 0 || req.Rating == nil {
		return "", ErrMissingField
	}
	value := *req.Rating
	if s.opts.StrictRatings && (value < 1 || value > 5) {
		return "", ErrInvalidRating
	}

	var (
		action model.RatingAction
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		action, err = s.ratings.Upsert(ctx, req.EventID, id.Username, value)
		if !errors.Is(err, repository.ErrConstraintViolation) || attempt > 0 {
			break
		}
		// A missing event is permanent; anything else gets one more try.
		if _, getErr := s.events.GetByID(ctx, req.EventID); errors.Is(getErr, repository.ErrNotFound) {
			return "", ErrEventNotFound
		}
		metrics.TrackRetry("submit_rating")
	}
	if err != nil {
		return "", fmt.Errorf("submit rating: %w", err)
	}

	metrics.TrackRating(string(action))
	s.log.Info("rating stored",
		zap.Int64("event_id", req.EventID),
		zap.String("username", id.Username),
		zap.Int("rating", value),
		zap.String("action", string(action)),
	)
	return action, nil
}
