package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/metrics"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository"
	"github.com/Shivanand-hulikatti/eventhub/internal/search"
)

// Browse filters.
const (
	FilterAll        = "all"
	FilterRegistered = "registered"
)

// Warning shown when the search backend is down.
const searchUnavailableWarning = "Search is temporarily unavailable."

// BannerPath is the route prefix banner images are served under.
const BannerPath = "/events/send_file/"

// EventDetails is one event as seen by one caller.
type EventDetails struct {
	Event   model.EventView `json:"event"`
	Notices []model.Notice  `json:"notices"`
}

// BrowseResult is the annotated event list for a caller.
type BrowseResult struct {
	Query    string            `json:"query,omitempty"`
	Filter   string            `json:"filter"`
	Events   []model.EventView `json:"events"`
	Warnings []string          `json:"warnings,omitempty"`
}

// SearchResult is a ranked hit list, possibly degraded.
type SearchResult struct {
	Hits     []model.SearchHit `json:"hits"`
	Warnings []string          `json:"warnings,omitempty"`
}

// CreateResult is a freshly created event plus non-fatal warnings.
type CreateResult struct {
	Event    *model.Event `json:"event"`
	Warnings []string     `json:"warnings,omitempty"`
}

// AttendeeReport is the organizer's view of one event.
type AttendeeReport struct {
	EventID   int64               `json:"event_id"`
	Attendees []model.Attendee    `json:"attendees"`
	Ratings   model.RatingSummary `json:"ratings"`
}

// DiscoveryService composes the catalog, the search index and the
// registration engine to answer what a caller can see and do.
type DiscoveryService struct {
	events        EventStore
	registrations RegistrationStore
	ratings       RatingStore
	index         search.Index
	engine        *RegistrationService
	validate      *validator.Validate
	log           *zap.Logger
}

// NewDiscoveryService constructs a DiscoveryService. index is owned by the
// caller.
func NewDiscoveryService(
	events EventStore,
	registrations RegistrationStore,
	ratings RatingStore,
	index search.Index,
	engine *RegistrationService,
	log *zap.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		events:        events,
		registrations: registrations,
		ratings:       ratings,
		index:         index,
		engine:        engine,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		log:           log,
	}
}

// callerState is what the caller has done across all events.
type callerState struct {
	registered map[int64]bool
	ratings    map[int64]int
}

func (s *DiscoveryService) loadCallerState(ctx context.Context, id model.Identity) (callerState, error) {
	st := callerState{registered: map[int64]bool{}, ratings: map[int64]int{}}
	if id.Username == "" {
		return st, nil
	}

	regs, err := s.events.ListRegisteredBy(ctx, id.Username)
	if err != nil {
		return st, fmt.Errorf("load registrations: %w", err)
	}
	for _, e := range regs {
		st.registered[e.ID] = true
	}

	ratings, err := s.ratings.ListByAttendee(ctx, id.Username)
	if err != nil {
		return st, fmt.Errorf("load ratings: %w", err)
	}
	for _, r := range ratings {
		st.ratings[r.EventID] = r.Value
	}
	return st, nil
}

func (s *DiscoveryService) view(e model.Event, st callerState) model.EventView {
	v := model.EventView{
		Event:          e,
		IsRegistered:   st.registered[e.ID],
		IsPastEvent:    s.engine.isPast(&e),
		PreviousRating: st.ratings[e.ID],
	}
	if e.Banner != "" {
		v.BannerURL = BannerPath + url.PathEscape(e.Banner)
	}
	return v
}

// EventDetails returns the event annotated for the caller. Eligibility
// problems are reported as notices; only a missing event is an error.
func (s *DiscoveryService) EventDetails(ctx context.Context, id model.Identity, eventID int64) (*EventDetails, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}

	registered, err := s.registrations.Exists(ctx, eventID, id.Username)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	prev, err := s.engine.PreviousRating(ctx, id, eventID)
	if err != nil {
		return nil, err
	}

	st := callerState{
		registered: map[int64]bool{eventID: registered},
		ratings:    map[int64]int{eventID: prev},
	}
	out := &EventDetails{Event: s.view(*e, st), Notices: []model.Notice{}}

	reason, err := s.engine.attendeeReason(ctx, id)
	if err != nil {
		return nil, err
	}
	if n, ok := NoticeFor(reason); ok {
		out.Notices = append(out.Notices, n)
	}
	if registered {
		out.Notices = append(out.Notices, model.Notice{Category: "info", Message: "You are already registered for the event!"})
	}
	return out, nil
}

// Browse lists events for the caller. A blank query returns the whole
// catalog in store order; otherwise the index's ranking is kept. Registered
// restricts either list to the caller's registrations.
func (s *DiscoveryService) Browse(ctx context.Context, id model.Identity, query, filter string) (*BrowseResult, error) {
	switch filter {
	case "":
		filter = FilterAll
	case FilterAll, FilterRegistered:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}

	st, err := s.loadCallerState(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &BrowseResult{Query: strings.TrimSpace(query), Filter: filter, Events: []model.EventView{}}

	var events []model.Event
	if out.Query == "" {
		if filter == FilterRegistered {
			events, err = s.events.ListRegisteredBy(ctx, id.Username)
		} else {
			events, err = s.events.List(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
	} else {
		res, err := s.search(ctx, "full", out.Query, search.FullSearchLimit)
		if err != nil {
			return nil, err
		}
		out.Warnings = res.Warnings
		events, err = s.hydrate(ctx, res.Hits)
		if err != nil {
			return nil, err
		}
	}

	for _, e := range events {
		if filter == FilterRegistered && !st.registered[e.ID] {
			continue
		}
		out.Events = append(out.Events, s.view(e, st))
	}
	return out, nil
}

// hydrate loads the events behind hits, keeping hit order. Hits the catalog
// no longer knows are dropped.
func (s *DiscoveryService) hydrate(ctx context.Context, hits []model.SearchHit) ([]model.Event, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.EventID)
	}
	rows, err := s.events.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load search results: %w", err)
	}
	byID := make(map[int64]model.Event, len(rows))
	for _, e := range rows {
		byID[e.ID] = e
	}

	events := make([]model.Event, 0, len(hits))
	seen := make(map[int64]bool, len(hits))
	for _, h := range hits {
		e, ok := byID[h.EventID]
		if !ok || seen[h.EventID] {
			continue
		}
		seen[h.EventID] = true
		events = append(events, e)
	}
	return events, nil
}

// Suggest returns up to five autocomplete hits.
func (s *DiscoveryService) Suggest(ctx context.Context, text string) (*SearchResult, error) {
	return s.search(ctx, "autocomplete", text, search.AutocompleteLimit)
}

// SearchEvents returns up to ten ranked hits.
func (s *DiscoveryService) SearchEvents(ctx context.Context, text string) (*SearchResult, error) {
	return s.search(ctx, "full", text, search.FullSearchLimit)
}

// search degrades an unavailable index to an empty result with a warning.
// ErrEmptyQuery and other failures are returned.
func (s *DiscoveryService) search(ctx context.Context, kind, text string, limit int) (*SearchResult, error) {
	hits, err := s.index.Search(ctx, text, limit)
	switch {
	case err == nil:
		metrics.TrackSearch(kind, "ok")
		if hits == nil {
			hits = []model.SearchHit{}
		}
		return &SearchResult{Hits: hits}, nil
	case errors.Is(err, search.ErrEmptyQuery):
		metrics.TrackSearch(kind, "empty_query")
		return nil, err
	case errors.Is(err, search.ErrIndexUnavailable):
		metrics.TrackSearch(kind, "unavailable")
		s.log.Warn("search index unavailable", zap.String("kind", kind), zap.Error(err))
		return &SearchResult{Hits: []model.SearchHit{}, Warnings: []string{searchUnavailableWarning}}, nil
	default:
		metrics.TrackSearch(kind, "error")
		return nil, fmt.Errorf("search events: %w", err)
	}
}

// requireOrganizer resolves the caller and rejects non-organizers.
func (s *DiscoveryService) requireOrganizer(ctx context.Context, id model.Identity) (*model.Identity, error) {
	stored, err := s.engine.ResolveIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Role != model.RoleOrganizer {
		return nil, ErrRoleIneligible
	}
	return stored, nil
}

// CreateEvent validates req, stores the event linked to the calling
// organizer, and indexes it. An index failure does not undo the event.
func (s *DiscoveryService) CreateEvent(ctx context.Context, id model.Identity, req model.CreateEventRequest) (*CreateResult, error) {
	org, err := s.requireOrganizer(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	e, err := eventFromRequest(req)
	if err != nil {
		return nil, err
	}

	created, err := s.events.Create(ctx, org.Username, e)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info("event created", zap.Int64("event_id", created.ID), zap.String("organizer", org.Username))

	out := &CreateResult{Event: created}
	if err := s.index.Upsert(ctx, *created); err != nil {
		s.log.Error("index new event", zap.Int64("event_id", created.ID), zap.Error(err))
		out.Warnings = append(out.Warnings, "Event created but it will not appear in search until the next reindex.")
	}
	return out, nil
}

func eventFromRequest(req model.CreateEventRequest) (model.Event, error) {
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: start_date: %s", ErrValidation, err.Error())
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: end_date: %s", ErrValidation, err.Error())
	}
	if end.Before(start) {
		return model.Event{}, fmt.Errorf("%w: end_date is before start_date", ErrValidation)
	}
	startTime, err := parseClock(req.StartTime)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: start_time: %s", ErrValidation, err.Error())
	}
	endTime, err := parseClock(req.EndTime)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: end_time: %s", ErrValidation, err.Error())
	}
	if req.TicketPrice.IsNegative() {
		return model.Event{}, fmt.Errorf("%w: ticket_price is negative", ErrValidation)
	}

	return model.Event{
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		IsOnline:       req.IsOnline,
		Venue:          req.Venue,
		StartDate:      start,
		EndDate:        end,
		StartTime:      startTime,
		EndTime:        endTime,
		MaxCapacity:    req.MaxCapacity,
		TicketPrice:    req.TicketPrice,
		RedirectLink:   req.RedirectLink,
		AdditionalInfo: req.AdditionalInfo,
		Banner:         req.BannerImage,
	}, nil
}

// parseClock parses "15:04" into an offset from midnight.
func parseClock(v string) (*time.Duration, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return nil, err
	}
	d := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	return &d, nil
}

// OrganizerEvents lists the events the calling organizer runs.
func (s *DiscoveryService) OrganizerEvents(ctx context.Context, id model.Identity) ([]model.Event, error) {
	org, err := s.requireOrganizer(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByOrganizer(ctx, org.Username)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// Attendees returns who registered for an event and how it was rated. Only
// an organizer of that event may ask.
func (s *DiscoveryService) Attendees(ctx context.Context, id model.Identity, eventID int64) (*AttendeeReport, error) {
	org, err := s.requireOrganizer(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	owns, err := s.events.IsOrganizer(ctx, eventID, org.Username)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, ErrRoleIneligible
	}

	attendees, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	if attendees == nil {
		attendees = []model.Attendee{}
	}
	summary, err := s.ratings.Summary(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("rating summary: %w", err)
	}
	return &AttendeeReport{EventID: eventID, Attendees: attendees, Ratings: summary}, nil
}

// Reindex rebuilds the search index from the full catalog.
func (s *DiscoveryService) Reindex(ctx context.Context) (int, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	if err := s.index.Rebuild(ctx, events); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	return len(events), nil
}
