package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository"
	"github.com/Shivanand-hulikatti/eventhub/internal/search"
)

type pair struct {
	event    int64
	username string
}

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu            sync.Mutex
	users         map[string]model.Role
	events        map[int64]model.Event
	organizers    map[int64]string
	registrations map[pair]time.Time
	ratings       map[pair]int
	nextID        int64

	// injected failures, consumed once each
	toggleConflicts int
	upsertConflicts int
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]model.Role{},
		events:        map[int64]model.Event{},
		organizers:    map[int64]string{},
		registrations: map[pair]time.Time{},
		ratings:       map[pair]int{},
	}
}

func (m *memStore) addUser(name string, role model.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[name] = role
}

func (m *memStore) addEvent(organizer string, e model.Event) model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if e.ID == 0 {
		e.ID = m.nextID
	}
	m.events[e.ID] = e
	m.organizers[e.ID] = organizer
	return e
}

func (m *memStore) registrationCount(eventID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for p := range m.registrations {
		if p.event == eventID {
			n++
		}
	}
	return n
}

func (m *memStore) GetIdentity(_ context.Context, username string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Identity{Username: username, Role: role}, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (m *memStore) sorted(keep func(model.Event) bool) []model.Event {
	var out []model.Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) List(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(model.Event) bool { return true }), nil
}

func (m *memStore) ListByIDs(_ context.Context, ids []int64) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.sorted(func(e model.Event) bool { return want[e.ID] }), nil
}

func (m *memStore) ListByOrganizer(_ context.Context, organizer string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e model.Event) bool { return m.organizers[e.ID] == organizer }), nil
}

func (m *memStore) ListRegisteredBy(_ context.Context, username string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e model.Event) bool {
		_, ok := m.registrations[pair{e.ID, username}]
		return ok
	}), nil
}

func (m *memStore) IsOrganizer(_ context.Context, eventID int64, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.organizers[eventID] == username, nil
}

func (m *memStore) Create(_ context.Context, organizer string, e model.Event) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	m.events[e.ID] = e
	m.organizers[e.ID] = organizer
	return &e, nil
}

func (m *memStore) Exists(_ context.Context, eventID int64, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.registrations[pair{eventID, username}]
	return ok, nil
}

func (m *memStore) Toggle(_ context.Context, eventID int64, username string) (model.RegistrationAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.toggleConflicts > 0 {
		m.toggleConflicts--
		return "", repository.ErrConstraintViolation
	}
	e, ok := m.events[eventID]
	if !ok {
		return "", repository.ErrNotFound
	}
	p := pair{eventID, username}
	if _, ok := m.registrations[p]; ok {
		delete(m.registrations, p)
		e.CurrentCapacity--
		m.events[eventID] = e
		return model.Cancelled, nil
	}
	m.registrations[p] = time.Now()
	e.CurrentCapacity++
	m.events[eventID] = e
	return model.Registered, nil
}

func (m *memStore) ListByEvent(_ context.Context, eventID int64) ([]model.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Attendee
	for p, at := range m.registrations {
		if p.event == eventID {
			out = append(out, model.Attendee{Username: p.username, RegisteredAt: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memStore) Get(_ context.Context, eventID int64, username string) (*model.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.ratings[pair{eventID, username}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Rating{EventID: eventID, AttendeeUsername: username, Value: v}, nil
}

func (m *memStore) ListByAttendee(_ context.Context, username string) ([]model.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Rating
	for p, v := range m.ratings {
		if p.username == username {
			out = append(out, model.Rating{EventID: p.event, AttendeeUsername: username, Value: v})
		}
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, eventID int64, username string, value int) (model.RatingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertConflicts > 0 {
		m.upsertConflicts--
		return "", repository.ErrConstraintViolation
	}
	if _, ok := m.events[eventID]; !ok {
		return "", repository.ErrConstraintViolation
	}
	p := pair{eventID, username}
	_, existed := m.ratings[p]
	m.ratings[p] = value
	if existed {
		return model.RatingUpdated, nil
	}
	return model.RatingCreated, nil
}

func (m *memStore) Summary(_ context.Context, eventID int64) (model.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.RatingSummary{EventID: eventID}
	total := 0
	for p, v := range m.ratings {
		if p.event == eventID {
			s.Count++
			total += v
		}
	}
	if s.Count > 0 {
		s.Average = float64(total) / float64(s.Count)
	}
	return s, nil
}

// fakeIndex returns canned hits or a canned error and records writes.
type fakeIndex struct {
	mu        sync.Mutex
	hits      []model.SearchHit
	err       error
	upsertErr error
	upserted  []int64
	rebuilt   int
}

func (f *fakeIndex) Search(_ context.Context, text string, limit int) ([]model.SearchHit, error) {
	if len(search.Tokenize(text)) == 0 {
		return nil, search.ErrEmptyQuery
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) Upsert(_ context.Context, e model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, e.ID)
	return nil
}

func (f *fakeIndex) Rebuild(_ context.Context, events []model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilt = len(events)
	return nil
}
