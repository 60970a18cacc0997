package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/search"
)

func newTestDiscovery(t *testing.T) (*DiscoveryService, *memStore, *fakeIndex) {
	t.Helper()
	engine, st := newTestEngine(t, RegistrationOptions{})
	idx := &fakeIndex{}
	return NewDiscoveryService(st, st, st, idx, engine, zap.NewNop()), st, idx
}

func eventIDs(views []model.EventView) []int64 {
	ids := make([]int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestEventDetails(t *testing.T) {
	svc, st, _ := newTestDiscovery(t)
	e := st.addEvent("olga", model.Event{Name: "Go Meetup", EndDate: date(2024, 6, 14), Banner: "go meetup.png"})
	ctx := context.Background()

	got, err := svc.EventDetails(ctx, alice, e.ID)
	require.NoError(t, err)
	assert.False(t, got.Event.IsRegistered)
	assert.True(t, got.Event.IsPastEvent)
	assert.Zero(t, got.Event.PreviousRating)
	assert.Equal(t, "/events/send_file/go%20meetup.png", got.Event.BannerURL)
	assert.Empty(t, got.Notices)

	_, err = st.Toggle(ctx, e.ID, "alice")
	require.NoError(t, err)
	_, err = st.Upsert(ctx, e.ID, "alice", 4)
	require.NoError(t, err)

	got, err = svc.EventDetails(ctx, alice, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Event.IsRegistered)
	assert.Equal(t, 4, got.Event.PreviousRating)
	require.Len(t, got.Notices, 1)
	assert.Equal(t, "You are already registered for the event!", got.Notices[0].Message)

	_, err = svc.EventDetails(ctx, alice, 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventDetailsNotices(t *testing.T) {
	svc, st, _ := newTestDiscovery(t)
	e := st.addEvent("olga", model.Event{Name: "Go Meetup"})
	ctx := context.Background()

	got, err := svc.EventDetails(ctx, olga, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Notices, 1)
	want, _ := NoticeFor(ErrRoleIneligible)
	assert.Equal(t, want, got.Notices[0])

	got, err = svc.EventDetails(ctx, ghost, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Notices, 1)
	want, _ = NoticeFor(ErrUnknownUser)
	assert.Equal(t, want, got.Notices[0])
}

func TestBrowseCatalog(t *testing.T) {
	svc, st, _ := newTestDiscovery(t)
	a := st.addEvent("olga", model.Event{Name: "A"})
	b := st.addEvent("olga", model.Event{Name: "B"})
	c := st.addEvent("olga", model.Event{Name: "C"})
	ctx := context.Background()

	_, err := st.Toggle(ctx, b.ID, "alice")
	require.NoError(t, err)
	_, err = st.Upsert(ctx, c.ID, "alice", 5)
	require.NoError(t, err)

	got, err := svc.Browse(ctx, alice, "   ", "")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, got.Filter)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, eventIDs(got.Events))
	assert.True(t, got.Events[1].IsRegistered)
	assert.Equal(t, 5, got.Events[2].PreviousRating)

	got, err = svc.Browse(ctx, alice, "", FilterRegistered)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, eventIDs(got.Events))

	_, err = svc.Browse(ctx, alice, "", "bogus")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestBrowseSearchKeepsRanking(t *testing.T) {
	svc, st, idx := newTestDiscovery(t)
	a := st.addEvent("olga", model.Event{Name: "Tech Fair"})
	b := st.addEvent("olga", model.Event{Name: "Tech Talk"})
	ctx := context.Background()

	idx.hits = []model.SearchHit{
		{EventID: b.ID, Name: "Tech Talk"},
		{EventID: 999, Name: "deleted"},
		{EventID: a.ID, Name: "Tech Fair"},
	}
	got, err := svc.Browse(ctx, alice, "tech", FilterAll)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, a.ID}, eventIDs(got.Events))
	assert.Empty(t, got.Warnings)

	_, err = st.Toggle(ctx, a.ID, "alice")
	require.NoError(t, err)
	got, err = svc.Browse(ctx, alice, "tech", FilterRegistered)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, eventIDs(got.Events))
}

func TestBrowseIndexUnavailable(t *testing.T) {
	svc, st, idx := newTestDiscovery(t)
	st.addEvent("olga", model.Event{Name: "Tech Talk"})
	idx.err = search.ErrIndexUnavailable

	got, err := svc.Browse(context.Background(), alice, "tech", FilterAll)
	require.NoError(t, err)
	assert.Empty(t, got.Events)
	assert.Equal(t, []string{searchUnavailableWarning}, got.Warnings)

	idx.err = errors.New("bad request")
	_, err = svc.Browse(context.Background(), alice, "tech", FilterAll)
	assert.Error(t, err)
}

func TestSuggestAndSearch(t *testing.T) {
	svc, _, idx := newTestDiscovery(t)
	ctx := context.Background()
	for i := int64(1); i <= 12; i++ {
		idx.hits = append(idx.hits, model.SearchHit{EventID: i, Name: "Tech"})
	}

	got, err := svc.Suggest(ctx, "tech")
	require.NoError(t, err)
	assert.Len(t, got.Hits, search.AutocompleteLimit)

	got, err = svc.SearchEvents(ctx, "tech")
	require.NoError(t, err)
	assert.Len(t, got.Hits, search.FullSearchLimit)
	assert.Equal(t, int64(1), got.Hits[0].EventID)

	_, err = svc.Suggest(ctx, "  ")
	assert.ErrorIs(t, err, search.ErrEmptyQuery)

	idx.err = search.ErrIndexUnavailable
	got, err = svc.SearchEvents(ctx, "tech")
	require.NoError(t, err)
	assert.Empty(t, got.Hits)
	assert.NotEmpty(t, got.Warnings)
}

func validRequest() model.CreateEventRequest {
	return model.CreateEventRequest{
		Name:         "  Go Meetup ",
		Category:     "tech",
		StartDate:    "2024-07-01",
		EndDate:      "2024-07-02",
		StartTime:    "18:30",
		MaxCapacity:  50,
		TicketPrice:  decimal.RequireFromString("12.50"),
		RedirectLink: "https://example.com/go",
	}
}

func TestCreateEvent(t *testing.T) {
	svc, st, idx := newTestDiscovery(t)
	ctx := context.Background()

	got, err := svc.CreateEvent(ctx, olga, validRequest())
	require.NoError(t, err)
	assert.Empty(t, got.Warnings)
	assert.Equal(t, "Go Meetup", got.Event.Name)
	assert.Equal(t, date(2024, 7, 1), got.Event.StartDate)
	require.NotNil(t, got.Event.StartTime)
	assert.Equal(t, "18h30m0s", got.Event.StartTime.String())
	assert.Nil(t, got.Event.EndTime)
	assert.Equal(t, []int64{got.Event.ID}, idx.upserted)

	owns, err := st.IsOrganizer(ctx, got.Event.ID, "olga")
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestCreateEventRejects(t *testing.T) {
	svc, _, _ := newTestDiscovery(t)
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, alice, validRequest())
	assert.ErrorIs(t, err, ErrRoleIneligible)

	for name, mutate := range map[string]func(*model.CreateEventRequest){
		"blank name":     func(r *model.CreateEventRequest) { r.Name = "   " },
		"bad date":       func(r *model.CreateEventRequest) { r.StartDate = "01/07/2024" },
		"end before":     func(r *model.CreateEventRequest) { r.EndDate = "2024-06-30" },
		"bad time":       func(r *model.CreateEventRequest) { r.EndTime = "25:00" },
		"negative price": func(r *model.CreateEventRequest) { r.TicketPrice = decimal.NewFromInt(-1) },
		"bad link":       func(r *model.CreateEventRequest) { r.RedirectLink = "not a url" },
	} {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := svc.CreateEvent(ctx, olga, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateEventIndexFailure(t *testing.T) {
	svc, st, idx := newTestDiscovery(t)
	idx.upsertErr = search.ErrIndexUnavailable

	got, err := svc.CreateEvent(context.Background(), olga, validRequest())
	require.NoError(t, err)
	assert.Len(t, got.Warnings, 1)

	_, err = st.GetByID(context.Background(), got.Event.ID)
	assert.NoError(t, err, "event is kept when indexing fails")
}

func TestAttendees(t *testing.T) {
	svc, st, _ := newTestDiscovery(t)
	st.addUser("oscar", model.RoleOrganizer)
	e := st.addEvent("olga", model.Event{Name: "Go Meetup"})
	ctx := context.Background()

	for _, u := range []string{"bob", "alice"} {
		_, err := st.Toggle(ctx, e.ID, u)
		require.NoError(t, err)
	}
	_, err := st.Upsert(ctx, e.ID, "alice", 4)
	require.NoError(t, err)
	_, err = st.Upsert(ctx, e.ID, "bob", 2)
	require.NoError(t, err)

	got, err := svc.Attendees(ctx, olga, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendees, 2)
	assert.Equal(t, "alice", got.Attendees[0].Username)
	assert.Equal(t, 2, got.Ratings.Count)
	assert.InDelta(t, 3.0, got.Ratings.Average, 1e-9)

	_, err = svc.Attendees(ctx, model.Identity{Username: "oscar"}, e.ID)
	assert.ErrorIs(t, err, ErrRoleIneligible, "not this event's organizer")

	_, err = svc.Attendees(ctx, alice, e.ID)
	assert.ErrorIs(t, err, ErrRoleIneligible)

	_, err = svc.Attendees(ctx, olga, 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestOrganizerEventsAndReindex(t *testing.T) {
	svc, st, idx := newTestDiscovery(t)
	st.addUser("oscar", model.RoleOrganizer)
	mine := st.addEvent("olga", model.Event{Name: "Mine"})
	st.addEvent("oscar", model.Event{Name: "Theirs"})
	ctx := context.Background()

	got, err := svc.OrganizerEvents(ctx, olga)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)

	_, err = svc.OrganizerEvents(ctx, alice)
	assert.ErrorIs(t, err, ErrRoleIneligible)

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.rebuilt)
}
