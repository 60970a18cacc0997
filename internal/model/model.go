// Package model defines the core domain types for the event discovery service.
package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the immutable role of a user. The integer values match the
// credentials.role column.
type Role int

const (
	RoleAttendee  Role = 0
	RoleOrganizer Role = 1
)

// String returns the role name used in tokens and JSON.
func (r Role) String() string {
	switch r {
	case RoleAttendee:
		return "attendee"
	case RoleOrganizer:
		return "organizer"
	default:
		return "unknown"
	}
}

// ParseRole converts a role name back into a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "attendee", "user":
		return RoleAttendee, true
	case "organizer":
		return RoleOrganizer, true
	default:
		return 0, false
	}
}

// Identity is the caller as seen by the core: a username and its role.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Event is a single row of event_details.
type Event struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	IsOnline        bool            `json:"is_online"`
	Venue           string          `json:"venue"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	StartTime       *time.Duration  `json:"start_time,omitempty"`
	EndTime         *time.Duration  `json:"end_time,omitempty"`
	MaxCapacity     int             `json:"max_capacity"`
	CurrentCapacity int             `json:"current_capacity"`
	TicketPrice     decimal.Decimal `json:"ticket_price"`
	RedirectLink    string          `json:"redirect_link"`
	AdditionalInfo  string          `json:"additional_info"`
	Banner          string          `json:"banner,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Remaining returns the number of seats not yet taken. Capacity is tracked
// but never enforced on registration.
func (e *Event) Remaining() int {
	return e.MaxCapacity - e.CurrentCapacity
}

// EndsAt combines EndDate with EndTime in loc. An unset EndTime means the
// event runs until the end of its last day.
func (e *Event) EndsAt(loc *time.Location) time.Time {
	y, m, d := e.EndDate.Date()
	if e.EndTime == nil {
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(*e.EndTime)
}

// Registration represents an attendee's intent to attend an event.
type Registration struct {
	EventID          int64     `json:"event_id"`
	AttendeeUsername string    `json:"attendee_username"`
	CreatedAt        time.Time `json:"created_at"`
}

// Attendee is a registered user joined with their profile details.
type Attendee struct {
	Username     string    `json:"username"`
	FirstName    string    `json:"firstname"`
	LastName     string    `json:"lastname"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Rating is one attendee's score for one event.
type Rating struct {
	EventID          int64     `json:"event_id"`
	AttendeeUsername string    `json:"attendee_username"`
	Value            int       `json:"rating"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RatingSummary aggregates all ratings of an event.
type RatingSummary struct {
	EventID int64   `json:"event_id"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// RegistrationAction is the outcome of a registration toggle.
type RegistrationAction string

const (
	Registered RegistrationAction = "registered"
	Cancelled  RegistrationAction = "cancelled"
)

// RatingAction is the outcome of a rating upsert.
type RatingAction string

const (
	RatingCreated RatingAction = "created"
	RatingUpdated RatingAction = "updated"
)

// SearchHit is one ranked search result.
type SearchHit struct {
	EventID int64  `json:"id"`
	Name    string `json:"name"`
}

// Notice is a user-visible message attached to a response.
type Notice struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// EventView is an event annotated for a specific caller.
type EventView struct {
	Event
	BannerURL      string `json:"banner_url,omitempty"`
	IsRegistered   bool   `json:"is_registered"`
	IsPastEvent    bool   `json:"is_past_event"`
	PreviousRating int    `json:"prev_rating"`
}

// EventDocument is the search-index representation of an event. Every field
// is a string.
type EventDocument struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Venue          string `json:"venue"`
	AdditionalInfo string `json:"additional_info"`
}

// NewEventDocument builds the index document for e.
func NewEventDocument(e Event) EventDocument {
	return EventDocument{
		ID:             strconv.FormatInt(e.ID, 10),
		Name:           e.Name,
		Description:    e.Description,
		Category:       e.Category,
		Venue:          e.Venue,
		AdditionalInfo: e.AdditionalInfo,
	}
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name           string          `json:"name" validate:"required,max=150"`
	Description    string          `json:"description" validate:"max=1000"`
	Category       string          `json:"category" validate:"max=150"`
	IsOnline       bool            `json:"is_online"`
	Venue          string          `json:"venue" validate:"max=150"`
	StartDate      string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string          `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartTime      string          `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime        string          `json:"end_time" validate:"omitempty,datetime=15:04"`
	MaxCapacity    int             `json:"max_capacity" validate:"gte=0"`
	TicketPrice    decimal.Decimal `json:"ticket_price"`
	RedirectLink   string          `json:"redirect_link" validate:"omitempty,url,max=300"`
	AdditionalInfo string          `json:"additional_info" validate:"max=1000"`
	BannerImage    string          `json:"banner_image" validate:"omitempty,max=250"`
}

// RatingRequest is the payload for submitting a rating. Pointer fields
// distinguish "absent" from zero.
type RatingRequest struct {
	EventID int64 `json:"event_id"`
	Rating  *int  `json:"rating"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Notices []Notice `json:"notices,omitempty"`
}
