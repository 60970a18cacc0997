package service

import (
	"errors"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

var (
	// ErrUnknownUser is returned when the caller has no credentials row.
	ErrUnknownUser = errors.New("unknown user")
	// ErrEventNotFound is returned when the event id has no row.
	ErrEventNotFound = errors.New("event not found")
	// ErrRoleIneligible is returned when the caller's role may not perform
	// the action.
	ErrRoleIneligible = errors.New("role not eligible for this action")
	// ErrMissingField is returned when a mutation lacks a required input.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidRating is returned in strict mode for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrValidation is returned when a create request fails validation.
	ErrValidation = errors.New("invalid request")
	// ErrInvalidFilter is returned for an unknown browse filter.
	ErrInvalidFilter = errors.New("unknown filter")
)

// NoticeFor turns a recoverable eligibility error into a user-visible notice.
func NoticeFor(err error) (model.Notice, bool) {
	switch {
	case errors.Is(err, ErrUnknownUser):
		return model.Notice{Category: "error", Message: "Your account could not be found."}, true
	case errors.Is(err, ErrRoleIneligible):
		return model.Notice{Category: "info", Message: "Organizers cannot register for or rate events."}, true
	case errors.Is(err, ErrEventNotFound):
		return model.Notice{Category: "error", Message: "This event does not exist."}, true
	default:
		return model.Notice{}, false
	}
}
