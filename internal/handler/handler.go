// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository"
	"github.com/Shivanand-hulikatti/eventhub/internal/search"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
)

// Discovery is the read side and event creation, implemented by
// service.DiscoveryService.
type Discovery interface {
	EventDetails(ctx context.Context, id model.Identity, eventID int64) (*service.EventDetails, error)
	Browse(ctx context.Context, id model.Identity, query, filter string) (*service.BrowseResult, error)
	Suggest(ctx context.Context, text string) (*service.SearchResult, error)
	SearchEvents(ctx context.Context, text string) (*service.SearchResult, error)
	CreateEvent(ctx context.Context, id model.Identity, req model.CreateEventRequest) (*service.CreateResult, error)
	OrganizerEvents(ctx context.Context, id model.Identity) ([]model.Event, error)
	Attendees(ctx context.Context, id model.Identity, eventID int64) (*service.AttendeeReport, error)
}

// Registrar performs the attendee mutations, implemented by
// service.RegistrationService.
type Registrar interface {
	ToggleRegistration(ctx context.Context, id model.Identity, eventID int64) (model.RegistrationAction, error)
	SubmitRating(ctx context.Context, id model.Identity, req model.RatingRequest) (model.RatingAction, error)
}

// EventHandler holds all HTTP handlers for the event discovery API.
type EventHandler struct {
	discovery   Discovery
	registrar   Registrar
	graphicsDir string
	log         *zap.Logger
}

// NewEventHandler constructs an EventHandler. Banner files are served from
// graphicsDir.
func NewEventHandler(discovery Discovery, registrar Registrar, graphicsDir string, log *zap.Logger) *EventHandler {
	return &EventHandler{discovery: discovery, registrar: registrar, graphicsDir: graphicsDir, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, notices ...model.Notice) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Notices: notices})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func eventID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func identity(r *http.Request) model.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

// statusFor maps a service error onto an HTTP status and a client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		return http.StatusNotFound, "event not found"
	case errors.Is(err, service.ErrUnknownUser):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, service.ErrRoleIneligible):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidFilter):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, search.ErrEmptyQuery):
		return http.StatusBadRequest, "search query is empty"
	case errors.Is(err, repository.ErrConstraintViolation):
		return http.StatusConflict, "request conflicted with a concurrent change, try again"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *EventHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	var notices []model.Notice
	if n, ok := service.NoticeFor(err); ok {
		notices = append(notices, n)
	}
	writeError(w, status, msg, notices...)
}

// Unauthenticated is the auth.Middleware failure callback.
func Unauthenticated(w http.ResponseWriter, _ *http.Request, err error) {
	_, msg := statusFor(err)
	writeError(w, http.StatusUnauthorized, msg)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ListEvents handles GET /events?search=&filter=
// Returns the caller's annotated catalog, optionally narrowed by a search.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.discovery.Browse(r.Context(), identity(r), q.Get("search"), q.Get("filter"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.discovery.CreateEvent(r.Context(), identity(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetEvent handles GET /events/{id}
// Eligibility problems come back as notices alongside the event.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	res, err := h.discovery.EventDetails(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ToggleRegistration handles POST /events/{id}/register
// Registers the caller, or cancels an existing registration.
func (h *EventHandler) ToggleRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	action, err := h.registrar.ToggleRegistration(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": id, "action": action})
}

// SubmitRating handles POST /events/{id}/rating
func (h *EventHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req model.RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.EventID = id

	action, err := h.registrar.SubmitRating(r.Context(), identity(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": id, "rating": *req.Rating, "action": action})
}

// ListAttendees handles GET /events/{id}/attendees
func (h *EventHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	res, err := h.discovery.Attendees(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// OrganizerEvents handles GET /organizer/events
func (h *EventHandler) OrganizerEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.discovery.OrganizerEvents(r.Context(), identity(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Suggest handles GET /search?search=
// Returns up to five [name, id] pairs for autocomplete.
func (h *EventHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	res, err := h.discovery.Suggest(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(res.Warnings) > 0 {
		w.Header().Set("Warning", `199 - "`+strings.Join(res.Warnings, "; ")+`"`)
	}

	pairs := make([][2]any, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pairs = append(pairs, [2]any{hit.Name, hit.EventID})
	}
	writeJSON(w, http.StatusOK, pairs)
}

// SearchEvents handles GET /search/full?search=
func (h *EventHandler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	res, err := h.discovery.SearchEvents(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SendBanner handles GET /events/send_file/{filename}
// Serves a banner image from the graphics directory.
func (h *EventHandler) SendBanner(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	path := filepath.Join(h.graphicsDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
