package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/engine"
	"github.com/ansonkao/time-tracker/internal/googlecal"
	logpkg "github.com/ansonkao/time-tracker/internal/logger"
	"github.com/ansonkao/time-tracker/internal/models"
	"github.com/ansonkao/time-tracker/internal/request"
	"github.com/ansonkao/time-tracker/internal/store"
	"github.com/ansonkao/time-tracker/internal/validation"
	"github.com/ansonkao/time-tracker/internal/week"
)

// SessionCredential resolves the upstream access token from the session
// attached to the request context by the auth middleware.
type SessionCredential struct{}

// Token implements googlecal.CredentialProvider.
func (SessionCredential) Token(ctx context.Context) (string, error) {
	if s := request.SessionValue(ctx); s != nil && s.AccessToken != "" {
		return s.AccessToken, nil
	}
	return "", googlecal.ErrCredentialExpired
}

// EngineHandler exposes the categorization engine: week loading,
// calendar visibility, search, the selection set and assignments.
type EngineHandler struct {
	engine     *engine.Engine
	categories *store.CategoryStore
	log        *zap.Logger
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(eng *engine.Engine, categories *store.CategoryStore, log *zap.Logger) *EngineHandler {
	return &EngineHandler{engine: eng, categories: categories, log: log}
}

// RegisterRoutes registers engine routes on the given router
// The router should already have the /engine prefix
func (h *EngineHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/state", h.GetState).Methods("GET")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/retry", h.Retry).Methods("POST")
	r.HandleFunc("/events", h.GetEvents).Methods("GET")
	r.HandleFunc("/days", h.GetDays).Methods("GET")
	r.HandleFunc("/calendars", h.GetCalendars).Methods("GET")
	r.HandleFunc("/visibility", h.SetVisibility).Methods("PUT")
	r.HandleFunc("/search", h.SetSearch).Methods("PUT")
	r.HandleFunc("/selection/toggle", h.ToggleSelect).Methods("POST")
	r.HandleFunc("/selection/all", h.SelectAllVisible).Methods("POST")
	r.HandleFunc("/selection/by-category", h.SelectByCategory).Methods("POST")
	r.HandleFunc("/selection", h.ClearSelection).Methods("DELETE")
	r.HandleFunc("/assign", h.Assign).Methods("POST")
	r.HandleFunc("/summaries", h.GetSummaries).Methods("GET")
}

// EngineStateResponse describes the fetch lifecycle and loaded window.
type EngineStateResponse struct {
	State         engine.State `json:"state"`
	WeekStart     string       `json:"week_start,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	SelectedCount int          `json:"selected_count"`
}

func (h *EngineHandler) stateResponse() EngineStateResponse {
	resp := EngineStateResponse{
		State:         h.engine.State(),
		SelectedCount: h.engine.SelectedCount(),
	}
	if win := h.engine.Window(); !win.Start.IsZero() {
		resp.WeekStart = win.Start.Format(models.DateLayout)
	}
	if err := h.engine.LastError(); err != nil {
		resp.LastError = sanitizeErrorMessage(err.Error())
	}
	return resp
}

// GetState returns the engine lifecycle state
func (h *EngineHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stateResponse())
}

func (h *EngineHandler) respondRefreshError(w http.ResponseWriter, err error) {
	if errors.Is(err, googlecal.ErrCredentialExpired) {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Calendar credential expired, re-authentication required")
		return
	}
	h.log.Error("engine_refresh_failed", zap.String("error", logpkg.SanitizeError(err)))
	respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Week fetch failed")
}

// Refresh loads the week window given by ?week=, defaulting to the
// current week
func (h *EngineHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	anchor := r.URL.Query().Get("week")
	var win week.Window
	if anchor == "" {
		win = week.FromAnchor(time.Now().UTC())
	} else {
		parsed, err := week.Parse(anchor)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "week must be a YYYY-MM-DD date")
			return
		}
		win = parsed
	}

	if err := h.engine.Refresh(r.Context(), win); err != nil {
		h.respondRefreshError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.stateResponse())
}

// Retry re-runs the last fetch after a failure
func (h *EngineHandler) Retry(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Retry(r.Context()); err != nil {
		h.respondRefreshError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.stateResponse())
}

// GetEvents returns the events passing the visibility and search filters
func (h *EngineHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events := h.engine.FilteredEvents()
	if events == nil {
		events = []engine.EventView{}
	}
	respondJSON(w, http.StatusOK, events)
}

// GetDays returns the filtered events bucketed into the 7 day columns
func (h *EngineHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	win := h.engine.Window()
	buckets := h.engine.DayBuckets()

	type day struct {
		Date   string             `json:"date"`
		Events []engine.EventView `json:"events"`
	}
	days := make([]day, week.DaysPerWeek)
	for i := range buckets {
		events := buckets[i]
		if events == nil {
			events = []engine.EventView{}
		}
		days[i] = day{Date: win.DayKey(i), Events: events}
	}
	respondJSON(w, http.StatusOK, days)
}

// EngineCalendarResponse pairs a calendar with its visibility toggle.
type EngineCalendarResponse struct {
	models.CalendarDescriptor
	Visible bool `json:"visible"`
}

// GetCalendars returns the loaded calendars with their visibility state
func (h *EngineHandler) GetCalendars(w http.ResponseWriter, r *http.Request) {
	visibility := h.engine.Visibility()
	calendars := h.engine.Calendars()

	out := make([]EngineCalendarResponse, len(calendars))
	for i, cal := range calendars {
		out[i] = EngineCalendarResponse{CalendarDescriptor: cal, Visible: visibility[cal.ID]}
	}
	respondJSON(w, http.StatusOK, out)
}

// SetVisibilityRequest toggles one calendar in or out of the view
type SetVisibilityRequest struct {
	CalendarID string `json:"calendar_id" validate:"required"`
	Visible    *bool  `json:"visible" validate:"required"`
}

// SetVisibility toggles whether a calendar's events are shown
func (h *EngineHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req SetVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	h.engine.SetVisibility(req.CalendarID, *req.Visible)
	respondJSON(w, http.StatusOK, map[string]any{
		"calendar_id": req.CalendarID,
		"visible":     *req.Visible,
	})
}

// SetSearchRequest sets the free-text summary filter
type SetSearchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// SetSearch sets the free-text filter over event titles
func (h *EngineHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var req SetSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	h.engine.SetSearch(validation.SanitizeText(req.Query))
	respondJSON(w, http.StatusOK, map[string]string{"query": req.Query})
}

// ToggleSelectRequest flips one event in or out of the selection
type ToggleSelectRequest struct {
	EventID string `json:"event_id" validate:"required"`
}

// ToggleSelect flips one event's selection state
func (h *EngineHandler) ToggleSelect(w http.ResponseWriter, r *http.Request) {
	var req ToggleSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	selected := h.engine.ToggleSelect(req.EventID)
	respondJSON(w, http.StatusOK, map[string]any{
		"event_id":       req.EventID,
		"selected":       selected,
		"selected_count": h.engine.SelectedCount(),
	})
}

// SelectAllVisible replaces the selection with every filtered event
func (h *EngineHandler) SelectAllVisible(w http.ResponseWriter, r *http.Request) {
	count := h.engine.SelectAllVisible()
	respondJSON(w, http.StatusOK, map[string]int{"selected_count": count})
}

// SelectByCategoryRequest selects the events assigned to one category
type SelectByCategoryRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
}

// SelectByCategory replaces the selection with a category's events
func (h *EngineHandler) SelectByCategory(w http.ResponseWriter, r *http.Request) {
	var req SelectByCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	count := h.engine.SelectByCategory(req.CategoryID)
	respondJSON(w, http.StatusOK, map[string]int{"selected_count": count})
}

// ClearSelection drops the selection and resets the search filter
func (h *EngineHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearSelection()
	respondJSON(w, http.StatusOK, map[string]int{"selected_count": 0})
}

// AssignRequest assigns the selection to one category
type AssignRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
}

// Assign sets the category on every selected, currently visible event
func (h *EngineHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	// The category must still exist; assignments to deleted categories
	// would silently vanish from the summaries.
	categories, err := h.categories.List(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load categories")
		return
	}
	known := false
	for _, cat := range categories {
		if cat.ID == req.CategoryID {
			known = true
			break
		}
	}
	if !known {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Category not found")
		return
	}

	assigned := h.engine.Assign(req.CategoryID)
	respondJSON(w, http.StatusOK, map[string]any{
		"category_id":    req.CategoryID,
		"assigned_count": assigned,
	})
}

// GetSummaries returns the per-category count and hour aggregates
func (h *EngineHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load categories")
		return
	}

	summaries := h.engine.Summaries(categories)
	if summaries == nil {
		summaries = []engine.CategorySummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}
