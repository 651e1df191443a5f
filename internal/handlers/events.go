package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/googlecal"
	logpkg "github.com/ansonkao/time-tracker/internal/logger"
	"github.com/ansonkao/time-tracker/internal/models"
	"github.com/ansonkao/time-tracker/internal/request"
	"github.com/ansonkao/time-tracker/internal/week"
)

// CalendarHandler serves raw week aggregates straight from the upstream
// calendar API, without the categorization view state.
type CalendarHandler struct {
	client *googlecal.Client
	log    *zap.Logger
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(client *googlecal.Client, log *zap.Logger) *CalendarHandler {
	return &CalendarHandler{client: client, log: log}
}

// RegisterRoutes registers calendar routes on the given router
// The router should already have the /calendar prefix
func (h *CalendarHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/calendars", h.ListCalendars).Methods("GET")
	r.HandleFunc("/events", h.GetWeekEvents).Methods("GET")
	r.HandleFunc("/events/days", h.GetWeekDays).Methods("GET")
}

// WeekEventsResponse is the raw aggregate for one week window.
type WeekEventsResponse struct {
	WeekStart string                      `json:"week_start"`
	WeekEnd   string                      `json:"week_end"`
	Calendars []models.CalendarDescriptor `json:"calendars"`
	Events    []models.CalendarEvent      `json:"events"`
}

// WeekDaysResponse is the aggregate bucketed into the 7 days of the window.
type WeekDaysResponse struct {
	WeekStart string                              `json:"week_start"`
	Days      [week.DaysPerWeek]DayBucketResponse `json:"days"`
	Calendars []models.CalendarDescriptor         `json:"calendars"`
}

// DayBucketResponse is one day column of the week view.
type DayBucketResponse struct {
	Date   string                 `json:"date"`
	Events []models.CalendarEvent `json:"events"`
}

// weekWindow resolves the optional ?week=YYYY-MM-DD anchor, defaulting to
// the week containing today.
func weekWindow(r *http.Request) (week.Window, error) {
	anchor := r.URL.Query().Get("week")
	if anchor == "" {
		return week.FromAnchor(time.Now().UTC()), nil
	}
	return week.Parse(anchor)
}

// respondUpstreamError maps collector failures onto HTTP statuses. An
// expired credential is the client's cue to re-run the OAuth flow.
func (h *CalendarHandler) respondUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, googlecal.ErrCredentialExpired) {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Calendar credential expired, re-authentication required")
		return
	}
	h.log.Error("calendar_upstream_failed", zap.String("error", logpkg.SanitizeError(err)))
	respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Calendar upstream request failed")
}

// ListCalendars lists the calendars visible to the session credential
func (h *CalendarHandler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Session not found in context")
		return
	}

	calendars, err := h.client.ListCalendars(r.Context(), sess.AccessToken)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, calendars)
}

// GetWeekEvents returns every event of every calendar for the week window
func (h *CalendarHandler) GetWeekEvents(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Session not found in context")
		return
	}

	win, err := weekWindow(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "week must be a YYYY-MM-DD date")
		return
	}

	data, err := h.client.FetchWeek(r.Context(), sess.AccessToken, win)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, WeekEventsResponse{
		WeekStart: win.Start.Format(models.DateLayout),
		WeekEnd:   win.End().Format(models.DateLayout),
		Calendars: data.Calendars,
		Events:    data.Events,
	})
}

// GetWeekDays returns the week aggregate bucketed into day columns
func (h *CalendarHandler) GetWeekDays(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Session not found in context")
		return
	}

	win, err := weekWindow(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "week must be a YYYY-MM-DD date")
		return
	}

	data, err := h.client.FetchWeek(r.Context(), sess.AccessToken, win)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	buckets := week.NewBucketizer(h.log).Buckets(win, data.Events, data.Calendars)

	resp := WeekDaysResponse{
		WeekStart: win.Start.Format(models.DateLayout),
		Calendars: data.Calendars,
	}
	for i, bucket := range buckets {
		resp.Days[i] = DayBucketResponse{
			Date:   win.DayKey(i),
			Events: bucket,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
