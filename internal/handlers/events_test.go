package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/googlecal"
	"github.com/ansonkao/time-tracker/internal/request"
	"github.com/ansonkao/time-tracker/internal/session"
)

// fakeUpstream serves a one-calendar account with two events in the week
// of 2024-03-04.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/calendarList"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "primary", "summary": "Work", "timeZone": "UTC"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/events"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id":      "ev-1",
						"summary": "Standup",
						"start":   map[string]string{"dateTime": "2024-03-04T09:00:00Z"},
						"end":     map[string]string{"dateTime": "2024-03-04T09:30:00Z"},
					},
					{
						"id":      "ev-2",
						"summary": "Offsite",
						"start":   map[string]string{"date": "2024-03-06"},
						"end":     map[string]string{"date": "2024-03-07"},
					},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newCalendarRouter(t *testing.T, upstreamURL string) *mux.Router {
	t.Helper()
	client := googlecal.NewClient(zap.NewNop(), googlecal.WithBaseURL(upstreamURL))
	h := NewCalendarHandler(client, zap.NewNop())
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/api/v1/calendar").Subrouter())
	return r
}

func withTestSession(r *http.Request, token string) *http.Request {
	sess := &session.Session{Email: "user@example.com", AccessToken: token}
	return r.WithContext(request.WithSession(r.Context(), sess))
}

func TestGetWeekEvents(t *testing.T) {
	t.Parallel()
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newCalendarRouter(t, upstream.URL)

	req := httptest.NewRequest("GET", "/api/v1/calendar/events?week=2024-03-06", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withTestSession(req, "good-token"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeData[WeekEventsResponse](t, w.Result())
	if resp.WeekStart != "2024-03-04" {
		t.Errorf("week_start = %q, want Monday 2024-03-04", resp.WeekStart)
	}
	if resp.WeekEnd != "2024-03-11" {
		t.Errorf("week_end = %q", resp.WeekEnd)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(resp.Events))
	}
	if resp.Events[0].CalendarID != "primary" {
		t.Errorf("events should be stamped with calendar ID, got %q", resp.Events[0].CalendarID)
	}
	if len(resp.Calendars) != 1 || resp.Calendars[0].ID != "primary" {
		t.Errorf("calendars = %+v", resp.Calendars)
	}
}

func TestGetWeekEventsBadAnchor(t *testing.T) {
	t.Parallel()
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newCalendarRouter(t, upstream.URL)

	req := httptest.NewRequest("GET", "/api/v1/calendar/events?week=notadate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withTestSession(req, "good-token"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetWeekEventsExpiredCredential(t *testing.T) {
	t.Parallel()
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newCalendarRouter(t, upstream.URL)

	req := httptest.NewRequest("GET", "/api/v1/calendar/events?week=2024-03-06", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withTestSession(req, "stale-token"))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGetWeekEventsNoSession(t *testing.T) {
	t.Parallel()
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newCalendarRouter(t, upstream.URL)

	req := httptest.NewRequest("GET", "/api/v1/calendar/events?week=2024-03-06", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGetWeekEventsUpstreamFailure(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()
	// Retries disabled so the test does not sit through backoff.
	client := googlecal.NewClient(zap.NewNop(),
		googlecal.WithBaseURL(upstream.URL),
		googlecal.WithRetry(0, time.Millisecond),
	)
	h := NewCalendarHandler(client, zap.NewNop())
	router := mux.NewRouter()
	h.RegisterRoutes(router.PathPrefix("/api/v1/calendar").Subrouter())

	req := httptest.NewRequest("GET", "/api/v1/calendar/events?week=2024-03-06", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withTestSession(req, "good-token"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestGetWeekDays(t *testing.T) {
	t.Parallel()
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newCalendarRouter(t, upstream.URL)

	req := httptest.NewRequest("GET", "/api/v1/calendar/events/days?week=2024-03-04", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withTestSession(req, "good-token"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeData[WeekDaysResponse](t, w.Result())
	if resp.Days[0].Date != "2024-03-04" {
		t.Errorf("day 0 date = %q", resp.Days[0].Date)
	}
	// Standup lands on Monday, the all-day Offsite on Wednesday.
	if len(resp.Days[0].Events) != 1 || resp.Days[0].Events[0].ID != "ev-1" {
		t.Errorf("monday events = %+v", resp.Days[0].Events)
	}
	if len(resp.Days[2].Events) != 1 || resp.Days[2].Events[0].ID != "ev-2" {
		t.Errorf("wednesday events = %+v", resp.Days[2].Events)
	}
}
