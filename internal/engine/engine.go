// Package engine layers the weekly audit view on top of the raw event
// aggregate: calendar visibility, free-text search, the selection set,
// the event-to-category assignment and the per-category summaries.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/googlecal"
	"github.com/ansonkao/time-tracker/internal/models"
	"github.com/ansonkao/time-tracker/internal/week"
)

// State is the per-session fetch lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Fetcher produces the week aggregate. Satisfied by *googlecal.Client.
type Fetcher interface {
	FetchWeek(ctx context.Context, token string, w week.Window) (*googlecal.WeekData, error)
}

// EventView is an event as exposed to the UI layer: the immutable record
// plus its current assignment and selection state.
type EventView struct {
	models.CalendarEvent
	CategoryID string `json:"categoryId,omitempty"`
	Selected   bool   `json:"selected,omitempty"`
}

// CategorySummary is the audit aggregate for one category under the
// active visibility filter. Zero-valued summaries are still emitted so a
// category never disappears from the audit table.
type CategorySummary struct {
	Category   models.Category `json:"category"`
	EventCount int             `json:"eventCount"`
	TotalHours float64         `json:"totalHours"`
}

// Engine drives fetches for a week window and owns the categorization
// view state. One engine serves one logical consumer; the mutex only
// guards against overlapping HTTP handlers.
//
// Events are rebuilt fresh on every fetch. Assignments are keyed by
// (calendarID, eventID) and deliberately survive refetches, so navigating
// away from a week and back restores its categorization for the lifetime
// of the engine.
type Engine struct {
	fetcher    Fetcher
	creds      googlecal.CredentialProvider
	bucketizer *week.Bucketizer
	log        *zap.Logger

	mu          sync.Mutex
	state       State
	lastErr     error
	window      week.Window
	events      []models.CalendarEvent
	calendars   []models.CalendarDescriptor
	visible     map[string]bool
	search      string
	selected    map[string]struct{}
	assignments map[models.EventKey]string
}

// New creates an idle engine.
func New(fetcher Fetcher, creds googlecal.CredentialProvider, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		fetcher:     fetcher,
		creds:       creds,
		bucketizer:  week.NewBucketizer(log),
		log:         log,
		state:       StateIdle,
		visible:     make(map[string]bool),
		selected:    make(map[string]struct{}),
		assignments: make(map[models.EventKey]string),
	}
}

// Refresh fetches the aggregate for the window. It enters Loading first;
// on success the event set is replaced, visibility defaults are merged
// for newly seen calendars and the stale selection is dropped. A non-auth
// failure parks the engine in Failed until Retry. An expired credential
// is the distinguished re-authentication outcome: it is returned
// unwrapped and the engine returns to Idle rather than Failed.
func (e *Engine) Refresh(ctx context.Context, w week.Window) error {
	e.mu.Lock()
	e.state = StateLoading
	e.lastErr = nil
	e.window = w
	e.mu.Unlock()

	token, err := e.creds.Token(ctx)
	if err != nil {
		return e.finishRefresh(nil, err)
	}
	data, err := e.fetcher.FetchWeek(ctx, token, w)
	return e.finishRefresh(data, err)
}

// Retry re-enters Loading with the current window. It is the only way
// out of Failed.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	w := e.window
	e.mu.Unlock()
	return e.Refresh(ctx, w)
}

func (e *Engine) finishRefresh(data *googlecal.WeekData, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if errors.Is(err, googlecal.ErrCredentialExpired) {
			e.state = StateIdle
			e.log.Warn("week_fetch_unauthorized")
			return err
		}
		e.state = StateFailed
		e.lastErr = err
		e.log.Error("week_fetch_failed", zap.Error(err))
		return err
	}

	e.events = data.Events
	e.calendars = data.Calendars
	for _, cal := range data.Calendars {
		if _, seen := e.visible[cal.ID]; !seen {
			e.visible[cal.ID] = true
		}
	}
	e.selected = make(map[string]struct{})
	e.state = StateLoaded
	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the failure that parked the engine in Failed, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Window returns the currently loaded week window.
func (e *Engine) Window() week.Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}

// Calendars returns the calendar descriptors of the last fetch.
func (e *Engine) Calendars() []models.CalendarDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.CalendarDescriptor, len(e.calendars))
	copy(out, e.calendars)
	return out
}

// SetVisibility toggles whether a calendar's events take part in the
// filtered view, the summaries and future assignments.
func (e *Engine) SetVisibility(calendarID string, visible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible[calendarID] = visible
}

// Visibility returns a copy of the per-calendar visibility map.
func (e *Engine) Visibility() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, len(e.visible))
	for k, v := range e.visible {
		out[k] = v
	}
	return out
}

// SetSearch sets the free-text summary filter.
func (e *Engine) SetSearch(query string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.search = query
}

// matchesFilter implements the visibility + search predicate. Events
// whose calendar is unknown to the current calendar set have no
// visibility entry and are filtered out rather than crashing anything.
// Callers must hold the mutex.
func (e *Engine) matchesFilter(ev models.CalendarEvent) bool {
	if !e.visible[ev.CalendarID] {
		return false
	}
	if e.search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(ev.Summary), strings.ToLower(e.search))
}

func (e *Engine) view(ev models.CalendarEvent) EventView {
	_, selected := e.selected[ev.ID]
	return EventView{
		CalendarEvent: ev,
		CategoryID:    e.assignments[ev.Key()],
		Selected:      selected,
	}
}

// FilteredEvents returns the events passing the visibility and search
// filters, with their assignment and selection state attached.
func (e *Engine) FilteredEvents() []EventView {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []EventView
	for _, ev := range e.events {
		if e.matchesFilter(ev) {
			out = append(out, e.view(ev))
		}
	}
	return out
}

// ToggleSelect flips one event in or out of the selection set and
// reports whether it is now selected.
func (e *Engine) ToggleSelect(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.selected[eventID]; ok {
		delete(e.selected, eventID)
		return false
	}
	e.selected[eventID] = struct{}{}
	return true
}

// SelectAllVisible replaces the selection with every filtered event's ID
// and returns the new selection size.
func (e *Engine) SelectAllVisible() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]struct{})
	for _, ev := range e.events {
		if e.matchesFilter(ev) {
			e.selected[ev.ID] = struct{}{}
		}
	}
	return len(e.selected)
}

// SelectByCategory replaces the selection with the events currently
// assigned to the category, so an assignment can be reviewed or moved.
func (e *Engine) SelectByCategory(categoryID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]struct{})
	for _, ev := range e.events {
		if e.assignments[ev.Key()] == categoryID {
			e.selected[ev.ID] = struct{}{}
		}
	}
	return len(e.selected)
}

// ClearSelection drops the selection and resets the search filter.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]struct{})
	e.search = ""
}

// SelectedCount returns the selection size.
func (e *Engine) SelectedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.selected)
}

// Assign sets the category on every selected event whose calendar is
// visible right now; visibility is re-checked at assignment time, so an
// event selected before its calendar was hidden is skipped. The
// selection is cleared afterwards. Returns the number of events
// assigned.
func (e *Engine) Assign(categoryID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	assigned := 0
	for _, ev := range e.events {
		if _, ok := e.selected[ev.ID]; !ok {
			continue
		}
		if !e.visible[ev.CalendarID] {
			continue
		}
		e.assignments[ev.Key()] = categoryID
		assigned++
	}
	e.selected = make(map[string]struct{})
	e.log.Debug("events_assigned_to_category",
		zap.String("category_id", categoryID),
		zap.Int("count", assigned),
	)
	return assigned
}

// Summaries derives the audit line for every category, in the given
// order. Counts include every visible assigned event; hours only
// accumulate from timed events, so all-day events add to the count but
// contribute zero duration.
func (e *Engine) Summaries(categories []models.Category) []CategorySummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]CategorySummary, len(categories))
	for i, cat := range categories {
		out[i] = CategorySummary{Category: cat}
	}
	index := make(map[string]int, len(categories))
	for i, cat := range categories {
		index[cat.ID] = i
	}

	for _, ev := range e.events {
		if !e.visible[ev.CalendarID] {
			continue
		}
		catID, ok := e.assignments[ev.Key()]
		if !ok {
			continue
		}
		i, ok := index[catID]
		if !ok {
			// Assignment to a category deleted since; ignore.
			continue
		}
		out[i].EventCount++
		out[i].TotalHours += ev.DurationHours()
	}
	return out
}

// DayBuckets classifies the filtered events into the 7 days of the
// loaded window, each day sorted by effective start.
func (e *Engine) DayBuckets() [week.DaysPerWeek][]EventView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var filtered []models.CalendarEvent
	for _, ev := range e.events {
		if e.matchesFilter(ev) {
			filtered = append(filtered, ev)
		}
	}
	raw := e.bucketizer.Buckets(e.window, filtered, e.calendars)

	var out [week.DaysPerWeek][]EventView
	for day, bucket := range raw {
		views := make([]EventView, len(bucket))
		for i, ev := range bucket {
			views[i] = e.view(ev)
		}
		out[day] = views
	}
	return out
}
