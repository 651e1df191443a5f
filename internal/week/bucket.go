package week

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/models"
)

// DaysPerWeek is the number of day buckets in a window.
const DaysPerWeek = 7

// ResolveZone returns the effective IANA zone for a timed boundary:
// the event-level override wins, then the owning calendar's configured
// zone, then UTC. An unloadable zone name falls through to the next
// candidate.
func ResolveZone(t models.EventTime, cal *models.CalendarDescriptor) *time.Location {
	if t.TimeZone != "" {
		if loc, err := time.LoadLocation(t.TimeZone); err == nil {
			return loc
		}
	}
	if cal != nil && cal.TimeZone != "" {
		if loc, err := time.LoadLocation(cal.TimeZone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Bucketizer classifies events into the days of a week window. It holds
// no state besides a logger; bucketing is a pure function of the event,
// the window and the owning calendar's timezone.
type Bucketizer struct {
	log *zap.Logger
}

// NewBucketizer creates a bucketizer. A nil logger disables the malformed
// event warnings.
func NewBucketizer(log *zap.Logger) *Bucketizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bucketizer{log: log}
}

// Buckets returns, for each of the 7 days of the window, the events that
// occur on that day, sorted ascending by effective start instant.
//
// All-day events match every day in the inclusive range
// [start.Date, end.Date - 1 day]; the upstream end date is exclusive. A
// single-day all-day event (no end date) matches only its start date.
// Timed events match exactly one day: their start instant localized into
// the resolved zone. The end instant is never consulted, so a timed event
// crossing midnight still buckets only to its start day.
//
// Events whose start is malformed are logged and dropped, never an error.
func (b *Bucketizer) Buckets(w Window, events []models.CalendarEvent, calendars []models.CalendarDescriptor) [DaysPerWeek][]models.CalendarEvent {
	calByID := make(map[string]*models.CalendarDescriptor, len(calendars))
	for i := range calendars {
		calByID[calendars[i].ID] = &calendars[i]
	}

	valid := make([]models.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if err := checkBoundaries(ev); err != nil {
			b.log.Warn("event_excluded_malformed_start",
				zap.String("calendar_id", ev.CalendarID),
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, ev)
	}

	var buckets [DaysPerWeek][]models.CalendarEvent
	for day := 0; day < DaysPerWeek; day++ {
		key := w.DayKey(day)
		for _, ev := range valid {
			if occursOn(ev, key, calByID[ev.CalendarID]) {
				buckets[day] = append(buckets[day], ev)
			}
		}
		sortByStart(buckets[day])
	}
	return buckets
}

// checkBoundaries parses the boundaries occursOn will rely on, so a
// malformed event is rejected once instead of per day.
func checkBoundaries(ev models.CalendarEvent) error {
	if ev.Start.IsAllDay() {
		if _, err := ev.Start.Day(); err != nil {
			return err
		}
		if ev.End.IsAllDay() {
			if _, err := ev.End.Day(); err != nil {
				return err
			}
		}
		return nil
	}
	if ev.Start.DateTime != "" {
		_, err := ev.Start.Instant()
		return err
	}
	return nil
}

// occursOn reports whether ev falls on the given day key. Boundaries
// must already have passed checkBoundaries.
func occursOn(ev models.CalendarEvent, dayKey string, cal *models.CalendarDescriptor) bool {
	if ev.Start.IsAllDay() {
		if ev.End.IsAllDay() {
			end, err := ev.End.Day()
			if err != nil {
				return false
			}
			lastDay := end.AddDate(0, 0, -1).Format(models.DateLayout)
			return dayKey >= ev.Start.Date && dayKey <= lastDay
		}
		return dayKey == ev.Start.Date
	}

	if ev.Start.DateTime != "" {
		start, err := ev.Start.Instant()
		if err != nil {
			return false
		}
		local := start.In(ResolveZone(ev.Start, cal))
		return local.Format(models.DateLayout) == dayKey
	}

	// Neither representation present.
	return false
}

// effectiveStart is the sort instant: timed events use their instant,
// all-day events their nominal date at UTC midnight.
func effectiveStart(ev models.CalendarEvent) time.Time {
	if ev.Start.DateTime != "" {
		if t, err := ev.Start.Instant(); err == nil {
			return t
		}
	}
	if ev.Start.Date != "" {
		if t, err := ev.Start.Day(); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sortByStart(events []models.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return effectiveStart(events[i]).Before(effectiveStart(events[j]))
	})
}
