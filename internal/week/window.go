// Package week holds the pure calendar math: week window navigation and
// the bucketing of events into the seven days of a window.
package week

import (
	"fmt"
	"time"

	"github.com/ansonkao/time-tracker/internal/models"
)

// Window is a Monday-aligned 7-day span. Start is zeroed to day start;
// the end boundary is exclusive, exactly 7 days later.
type Window struct {
	Start time.Time
}

// StartOfWeek returns the Monday at or before t, zeroed to day start in
// t's location.
func StartOfWeek(t time.Time) time.Time {
	// time.Weekday puts Sunday at 0; shift so Monday is 0.
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

// FromAnchor builds the window containing the anchor date.
func FromAnchor(anchor time.Time) Window {
	return Window{Start: StartOfWeek(anchor)}
}

// Parse builds a window from a "2006-01-02" anchor string.
func Parse(anchor string) (Window, error) {
	t, err := time.Parse(models.DateLayout, anchor)
	if err != nil {
		return Window{}, fmt.Errorf("invalid week anchor %q: %w", anchor, err)
	}
	return FromAnchor(t), nil
}

// End is the exclusive end boundary, 7 days after Start.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, 0, 7)
}

// Next shifts the window forward by exactly 7 days.
func (w Window) Next() Window {
	return Window{Start: w.Start.AddDate(0, 0, 7)}
}

// Previous shifts the window back by exactly 7 days.
func (w Window) Previous() Window {
	return Window{Start: w.Start.AddDate(0, 0, -7)}
}

// Day returns the date of day i (0..6) within the window.
func (w Window) Day(i int) time.Time {
	return w.Start.AddDate(0, 0, i)
}

// DayKey returns the "2006-01-02" key of day i within the window.
func (w Window) DayKey(i int) string {
	return w.Day(i).Format(models.DateLayout)
}
