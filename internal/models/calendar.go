package models

import (
	"time"
)

// DateLayout is the wire format for all-day event boundaries and day keys.
const DateLayout = "2006-01-02"

// CalendarDescriptor describes one calendar the account has access to.
// Instances are built from the upstream calendar-list response and are
// immutable for the session.
type CalendarDescriptor struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
	Selected        bool   `json:"selected"`
	Primary         bool   `json:"primary"`
	AccessRole      string `json:"accessRole,omitempty"`
	TimeZone        string `json:"timeZone,omitempty"`
}

// EventTime is one boundary of an event. Exactly one of Date (all-day,
// timezone-naive calendar date) or DateTime (RFC3339 instant) is set.
// TimeZone is an optional IANA zone override for the instant.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// IsAllDay reports whether this boundary uses the all-day representation.
func (t EventTime) IsAllDay() bool {
	return t.Date != ""
}

// IsZero reports whether the boundary is absent entirely.
func (t EventTime) IsZero() bool {
	return t.Date == "" && t.DateTime == ""
}

// Instant parses the timed representation. Only valid when DateTime is set.
func (t EventTime) Instant() (time.Time, error) {
	return time.Parse(time.RFC3339, t.DateTime)
}

// Day parses the all-day representation as a UTC midnight.
// Only valid when Date is set.
func (t EventTime) Day() (time.Time, error) {
	return time.Parse(DateLayout, t.Date)
}

// Organizer identifies the event organizer as reported upstream.
type Organizer struct {
	Email string `json:"email,omitempty"`
}

// CalendarEvent is a single event as collected from the upstream events
// endpoint. CalendarID is stamped by the collector after the fetch; the
// upstream payload does not carry it. Events are value records rebuilt
// fresh on every fetch; category assignments live outside the event, keyed
// by EventKey.
type CalendarEvent struct {
	ID         string     `json:"id"`
	Summary    string     `json:"summary"`
	Start      EventTime  `json:"start"`
	End        EventTime  `json:"end"`
	ColorID    string     `json:"colorId,omitempty"`
	Organizer  *Organizer `json:"organizer,omitempty"`
	CalendarID string     `json:"calendarId"`
}

// EventKey is the globally unique identity of an event. Event IDs are only
// unique within their source calendar, so the pair is the real key.
type EventKey struct {
	CalendarID string
	EventID    string
}

// Key returns the global identity of the event.
func (e CalendarEvent) Key() EventKey {
	return EventKey{CalendarID: e.CalendarID, EventID: e.ID}
}

// DurationHours returns the event length in hours, computed only from
// timed boundaries. All-day events report zero.
func (e CalendarEvent) DurationHours() float64 {
	if e.Start.DateTime == "" || e.End.DateTime == "" {
		return 0
	}
	start, err := e.Start.Instant()
	if err != nil {
		return 0
	}
	end, err := e.End.Instant()
	if err != nil {
		return 0
	}
	return end.Sub(start).Hours()
}
