package googlecal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ansonkao/time-tracker/internal/models"
	"github.com/ansonkao/time-tracker/internal/week"
)

// WeekData is the aggregate produced for one week window: every event
// across every accessible calendar, plus the calendar descriptors the
// display layer needs for colors and timezones.
type WeekData struct {
	Events    []models.CalendarEvent      `json:"events"`
	Calendars []models.CalendarDescriptor `json:"calendars"`
}

// ListCalendars fetches the set of calendars the account has access to.
func (c *Client) ListCalendars(ctx context.Context, token string) ([]models.CalendarDescriptor, error) {
	var res calendarListResponse
	if err := c.getJSON(ctx, token, "/users/me/calendarList", nil, &res); err != nil {
		return nil, fmt.Errorf("fetching calendar list: %w", err)
	}
	calendars := make([]models.CalendarDescriptor, 0, len(res.Items))
	for _, item := range res.Items {
		calendars = append(calendars, models.CalendarDescriptor{
			ID:              item.ID,
			Summary:         item.Summary,
			BackgroundColor: item.BackgroundColor,
			ForegroundColor: item.ForegroundColor,
			Selected:        item.Selected,
			Primary:         item.Primary,
			AccessRole:      item.AccessRole,
			TimeZone:        item.TimeZone,
		})
	}
	return calendars, nil
}

type eventsPage struct {
	Items         []models.CalendarEvent `json:"items"`
	NextPageToken string                 `json:"nextPageToken"`
}

// CollectEvents walks every given calendar's paginated events feed for
// the window and merges the results. Calendars are fetched concurrently;
// pages within one calendar are sequential because each request needs the
// prior page's continuation token. The join is fail-fast: the first
// calendar to fail cancels the rest and fails the whole aggregate.
//
// Every returned event is stamped with its source calendar ID; output
// ordering across calendars is unspecified.
func (c *Client) CollectEvents(ctx context.Context, token string, calendarIDs []string, w week.Window) ([]models.CalendarEvent, error) {
	g, ctx := errgroup.WithContext(ctx)
	perCalendar := make([][]models.CalendarEvent, len(calendarIDs))

	for i, calID := range calendarIDs {
		g.Go(func() error {
			events, err := c.collectCalendar(ctx, token, calID, w)
			if err != nil {
				return fmt.Errorf("calendar %q: %w", calID, err)
			}
			perCalendar[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []models.CalendarEvent
	for _, events := range perCalendar {
		merged = append(merged, events...)
	}
	return merged, nil
}

// collectCalendar walks one calendar's pages until the continuation token
// runs out or the page ceiling trips.
func (c *Client) collectCalendar(ctx context.Context, token, calID string, w week.Window) ([]models.CalendarEvent, error) {
	params := url.Values{}
	params.Set("timeMin", w.Start.UTC().Format(time.RFC3339))
	params.Set("timeMax", w.End().UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("timeZone", "UTC")

	path := "/calendars/" + url.PathEscape(calID) + "/events"

	var all []models.CalendarEvent
	pageToken := ""
	for page := 1; ; page++ {
		if page > c.pageCeiling {
			return nil, fmt.Errorf("after %d pages: %w", c.pageCeiling, ErrTooManyPages)
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp eventsPage
		if err := c.getJSON(ctx, token, path, params, &resp); err != nil {
			return nil, err
		}

		for _, ev := range resp.Items {
			ev.CalendarID = calID
			all = append(all, ev)
		}

		c.log.Debug("fetched_calendar_page",
			zap.String("calendar_id", calID),
			zap.Int("page", page),
			zap.Int("items", len(resp.Items)),
			zap.Bool("has_more", resp.NextPageToken != ""),
		)

		if resp.NextPageToken == "" {
			return all, nil
		}
		pageToken = resp.NextPageToken
	}
}

// FetchWeek produces the full aggregate for a week window: the calendar
// list, then every calendar's events. A calendar-list failure fails the
// whole request, as does any single calendar's event fetch.
func (c *Client) FetchWeek(ctx context.Context, token string, w week.Window) (*WeekData, error) {
	calendars, err := c.ListCalendars(ctx, token)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(calendars))
	for i, cal := range calendars {
		ids[i] = cal.ID
	}

	events, err := c.CollectEvents(ctx, token, ids, w)
	if err != nil {
		return nil, err
	}

	c.log.Info("aggregated_week_events",
		zap.String("week_start", w.Start.Format(models.DateLayout)),
		zap.Int("calendars", len(calendars)),
		zap.Int("events", len(events)),
	)
	return &WeekData{Events: events, Calendars: calendars}, nil
}
