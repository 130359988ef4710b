package notify

import (
	"fmt"
	"net/url"
	"time"
)

const calendarTimeLayout = "20060102T150405Z"

// GoogleCalendarLink builds an "add to calendar" URL for a booked gig so the
// confirmation email can offer one-click calendar entry.
func GoogleCalendarLink(title string, details string, location string, start time.Time, end time.Time) string {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("details", details)
	q.Set("location", location)
	q.Set("dates", fmt.Sprintf("%s/%s",
		start.UTC().Format(calendarTimeLayout),
		end.UTC().Format(calendarTimeLayout),
	))
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}
