package notify

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestGoogleCalendarLink(t *testing.T) {
	start := time.Date(2025, 6, 20, 19, 30, 0, 0, time.UTC)
	link := GoogleCalendarLink("Gig at The Crown", "Live set", "The Crown, Bristol", start, start.Add(90*time.Minute))

	if !strings.HasPrefix(link, "https://calendar.google.com/calendar/render?") {
		t.Fatalf("unexpected base: %s", link)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("action") != "TEMPLATE" {
		t.Errorf("action = %q", q.Get("action"))
	}
	if q.Get("text") != "Gig at The Crown" {
		t.Errorf("text = %q", q.Get("text"))
	}
	if q.Get("dates") != "20250620T193000Z/20250620T210000Z" {
		t.Errorf("dates = %q", q.Get("dates"))
	}
}

func TestGoogleCalendarLinkNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	start := time.Date(2025, 6, 20, 20, 30, 0, 0, loc)
	link := GoogleCalendarLink("Gig", "", "", start, start.Add(time.Hour))

	u, _ := url.Parse(link)
	if got := u.Query().Get("dates"); got != "20250620T193000Z/20250620T203000Z" {
		t.Errorf("dates = %q, want UTC-normalized", got)
	}
}
