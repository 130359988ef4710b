package notify

import (
	"strings"
	"testing"

	"github.com/giginltd/gigin_backend/models"
)

func TestReviewPromptMailsBothSides(t *testing.T) {
	musician := &models.MusicianProfile{ID: "mus-1", Name: "Ella & The O'Tones", Email: "ella@example.com"}
	venue := &models.VenueProfile{ID: "ven-1", Name: "The <Blue> Note", Email: "bookings@example.com"}
	gig := &models.Gig{ID: "gig-1", Date: "2025-06-20"}

	mails := ReviewPromptMails(musician, venue, gig)
	if len(mails) != 2 {
		t.Fatalf("built %d mails, want one for each side", len(mails))
	}
	if mails[0].ToEmail != "ella@example.com" {
		t.Errorf("first mail to %s, want the musician", mails[0].ToEmail)
	}
	if mails[1].ToEmail != "bookings@example.com" {
		t.Errorf("second mail to %s, want the venue", mails[1].ToEmail)
	}
	for _, m := range mails {
		if !strings.Contains(strings.ToLower(m.HtmlBody), "review") {
			t.Errorf("mail to %s does not ask for a review: %s", m.ToEmail, m.HtmlBody)
		}
	}
	if strings.Contains(mails[0].HtmlBody, "<Blue>") {
		t.Error("venue name must be escaped in the musician's mail")
	}
	if !strings.Contains(mails[1].HtmlBody, "Ella &amp; The O&#39;Tones") {
		t.Errorf("musician name not escaped in the venue's mail: %s", mails[1].HtmlBody)
	}
}

func TestReviewPromptMailsSkipMissingAddresses(t *testing.T) {
	venue := &models.VenueProfile{ID: "ven-1", Name: "The Blue Note", Email: "bookings@example.com"}
	gig := &models.Gig{ID: "gig-1", Date: "2025-06-20"}

	mails := ReviewPromptMails(&models.MusicianProfile{ID: "mus-1", Name: "Ella"}, venue, gig)
	if len(mails) != 1 || mails[0].ToEmail != "bookings@example.com" {
		t.Fatalf("mails = %+v, want just the venue's", mails)
	}

	// A missing profile degrades the copy, not the send.
	mails = ReviewPromptMails(nil, venue, gig)
	if len(mails) != 1 {
		t.Fatalf("built %d mails with no musician profile, want 1", len(mails))
	}
	if !strings.Contains(mails[0].HtmlBody, "your musician") {
		t.Errorf("venue mail should fall back to a generic name: %s", mails[0].HtmlBody)
	}

	if got := ReviewPromptMails(nil, nil, gig); len(got) != 0 {
		t.Errorf("no addresses should mean no mails, got %+v", got)
	}
}
