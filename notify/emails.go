package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/giginltd/gigin_backend/models"
	"github.com/shopspring/decimal"
)

// Email bodies are small enough that fmt beats a template tree here. All
// user-supplied strings are escaped before interpolation.

// EnqueueGigConfirmedEmails queues the booking confirmation to both sides
// once payment succeeds. The musician's copy carries a calendar link.
func EnqueueGigConfirmedEmails(ctx context.Context, gig *models.Gig, musician *models.MusicianProfile, venue *models.VenueProfile, fee decimal.Decimal) error {
	start := gig.StartDateTime
	end := start.Add(time.Duration(gig.DurationMins) * time.Minute)
	calLink := GoogleCalendarLink(
		fmt.Sprintf("Gig at %s", venue.Name),
		fmt.Sprintf("Performance at %s. Fee: £%s.", venue.Name, fee.StringFixed(2)),
		venue.City,
		start, end,
	)

	if musician.Email != "" {
		body := fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your gig at <strong>%s</strong> on %s at %s is confirmed and paid for.</p>
<p>Your fee of <strong>£%s</strong> will be released after the gig.</p>
<p><a href="%s">Add this gig to your calendar</a></p>`,
			html.EscapeString(musician.Name),
			html.EscapeString(venue.Name),
			html.EscapeString(gig.Date),
			html.EscapeString(gig.StartTime),
			fee.StringFixed(2),
			calLink,
		)
		err := models.EnqueueMail(ctx, &models.NewMailMessage{
			ToEmail:  musician.Email,
			ToName:   musician.Name,
			Subject:  fmt.Sprintf("Gig confirmed: %s on %s", venue.Name, gig.Date),
			HtmlBody: body,
		})
		if err != nil {
			return err
		}
	}

	if venue.Email != "" {
		body := fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your payment for the gig on %s at %s went through. <strong>%s</strong> is booked.</p>
<p>The fee is held until after the gig; you can raise any issue within the dispute window.</p>`,
			html.EscapeString(venue.Name),
			html.EscapeString(gig.Date),
			html.EscapeString(gig.StartTime),
			html.EscapeString(musician.Name),
		)
		err := models.EnqueueMail(ctx, &models.NewMailMessage{
			ToEmail:  venue.Email,
			ToName:   venue.Name,
			Subject:  fmt.Sprintf("Booking confirmed for %s", gig.Date),
			HtmlBody: body,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReviewPromptMails builds the post-gig review ask for both sides. Either
// side without an email address is skipped.
func ReviewPromptMails(musician *models.MusicianProfile, venue *models.VenueProfile, gig *models.Gig) []*models.NewMailMessage {
	var mails []*models.NewMailMessage
	if musician != nil && musician.Email != "" {
		venueName := "the venue"
		if venue != nil && venue.Name != "" {
			venueName = venue.Name
		}
		body := fmt.Sprintf(
			`<p>Hi %s,</p>
<p>How was your gig at <strong>%s</strong> on %s?</p>
<p>Leave a review to help other musicians find great venues.</p>`,
			html.EscapeString(musician.Name),
			html.EscapeString(venueName),
			html.EscapeString(gig.Date),
		)
		mails = append(mails, &models.NewMailMessage{
			ToEmail:  musician.Email,
			ToName:   musician.Name,
			Subject:  fmt.Sprintf("How was your gig on %s?", gig.Date),
			HtmlBody: body,
		})
	}
	if venue != nil && venue.Email != "" {
		musicianName := "your musician"
		if musician != nil && musician.Name != "" {
			musicianName = musician.Name
		}
		body := fmt.Sprintf(
			`<p>Hi %s,</p>
<p>How did <strong>%s</strong> do at your gig on %s?</p>
<p>Leave a review to help other venues book with confidence. If anything went wrong, let us know within 48 hours.</p>`,
			html.EscapeString(venue.Name),
			html.EscapeString(musicianName),
			html.EscapeString(gig.Date),
		)
		mails = append(mails, &models.NewMailMessage{
			ToEmail:  venue.Email,
			ToName:   venue.Name,
			Subject:  fmt.Sprintf("How was your gig on %s?", gig.Date),
			HtmlBody: body,
		})
	}
	return mails
}

// EnqueueReviewPromptEmails queues the review ask to both sides.
func EnqueueReviewPromptEmails(ctx context.Context, musician *models.MusicianProfile, venue *models.VenueProfile, gig *models.Gig) error {
	for _, mail := range ReviewPromptMails(musician, venue, gig) {
		if err := models.EnqueueMail(ctx, mail); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueFeeReleasedEmail tells the musician their fee cleared.
func EnqueueFeeReleasedEmail(ctx context.Context, musician *models.MusicianProfile, gig *models.Gig, fee decimal.Decimal) error {
	if musician.Email == "" {
		return nil
	}
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your fee of <strong>£%s</strong> for the gig on %s has been released to your Gigin balance.</p>`,
		html.EscapeString(musician.Name),
		fee.StringFixed(2),
		html.EscapeString(gig.Date),
	)
	return models.EnqueueMail(ctx, &models.NewMailMessage{
		ToEmail:  musician.Email,
		ToName:   musician.Name,
		Subject:  "Your gig fee has been released",
		HtmlBody: body,
	})
}

// EnqueuePaymentFailedEmail tells the venue their card was declined.
func EnqueuePaymentFailedEmail(ctx context.Context, venue *models.VenueProfile, gig *models.Gig, failureMessage string) error {
	if venue.Email == "" {
		return nil
	}
	detail := failureMessage
	if detail == "" {
		detail = "Your card was declined."
	}
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>We couldn't take payment for your gig on %s: %s</p>
<p>Please update your payment details and try again to secure the booking.</p>`,
		html.EscapeString(venue.Name),
		html.EscapeString(gig.Date),
		html.EscapeString(detail),
	)
	return models.EnqueueMail(ctx, &models.NewMailMessage{
		ToEmail:  venue.Email,
		ToName:   venue.Name,
		Subject:  "Payment failed for your gig booking",
		HtmlBody: body,
	})
}
