package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testGig() *Gig {
	return &Gig{
		ID: "gig-1",
		Applicants: GigApplicantList{
			{MusicianId: "mus-1", Status: ApplicantStatusPending, Fee: decimal.NewFromInt(80)},
			{MusicianId: "mus-2", Status: ApplicantStatusConfirmed, Fee: decimal.NewFromInt(120)},
			{MusicianId: "band-1", BandAdminMusicianId: "mus-9", Status: ApplicantStatusDeclined},
		},
	}
}

func TestFindApplicant(t *testing.T) {
	gig := testGig()

	if got := gig.FindApplicant("mus-2"); got == nil || got.MusicianId != "mus-2" {
		t.Errorf("FindApplicant(mus-2) = %+v", got)
	}
	if got := gig.FindApplicant("nobody"); got != nil {
		t.Errorf("FindApplicant(nobody) = %+v, want nil", got)
	}
}

func TestConfirmedApplicant(t *testing.T) {
	gig := testGig()
	got := gig.ConfirmedApplicant()
	if got == nil || got.MusicianId != "mus-2" {
		t.Fatalf("ConfirmedApplicant = %+v", got)
	}

	gig.Applicants = nil
	if gig.ConfirmedApplicant() != nil {
		t.Error("no applicants should mean no confirmed applicant")
	}
}

func TestSetApplicantStatus(t *testing.T) {
	gig := testGig()

	if !gig.SetApplicantStatus("mus-2", ApplicantStatusPaid) {
		t.Fatal("expected applicant to be found")
	}
	if gig.Applicants[1].Status != ApplicantStatusPaid {
		t.Errorf("status = %s, want %s", gig.Applicants[1].Status, ApplicantStatusPaid)
	}
	if gig.SetApplicantStatus("nobody", ApplicantStatusPaid) {
		t.Error("unknown musician should return false")
	}
}

func acceptedGig() *Gig {
	return &Gig{
		ID: "gig-2",
		Applicants: GigApplicantList{
			{MusicianId: "mus-1", Status: ApplicantStatusAccepted, Fee: decimal.NewFromInt(100)},
		},
	}
}

func TestGigPaymentLifecycle(t *testing.T) {
	gig := acceptedGig()

	if !gig.BeginPaymentProcessing("mus-1", "pi_1", PaymentStatusPending) {
		t.Fatal("accepted applicant should enter payment processing")
	}
	if got := gig.Applicants[0].Status; got != ApplicantStatusPaymentProcessing {
		t.Errorf("applicant status = %s, want %s", got, ApplicantStatusPaymentProcessing)
	}
	if gig.Paid {
		t.Error("gig must stay unpaid until the success webhook lands")
	}
	if gig.PaymentIntentId != "pi_1" || gig.PaymentStatus != PaymentStatusPending {
		t.Errorf("intent = %s, payment status = %s", gig.PaymentIntentId, gig.PaymentStatus)
	}

	gig.CompletePayment("mus-1", "pi_1")
	if got := gig.Applicants[0].Status; got != ApplicantStatusConfirmed {
		t.Errorf("applicant status = %s, want %s", got, ApplicantStatusConfirmed)
	}
	if !gig.Paid || gig.PaymentStatus != PaymentStatusSucceeded {
		t.Errorf("paid = %v with payment status %s; paid implies succeeded", gig.Paid, gig.PaymentStatus)
	}
	if gig.Status != GigStatusClosed {
		t.Errorf("gig status = %s, want %s", gig.Status, GigStatusClosed)
	}
	if gig.MusicianFeeStatus != FeeStatusPending {
		t.Errorf("fee status = %s, want %s", gig.MusicianFeeStatus, FeeStatusPending)
	}
}

func TestGigPaymentFailureReopens(t *testing.T) {
	gig := acceptedGig()
	gig.BeginPaymentProcessing("mus-1", "pi_1", PaymentStatusPending)

	if !gig.RevertPaymentFailure("mus-1", "pi_1") {
		t.Fatal("unpaid gig should revert on failure")
	}
	if got := gig.Applicants[0].Status; got != ApplicantStatusAccepted {
		t.Errorf("applicant status = %s, want back to %s", got, ApplicantStatusAccepted)
	}
	if gig.Paid || gig.Status != GigStatusOpen || gig.PaymentStatus != PaymentStatusFailed {
		t.Errorf("gig = paid %v status %s payment %s, want open and unpaid", gig.Paid, gig.Status, gig.PaymentStatus)
	}
}

func TestGigPaymentFailureLeavesPaidGigAlone(t *testing.T) {
	gig := acceptedGig()
	gig.BeginPaymentProcessing("mus-1", "pi_1", PaymentStatusPending)
	gig.CompletePayment("mus-1", "pi_1")

	// A stale failure event for a superseded intent must not reopen the gig.
	if gig.RevertPaymentFailure("mus-1", "pi_0") {
		t.Fatal("paid gig must not revert")
	}
	if !gig.Paid || gig.PaymentStatus != PaymentStatusSucceeded || gig.Status != GigStatusClosed {
		t.Errorf("gig = paid %v payment %s status %s", gig.Paid, gig.PaymentStatus, gig.Status)
	}
}

func TestBeginPaymentProcessingUnknownMusician(t *testing.T) {
	gig := acceptedGig()
	if gig.BeginPaymentProcessing("nobody", "pi_1", PaymentStatusPending) {
		t.Error("unknown musician should not flip the gig")
	}
}

func TestEarningsMusicianId(t *testing.T) {
	solo := &GigApplicant{MusicianId: "mus-1"}
	if got := solo.EarningsMusicianId(); got != "mus-1" {
		t.Errorf("solo: got %s", got)
	}
	band := &GigApplicant{MusicianId: "band-1", BandAdminMusicianId: "mus-9"}
	if got := band.EarningsMusicianId(); got != "mus-9" {
		t.Errorf("band: got %s, want the band admin", got)
	}
}
