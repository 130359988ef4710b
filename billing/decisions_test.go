package billing

import (
	"testing"
	"time"

	"github.com/giginltd/gigin_backend/models"
)

func TestCreditDecision(t *testing.T) {
	pending := &models.PendingFee{PaymentIntentId: "pi_1"}
	cleared := &models.ClearedFee{PaymentIntentId: "pi_1"}

	if got := creditDecision(nil, nil); got != creditNew {
		t.Errorf("fresh intent: got %v, want creditNew", got)
	}
	if got := creditDecision(pending, nil); got != creditSkipAlreadyPending {
		t.Errorf("pending exists: got %v, want skip", got)
	}
	if got := creditDecision(nil, cleared); got != creditSkipAlreadyCleared {
		t.Errorf("cleared exists: got %v, want skip", got)
	}
	// A cleared row wins even with a stray pending row left behind.
	if got := creditDecision(pending, cleared); got != creditSkipAlreadyCleared {
		t.Errorf("both exist: got %v, want cleared skip", got)
	}
}

func TestClearanceDecision(t *testing.T) {
	now := time.Date(2025, 6, 23, 12, 0, 0, 0, time.UTC)
	releasable := &models.PendingFee{
		PaymentIntentId:     "pi_1",
		Status:              models.PendingFeeStatusPending,
		DisputeClearingTime: now.Add(-time.Hour),
	}
	early := &models.PendingFee{
		PaymentIntentId:     "pi_1",
		Status:              models.PendingFeeStatusPending,
		DisputeClearingTime: now.Add(time.Hour),
	}
	frozen := &models.PendingFee{
		PaymentIntentId:     "pi_1",
		Status:              models.PendingFeeStatusInDispute,
		DisputeClearingTime: now.Add(-time.Hour),
	}
	cleared := &models.ClearedFee{PaymentIntentId: "pi_1"}

	cases := []struct {
		name        string
		fee         *models.PendingFee
		cleared     *models.ClearedFee
		disputeOpen bool
		want        clearAction
	}{
		{"window passed, no dispute", releasable, nil, false, clearProceed},
		{"already cleared", nil, cleared, false, clearSkipAlreadyCleared},
		{"already cleared beats dispute", releasable, cleared, true, clearSkipAlreadyCleared},
		{"fee missing", nil, nil, false, clearFeeMissing},
		{"open dispute blocks", releasable, nil, true, clearBlockedDispute},
		{"fee frozen in dispute", frozen, nil, false, clearBlockedDispute},
		{"too early", early, nil, false, clearBlockedTooEarly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clearanceDecision(tc.fee, tc.cleared, tc.disputeOpen, now); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClearanceDecisionExactBoundary(t *testing.T) {
	now := time.Date(2025, 6, 22, 20, 30, 0, 0, time.UTC)
	fee := &models.PendingFee{
		Status:              models.PendingFeeStatusPending,
		DisputeClearingTime: now,
	}
	// At exactly the clearing time the fee releases.
	if got := clearanceDecision(fee, nil, false, now); got != clearProceed {
		t.Errorf("at boundary: got %v, want clearProceed", got)
	}
}
