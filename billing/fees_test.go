package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMusicianShare(t *testing.T) {
	cases := []struct {
		gross string
		want  string
	}{
		{"100.00", "95"},
		{"80.00", "76"},
		{"33.33", "31.66"},  // 31.6635 rounds down
		{"0.01", "0.01"},    // 0.0095 rounds up to a penny
		{"150.50", "142.98"}, // 142.975 rounds half up
		{"0", "0"},
	}
	for _, tc := range cases {
		gross, err := decimal.NewFromString(tc.gross)
		if err != nil {
			t.Fatalf("bad case %q: %v", tc.gross, err)
		}
		got := MusicianShare(gross)
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Errorf("MusicianShare(%s) = %s, want %s", tc.gross, got, want)
		}
	}
}

func TestMusicianShareNeverExceedsGross(t *testing.T) {
	for pence := int64(1); pence < 100000; pence += 37 {
		gross := PenceToAmount(pence)
		share := MusicianShare(gross)
		if share.GreaterThan(gross) {
			t.Fatalf("share %s exceeds gross %s", share, gross)
		}
		if share.IsNegative() {
			t.Fatalf("share %s negative for gross %s", share, gross)
		}
	}
}

func TestAmountPenceRoundTrip(t *testing.T) {
	for _, pence := range []int64{0, 1, 99, 100, 12345, 9999999} {
		got := AmountToPence(PenceToAmount(pence))
		if got != pence {
			t.Errorf("round trip %d -> %d", pence, got)
		}
	}
}

func TestAmountToPence(t *testing.T) {
	amount, _ := decimal.NewFromString("95.00")
	if got := AmountToPence(amount); got != 9500 {
		t.Errorf("AmountToPence(95.00) = %d, want 9500", got)
	}
	amount, _ = decimal.NewFromString("0.005")
	if got := AmountToPence(amount); got != 1 {
		t.Errorf("AmountToPence(0.005) = %d, want 1 (round half up)", got)
	}
}

func TestDisputeClearingTime(t *testing.T) {
	start := time.Date(2025, 6, 20, 20, 30, 0, 0, time.UTC)
	got := DisputeClearingTime(start, 48*time.Hour)
	want := time.Date(2025, 6, 22, 20, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DisputeClearingTime = %v, want %v", got, want)
	}
}
