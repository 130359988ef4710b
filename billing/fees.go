package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformCutPercent is the commission retained from every gig fee. The
// musician receives the remainder, rounded to pence.
const PlatformCutPercent = 5

const DefaultCurrency = "GBP"

var musicianShareRate = decimal.NewFromInt(100 - PlatformCutPercent).Div(decimal.NewFromInt(100))

// MusicianShare computes the musician's cut of a gross gig fee, rounded to
// two decimal places.
func MusicianShare(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(musicianShareRate).Round(2)
}

// PenceToAmount converts an integer minor-unit amount to a two-decimal money value.
func PenceToAmount(pence int64) decimal.Decimal {
	return decimal.NewFromInt(pence).Div(decimal.NewFromInt(100)).Round(2)
}

// AmountToPence converts a money value to integer pence, rounding halves up.
func AmountToPence(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// DisputeClearingTime is when a fee becomes releasable: the gig start plus
// the dispute window.
func DisputeClearingTime(gigStart time.Time, window time.Duration) time.Time {
	return gigStart.Add(window)
}
