package config

import (
	"os"
	"strings"
	"time"
)

// IsProduction reports whether we are running against live Stripe and real
// dispute windows. Anything other than "production" gets the shortened
// dispute window so staging runs clear fees within the hour.
//
// Set via env:
// - GO_ENV=production
func IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(os.Getenv("GO_ENV"))) == "production"
}

// DisputeWindow is how long after the gig starts the venue can still raise a
// dispute. Fees are only released once this window has passed.
func DisputeWindow() time.Duration {
	if IsProduction() {
		return 48 * time.Hour
	}
	return time.Hour
}

// TransfersEnabled gates automatic Stripe transfers to connected accounts on
// fee clearance. When off, cleared fees accrue to withdrawable earnings and
// are paid out manually.
//
// Set via env:
// - STRIPE_TRANSFERS_ENABLED=true
func TransfersEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRIPE_TRANSFERS_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SweeperEnabled controls the in-process stuck payment sweeper. Disable it
// when running more than one revision that should not compete for the lease.
//
// Set via env:
// - PAYMENT_SWEEPER_ENABLED=false
func SweeperEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PAYMENT_SWEEPER_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
