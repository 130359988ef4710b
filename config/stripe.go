package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v74"
)

func init() {
	// Load env from .env
	godotenv.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Printf("STRIPE_SECRET_KEY not set; stripe calls will fail until configured")
	}
}

// GetStripeWebhookSecret returns the signing secret for the Stripe webhook
// endpoint. Empty means signature verification cannot run and the webhook
// handler must reject deliveries.
func GetStripeWebhookSecret() string {
	return os.Getenv("STRIPE_WEBHOOK_SECRET")
}
