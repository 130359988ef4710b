package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Sender delivers one email. The dispatcher retries around it, so
// implementations should not retry internally.
type Sender interface {
	Send(ctx context.Context, toEmail string, toName string, subject string, htmlBody string) error
}

// HTTPSender posts to the transactional mail provider's JSON API.
//
// Env:
// - MAIL_API_URL
// - MAIL_API_KEY
// - MAIL_FROM_EMAIL
// - MAIL_FROM_NAME
type HTTPSender struct {
	Client *http.Client
}

func NewHTTPSender() *HTTPSender {
	return &HTTPSender{Client: &http.Client{Timeout: 15 * time.Second}}
}

type mailAPIRequest struct {
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
	ToEmail   string `json:"to_email"`
	ToName    string `json:"to_name"`
	Subject   string `json:"subject"`
	Html      string `json:"html"`
}

func (s *HTTPSender) Send(ctx context.Context, toEmail string, toName string, subject string, htmlBody string) error {
	apiURL := os.Getenv("MAIL_API_URL")
	if apiURL == "" {
		return fmt.Errorf("MAIL_API_URL is not set")
	}

	body, err := json.Marshal(mailAPIRequest{
		FromEmail: os.Getenv("MAIL_FROM_EMAIL"),
		FromName:  os.Getenv("MAIL_FROM_NAME"),
		ToEmail:   toEmail,
		ToName:    toName,
		Subject:   subject,
		Html:      htmlBody,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+os.Getenv("MAIL_API_KEY"))

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}
	return nil
}
