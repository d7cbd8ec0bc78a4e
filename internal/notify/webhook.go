// Package notify exports participant snapshots to an external webhook
// (a spreadsheet bridge in production). Delivery is best-effort: failures
// are logged and dropped, never surfaced to the triggering request.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// WebhookSink posts the snapshot as JSON to a configured URL, with a shared
// secret in the payload for the receiving script.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookSink(url, secret string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	domain.Participant
	Secret string `json:"secret"`
}

func (s *WebhookSink) Send(ctx context.Context, p domain.Participant) error {
	body, err := json.Marshal(webhookPayload{Participant: p, Secret: s.secret})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// NopSink discards snapshots. Used when no webhook is configured.
type NopSink struct{}

func (NopSink) Send(context.Context, domain.Participant) error { return nil }
