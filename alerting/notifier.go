package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/wxstack/wxstack/config"
)

// Alert is the payload delivered to the alerting endpoint.
type Alert struct {
	// ID identifies this delivery. Assigned by the notifier.
	ID string `json:"id"`
	// Alias deduplicates repeated alerts at the receiving end.
	Alias      string    `json:"alias"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	Time       time.Time `json:"time"`
}

// Notifier delivers alerts and heartbeats to the configured endpoint
// with retries on transient failures.
type Notifier struct {
	endpoint string
	apiKey   string
	client   *retryablehttp.Client
}

// NewNotifier builds a notifier from the toolkit's alerting settings.
func NewNotifier(cfg *config.Alerting) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = nil
	return &Notifier{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

// Send delivers one alert. The returned delivery ID matches the ID
// field of the posted payload.
func (n *Notifier) Send(ctx context.Context, alert Alert) (string, error) {
	alert.ID = uuid.NewString()
	if alert.Time.IsZero() {
		alert.Time = time.Now().UTC()
	}
	if err := n.post(ctx, n.endpoint+"/alerts", alert); err != nil {
		return "", fmt.Errorf("delivering alert %s: %w", alert.Alias, err)
	}
	return alert.ID, nil
}

// Heartbeat posts a liveness signal for the named source.
func (n *Notifier) Heartbeat(ctx context.Context, source string) error {
	payload := map[string]any{
		"source": source,
		"time":   time.Now().UTC(),
	}
	if err := n.post(ctx, n.endpoint+"/heartbeat", payload); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("X-API-Key", n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}
