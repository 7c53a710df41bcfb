package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/rfqscout/models"
	"github.com/use-agent/rfqscout/runner"
)

const (
	EventCompleted = "scrape.completed"
	EventFailed    = "scrape.failed"

	SignatureHeader = "X-RFQScout-Signature"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string                `json:"type"` // EventCompleted or EventFailed
	RunID     string                `json:"run_id"`
	Timestamp int64                 `json:"timestamp"`
	Data      models.ScrapeResponse `json:"data"`
}

// retryDelays are waited before each delivery attempt.
var retryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
// Header: X-RFQScout-Signature: sha256=<hex>
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "RFQScout-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// DeliverAsync sends a webhook event asynchronously with up to 3 retries.
// Retry intervals: 1s, 5s, 30s.
func DeliverAsync(url, secret string, event *Event) {
	go deliverWithRetry(url, secret, event)
}

func deliverWithRetry(url, secret string, event *Event) bool {
	for attempt, delay := range retryDelays {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := Deliver(ctx, url, secret, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"url", url,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
			)
			return true
		}
		slog.Warn("webhook delivery failed",
			"url", url,
			"event", event.Type,
			"run_id", event.RunID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", url,
		"event", event.Type,
		"run_id", event.RunID,
	)
	return false
}

// Notifier posts an event for every finished run.
type Notifier struct {
	url    string
	secret string
}

// NewNotifier returns a Notifier, or nil when url is empty.
func NewNotifier(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{url: url, secret: secret}
}

// Notify implements runner.Notifier. Delivery happens in the background.
func (n *Notifier) Notify(res *runner.Result) {
	if n == nil {
		return
	}
	DeliverAsync(n.url, n.secret, NewEvent(res, time.Now()))
}

// NewEvent builds the event describing res.
func NewEvent(res *runner.Result, at time.Time) *Event {
	typ := EventCompleted
	if res.Err != nil {
		typ = EventFailed
	}
	return &Event{
		Type:      typ,
		RunID:     res.RunID,
		Timestamp: at.Unix(),
		Data:      res.Response(models.ArtifactPath(res.Filename)),
	}
}
