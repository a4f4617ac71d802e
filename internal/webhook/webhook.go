// Package webhook delivers fire-and-forget event notifications to
// configured HTTP endpoints.
package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single delivery attempt. This is the only
// timeout in the system; the engine's transactions are not time-bounded.
const DefaultTimeout = 10 * time.Second

// Dispatcher posts JSON event envelopes to a fixed set of URLs. Trigger
// returns immediately; delivery happens in the background and failures are
// only logged.
type Dispatcher struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
}

// New creates a dispatcher. A zero timeout falls back to DefaultTimeout;
// a nil logger falls back to slog.Default.
func New(urls []string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		urls:   urls,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Trigger schedules delivery of one event to every configured URL.
func (d *Dispatcher) Trigger(event string, payload any) {
	if len(d.urls) == 0 {
		return
	}

	body, err := json.Marshal(envelope{Event: event, Timestamp: time.Now().UTC(), Payload: payload})
	if err != nil {
		d.logger.Warn("encoding webhook payload", "event", event, "error", err)
		return
	}

	for _, url := range d.urls {
		go d.deliver(event, url, body)
	}
}

func (d *Dispatcher) deliver(event, url string, body []byte) {
	resp, err := d.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("webhook delivery failed", "event", event, "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		d.logger.Warn("webhook rejected", "event", event, "url", url, "status", resp.StatusCode)
		return
	}
	d.logger.Debug("webhook delivered", "event", event, "url", url, "status", resp.StatusCode)
}
