// Package notifier delivers fire-and-forget webhook alerts for blocking
// events. Delivery is asynchronous and throttled; it never blocks or fails
// the request path.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"pollguard/logger"
)

type WebhookMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
}

type Notifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// New returns a notifier posting to url. Alerts are capped at one every ten
// seconds with a small burst so an escalation storm cannot flood the hook.
// An empty url yields a notifier that silently drops everything.
func New(url string) *Notifier {
	return &Notifier{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 5),
	}
}

// Alert posts msg asynchronously. Over-limit alerts are dropped.
func (n *Notifier) Alert(msg, severity string) {
	if n.url == "" {
		return
	}
	if !n.limiter.Allow() {
		logger.Debug("webhook alert throttled", "msg", msg)
		return
	}

	payload := WebhookMessage{
		Text:      fmt.Sprintf("[pollguard] %s", msg),
		Timestamp: time.Now(),
		Severity:  severity,
	}
	data, _ := json.Marshal(payload)

	go func() {
		resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(data))
		if err != nil {
			logger.Error("webhook alert failed", "err", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			logger.Warn("webhook returned non-OK status", "status", resp.Status)
		}
	}()
}
