package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertDeliversPayload(t *testing.T) {
	got := make(chan WebhookMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg WebhookMessage
		json.NewDecoder(r.Body).Decode(&msg)
		got <- msg
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL)
	n.Alert("auto-blocked 198.51.100.7 after 10 findings", "HIGH")

	select {
	case msg := <-got:
		assert.Contains(t, msg.Text, "auto-blocked 198.51.100.7")
		assert.Equal(t, "HIGH", msg.Severity)
		assert.False(t, msg.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestAlertThrottlesBursts(t *testing.T) {
	received := make(chan struct{}, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL)
	for i := 0; i < 20; i++ {
		n.Alert("flood", "HIGH")
	}

	count := 0
	deadline := time.After(time.Second)
	for done := false; !done; {
		select {
		case <-received:
			count++
		case <-deadline:
			done = true
		}
	}
	require.LessOrEqual(t, count, 6, "burst must be capped by the limiter")
	assert.Greater(t, count, 0, "some alerts still go out")
}

func TestAlertWithoutURLIsNoOp(t *testing.T) {
	n := New("")
	// Must not panic or spawn anything.
	n.Alert("ignored", "LOW")
}
