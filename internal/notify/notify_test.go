// ABOUTME: Tests for webhook notification and command dispatch delivery
// ABOUTME: Uses httptest servers to capture posted payloads

package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookNotifierPostsPayload(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	owner := uuid.New()
	n := NewWebhookNotifier(srv.URL, discardLogger())
	n.Notify(owner, "rental.expired", "bot", "Bot_Alice")

	select {
	case p := <-received:
		assert.Equal(t, owner.String(), p.OwnerID)
		assert.Equal(t, "rental.expired", p.Message)
		assert.Equal(t, "Bot_Alice", p.Params["bot"])
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestWebhookNotifierSwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, discardLogger())
	// Must not panic or block the caller.
	n.Notify(uuid.New(), "rental.expired")
	time.Sleep(100 * time.Millisecond)
}

func TestWebhookDispatcherPostsCommand(t *testing.T) {
	received := make(chan dispatchPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p dispatchPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, discardLogger())
	d.Dispatch("tp Bot_Alice 0 70 0")

	select {
	case p := <-received:
		assert.Equal(t, "tp Bot_Alice 0 70 0", p.Command)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch endpoint was never called")
	}
}

func TestLogNotifierDoesNotPanic(t *testing.T) {
	n := NewLogNotifier(discardLogger())
	n.Notify(uuid.New(), "rental.warning", "minutes", "10")
}
