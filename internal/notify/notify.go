// ABOUTME: Owner notification delivery for rental lifecycle events
// ABOUTME: Provides a log-only notifier and an HTTP webhook notifier

package notify

import (
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Notifier delivers best-effort messages to bot owners. Delivery failures
// are logged and never propagate: a notification must not block or fail a
// lifecycle transition.
type Notifier interface {
	// Notify sends the message identified by key to the owner. Extra
	// key/value pairs carry message parameters (bot name, time remaining).
	Notify(ownerID uuid.UUID, key string, kv ...string)
}

// LogNotifier writes notifications to the log. It is the fallback when no
// webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) Notify(ownerID uuid.UUID, key string, kv ...string) {
	args := make([]any, 0, len(kv)+4)
	args = append(args, "owner", ownerID.String(), "message", key)
	for i := 0; i+1 < len(kv); i += 2 {
		args = append(args, kv[i], kv[i+1])
	}
	n.logger.Info("owner notification", args...)
}

// WebhookNotifier posts notifications to an HTTP endpoint as JSON. Delivery
// runs in a goroutine so callers never wait on the network.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier posting to the given URL.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	return &WebhookNotifier{
		client: client,
		url:    url,
		logger: logger.With("component", "notify"),
	}
}

type webhookPayload struct {
	OwnerID string            `json:"owner_id"`
	Message string            `json:"message"`
	Params  map[string]string `json:"params,omitempty"`
}

func (n *WebhookNotifier) Notify(ownerID uuid.UUID, key string, kv ...string) {
	params := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i]] = kv[i+1]
	}

	payload := webhookPayload{
		OwnerID: ownerID.String(),
		Message: key,
		Params:  params,
	}

	go func() {
		resp, err := n.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(n.url)
		if err != nil {
			n.logger.Warn("notification delivery failed", "owner", ownerID, "message", key, "error", err)
			return
		}
		if resp.IsError() {
			n.logger.Warn("notification rejected", "owner", ownerID, "message", key, "status", resp.StatusCode())
		}
	}()
}
