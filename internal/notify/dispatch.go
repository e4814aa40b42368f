// ABOUTME: Server-side command dispatch for actions bots cannot perform themselves
// ABOUTME: Used for spawn-anchor teleports and other console-level commands

package notify

import (
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// CommandDispatcher runs commands with server authority, for actions a bot
// cannot perform through its own connection (teleporting itself across the
// world back to a spawn anchor, for example).
type CommandDispatcher interface {
	// Dispatch runs the command. Failures are logged, not returned: a
	// missed teleport leaves the bot where it stands.
	Dispatch(command string)
}

// LogDispatcher records commands without executing them. It stands in when
// no dispatch endpoint is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("component", "dispatch")}
}

func (d *LogDispatcher) Dispatch(command string) {
	d.logger.Info("command dispatch skipped, no endpoint configured", "command", command)
}

// WebhookDispatcher posts commands to the game server's command endpoint.
type WebhookDispatcher struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

func NewWebhookDispatcher(url string, logger *slog.Logger) *WebhookDispatcher {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	return &WebhookDispatcher{
		client: client,
		url:    url,
		logger: logger.With("component", "dispatch"),
	}
}

type dispatchPayload struct {
	Command string `json:"command"`
}

func (d *WebhookDispatcher) Dispatch(command string) {
	go func() {
		resp, err := d.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(dispatchPayload{Command: command}).
			Post(d.url)
		if err != nil {
			d.logger.Warn("command dispatch failed", "command", command, "error", err)
			return
		}
		if resp.IsError() {
			d.logger.Warn("command dispatch rejected", "command", command, "status", resp.StatusCode())
		}
	}()
}
