// Package notify delivers fired alerts to external sinks. Delivery
// mechanisms are interchangeable; the refresh engine only knows the Sink
// interface.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/courtwatch/courtwatch/internal/model"
)

// Sink receives fired alerts at the end of a refresh cycle.
type Sink interface {
	Deliver(ctx context.Context, fired []model.AlertFired) error
}

// --------------------------------------------------------------------------
// Log sink
// --------------------------------------------------------------------------

// LogSink writes fired alerts to the structured log. Always active.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs each fired alert.
func (s *LogSink) Deliver(ctx context.Context, fired []model.AlertFired) error {
	for _, f := range fired {
		s.logger.Info("ALERT",
			"player", f.PlayerName,
			"stat", f.StatType,
			"value", f.Value,
			"threshold", f.Threshold)
	}
	return nil
}

// --------------------------------------------------------------------------
// Webhook sink
// --------------------------------------------------------------------------

// WebhookSink POSTs fired alerts as JSON to a configured URL.
// Nil-safe: when not configured, all methods are no-ops.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSink creates a webhook sink. Returns nil if url is empty
// (webhook delivery disabled).
func NewWebhookSink(url string, timeout time.Duration, logger *slog.Logger) *WebhookSink {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Deliver POSTs the full batch of fired alerts in one request.
func (s *WebhookSink) Deliver(ctx context.Context, fired []model.AlertFired) error {
	if s == nil || len(fired) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"alerts": fired})
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	s.logger.Info("Webhook delivered", "alerts", len(fired))
	return nil
}
