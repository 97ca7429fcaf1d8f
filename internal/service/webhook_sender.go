package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sosnet/internal/config"
	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

type WebhookSource interface {
	BRPop(ctx context.Context, timeout time.Duration) (domain.WebhookPayload, error)
}

type WebhookMetrics interface {
	WebhookObserved(result string)
}

// WebhookSender drains the webhook queue and posts each payload to the push
// gateway.
type WebhookSender struct {
	logger     *slog.Logger
	cfg        config.WebhookConfig
	queue      WebhookSource
	metrics    WebhookMetrics
	http       *http.Client
	maxRetries int
	backoff    time.Duration
	popTimeout time.Duration
}

func NewWebhookSender(logger *slog.Logger, cfg config.WebhookConfig, q WebhookSource, metrics WebhookMetrics) *WebhookSender {
	return &WebhookSender{
		logger:     logger,
		cfg:        cfg,
		queue:      q,
		metrics:    metrics,
		http:       &http.Client{Timeout: 5 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		popTimeout: 5 * time.Second,
	}
}

func (s *WebhookSender) Run(ctx context.Context) error {
	s.logger.Info("webhook sender started", slog.String("url", s.cfg.URL))

	for {
		if ctx.Err() != nil {
			s.logger.Info("webhook sender stopped", slog.String("reason", ctx.Err().Error()))
			return nil
		}

		payload, err := s.queue.BRPop(ctx, s.popTimeout)
		if err != nil {
			if errors.Is(err, e.ErrWebHookEmpty) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("BRPop failed", slog.Any("error", err))
			s.sleep(ctx, 500*time.Millisecond)
			continue
		}

		err = s.Send(ctx, payload)
		s.observe(err)
		if err != nil {
			s.logger.Warn("webhook dropped",
				slog.Int64("sequence", payload.Sequence),
				slog.String("incident_id", payload.IncidentID.String()),
				slog.Any("error", err),
			)
		}
	}
}

// Send posts one payload, retrying with linear backoff.
func (s *WebhookSender) Send(ctx context.Context, p domain.WebhookPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var reason string
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Sequence", fmt.Sprint(p.Sequence))

		resp, err := s.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			s.logger.Debug("webhook delivered",
				slog.Int64("sequence", p.Sequence),
				slog.String("kind", string(p.Kind)),
			)
			return nil
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		if err != nil {
			reason = err.Error()
		} else {
			reason = resp.Status
		}

		s.logger.Warn("webhook failed",
			slog.Int("attempt", attempt),
			slog.String("url", s.cfg.URL),
			slog.String("reason", reason),
		)

		if attempt < s.maxRetries {
			s.sleep(ctx, time.Duration(attempt)*s.backoff)
		}
	}
	return fmt.Errorf("webhook gave up after %d attempts: %s", s.maxRetries, reason)
}

func (s *WebhookSender) observe(err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.WebhookObserved("dropped")
		return
	}
	s.metrics.WebhookObserved("delivered")
}

func (s *WebhookSender) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
