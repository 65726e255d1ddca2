// Package notify defines the outbound notification boundary.
//
// Delivery (push topics, webhooks) lives outside this process; the bot only
// needs a fire-and-forget publisher whose failures never reach the
// reconciliation logic.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Publisher delivers a short human-facing message with an emoji-style tag.
type Publisher interface {
	Publish(ctx context.Context, message, tag string) error
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string) error { return nil }

// LogPublisher writes notifications to the log. It is the default when no
// delivery sidecar is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, message, tag string) error {
	p.logger.Info("Notification", zap.String("message", message), zap.String("tag", tag))
	return nil
}
