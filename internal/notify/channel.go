// Package notify renders availability messages and delivers them over the
// email and chat channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"stock_watcher/internal/domain"
)

type Message struct {
	Subject string
	Body    string
}

// Channel delivers a rendered message. Implementations make exactly one
// attempt.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Discard stands in for a channel that has no credentials configured. It
// logs the message and reports it as not sent.
type Discard struct {
	name   string
	logger *slog.Logger
}

func NewDiscard(name string, logger *slog.Logger) *Discard {
	return &Discard{name: name, logger: logger}
}

func (d *Discard) Name() string {
	return d.name
}

func (d *Discard) Send(_ context.Context, msg Message) error {
	d.logger.Warn("channel not configured, message dropped",
		"channel", d.name,
		"subject", msg.Subject,
	)
	return fmt.Errorf("%w: channel %s not configured", domain.ErrDispatch, d.name)
}
