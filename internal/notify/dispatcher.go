package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stock_watcher/internal/domain"
	"stock_watcher/internal/metrics"
)

// Dispatcher sends one availability notification per batch over the email
// and chat channels in parallel.
type Dispatcher struct {
	email   Channel
	chat    Channel
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(email, chat Channel, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		email:   email,
		chat:    chat,
		timeout: timeout,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Notify renders both bodies up front and then sends them. A failing channel
// does not affect the other; the returned bodies are what was attempted.
func (d *Dispatcher) Notify(ctx context.Context, product *domain.Product, items []domain.NotifyItem) *domain.DispatchResult {
	result := &domain.DispatchResult{
		EmailBody: RenderEmail(product, items),
		ChatBody:  RenderChat(product, items),
	}
	subject := Subject(product)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.EmailErr = d.email.Send(ctx, Message{Subject: subject, Body: result.EmailBody})
		result.EmailSent = result.EmailErr == nil
	}()
	go func() {
		defer wg.Done()
		result.ChatErr = d.chat.Send(ctx, Message{Subject: subject, Body: result.ChatBody})
		result.ChatSent = result.ChatErr == nil
	}()
	wg.Wait()

	d.report(product.ID, d.email.Name(), result.EmailErr)
	d.report(product.ID, d.chat.Name(), result.ChatErr)

	return result
}

func (d *Dispatcher) report(productID int64, channel string, err error) {
	metrics.RecordNotification(channel, err == nil)
	if err != nil {
		d.logger.Error("notification failed",
			"product_id", productID,
			"channel", channel,
			"error", err,
		)
		return
	}
	d.logger.Info("notification sent", "product_id", productID, "channel", channel)
}
