package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_watcher/internal/config"
	"stock_watcher/internal/domain"
	"stock_watcher/internal/metrics"
)

const (
	msgAlreadyRunning   = "already running"
	msgNotFound         = "Product not found"
	msgDisabled         = "Product is disabled"
	msgArchived         = "Product is archived"
	msgNoActiveSkus     = "There are no active SKUs to check"
	msgUnknownAdapter   = "Unknown adapter: %s"
	msgFetchFailed      = "Fetch failed: %v"
	msgParseFailed      = "Parse failed: %v"
	msgLoadFailed       = "Load failed: %v"
	msgSuppressFailed   = "Suppression failed: %v"
	defaultFetchTimeout = 30 * time.Second
	defaultRunTimeout   = 2 * time.Minute
)

// ScrapeService runs one availability check for a product: fetch, suppress
// the SKUs found in stock, notify and record the run.
type ScrapeService struct {
	products      ProductStore
	skus          SkuStore
	tokens        TokenIssuer
	executions    ExecutionStore
	notifications NotificationStore
	adapters      AdapterResolver
	dispatcher    Dispatcher
	publisher     Publisher
	locker        Locker
	txManager     TransactionManager
	logger        *slog.Logger
	config        config.ScrapeConfig
	now           func() time.Time
}

func NewScrapeService(
	products ProductStore,
	skus SkuStore,
	tokens TokenIssuer,
	executions ExecutionStore,
	notifications NotificationStore,
	adapters AdapterResolver,
	dispatcher Dispatcher,
	publisher Publisher,
	locker Locker,
	txManager TransactionManager,
	logger *slog.Logger,
	cfg config.ScrapeConfig,
) *ScrapeService {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	return &ScrapeService{
		products:      products,
		skus:          skus,
		tokens:        tokens,
		executions:    executions,
		notifications: notifications,
		adapters:      adapters,
		dispatcher:    dispatcher,
		publisher:     publisher,
		locker:        locker,
		txManager:     txManager,
		logger:        logger.With("component", "scrape"),
		config:        cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run checks one product. The returned error is reserved for failures to take
// the product lease or to record the run; everything else is reported through
// the outcome and the execution record.
func (s *ScrapeService) Run(ctx context.Context, productID int64) (*domain.ExecutionOutcome, error) {
	logger := s.logger.With("product_id", productID)

	release, acquired, err := s.locker.TryLock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}
	if !acquired {
		logger.Info("run skipped", "reason", msgAlreadyRunning)
		outcome := domain.Skipped(productID, msgAlreadyRunning)
		metrics.RecordRun(string(outcome.Status), 0, 0)
		return outcome, nil
	}
	defer release()

	start := s.now()
	logger.Debug("starting run")

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	outcome, rec := s.execute(runCtx, logger, productID, start)
	duration := s.now().Sub(start)

	metrics.RecordRun(string(outcome.Status), outcome.Found, duration)
	logger.Info("run completed",
		"status", outcome.Status,
		"found", outcome.Found,
		"message", outcome.Message,
		"duration", duration,
	)

	if rec == nil {
		return outcome, nil
	}

	rec.ExecutedAt = start
	rec.Duration = duration
	rec.Success = outcome.Success
	rec.Skipped = outcome.Status == domain.ExecutionSkipped
	if outcome.Message != "" {
		msg := outcome.Message
		rec.ErrorMessage = &msg
	}

	// The run deadline may already be spent; the record is written regardless.
	if _, err := s.executions.Create(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to record execution", "error", err)
		return outcome, fmt.Errorf("record execution: %w", err)
	}

	return outcome, nil
}

// execute performs the run and returns the outcome together with the record
// to persist, or a nil record when nothing should be written.
func (s *ScrapeService) execute(
	ctx context.Context,
	logger *slog.Logger,
	productID int64,
	now time.Time,
) (*domain.ExecutionOutcome, *domain.ExecutionRecord) {
	rec := &domain.ExecutionRecord{ProductID: productID}

	product, err := s.products.GetWithActiveSkus(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("product not found")
		return domain.Failed(productID, msgNotFound), nil
	}
	if err != nil {
		return domain.Failed(productID, fmt.Sprintf(msgLoadFailed, err)), rec
	}

	switch {
	case !product.IsEnabled:
		return domain.Skipped(productID, msgDisabled), rec
	case product.IsArchived():
		return domain.Skipped(productID, msgArchived), rec
	case len(product.Skus) == 0:
		return domain.Skipped(productID, msgNoActiveSkus), rec
	}

	adp, err := s.adapters.Resolve(product.Adapter)
	if err != nil {
		logger.Error("adapter resolution failed", "adapter", product.Adapter, "error", err)
		return domain.Failed(productID, fmt.Sprintf(msgUnknownAdapter, product.Adapter)), rec
	}

	wanted := product.SkuCodes()

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	available, err := adp.Fetch(fetchCtx, product.AvailabilityURL, wanted)
	cancel()
	if err != nil {
		logger.Warn("fetch failed", "adapter", adp.Kind(), "error", err)
		if errors.Is(err, domain.ErrParse) {
			return domain.Failed(productID, fmt.Sprintf(msgParseFailed, err)), rec
		}
		return domain.Failed(productID, fmt.Sprintf(msgFetchFailed, err)), rec
	}

	// Adapters are trusted to filter, but a stray SKU must never be suppressed.
	matched := available.Intersect(wanted)
	if len(matched) == 0 {
		logger.Debug("no wanted skus in stock", "checked", len(wanted))
		return domain.Succeeded(productID, 0), rec
	}

	items, err := s.suppress(ctx, product, matched, now)
	if err != nil {
		logger.Error("suppression failed", "error", err)
		return domain.Failed(productID, fmt.Sprintf(msgSuppressFailed, err)), rec
	}

	rec.ProductSkuIDs = make([]int64, len(items))
	for i, item := range items {
		rec.ProductSkuIDs[i] = item.ProductSkuID
	}

	result := s.dispatcher.Notify(ctx, product, items)
	if result.AnySent() {
		rec.NotificationID = s.recordNotification(ctx, logger, product, rec.ProductSkuIDs, result, now)
	} else {
		logger.Warn("no channel delivered the notification", "skus", len(items))
	}

	s.publish(ctx, logger, product, items, rec.NotificationID, result, now)

	return domain.Succeeded(productID, len(items)), rec
}

// suppress disables every matched SKU and issues its reactivation token in a
// single transaction, so either the whole batch is suppressed or none of it.
func (s *ScrapeService) suppress(
	ctx context.Context,
	product *domain.Product,
	matched domain.SkuSet,
	now time.Time,
) ([]domain.NotifyItem, error) {
	byCode := make(map[int64]*domain.ProductSku, len(product.Skus))
	for i := range product.Skus {
		byCode[product.Skus[i].Sku] = &product.Skus[i]
	}

	var items []domain.NotifyItem
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		items = items[:0]
		for _, code := range matched.Sorted() {
			sku := byCode[code]

			if err := s.skus.Suppress(txCtx, sku.ID, now); err != nil {
				return fmt.Errorf("suppress sku %d: %w", sku.Sku, err)
			}

			token, err := s.tokens.Issue(txCtx, sku, now)
			if err != nil {
				return fmt.Errorf("issue token for sku %d: %w", sku.Sku, err)
			}

			items = append(items, domain.NotifyItem{
				ProductSkuID:    sku.ID,
				Sku:             sku.Sku,
				Name:            sku.Name,
				ReactivationURL: token.ReEnableURL,
				ValidTo:         token.ValidTo,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (s *ScrapeService) recordNotification(
	ctx context.Context,
	logger *slog.Logger,
	product *domain.Product,
	skuIDs []int64,
	result *domain.DispatchResult,
	now time.Time,
) *int64 {
	rec := &domain.NotificationRecord{
		ProductID:      product.ID,
		ProductSkuIDs:  skuIDs,
		ProductPageURL: product.ProductPageURL,
		EmailSent:      result.EmailSent,
		EmailBody:      &result.EmailBody,
		ChatSent:       result.ChatSent,
		ChatBody:       &result.ChatBody,
		SentAt:         now,
		CreatedAt:      now,
	}

	id, err := s.notifications.Create(context.WithoutCancel(ctx), rec)
	if err != nil {
		logger.Error("failed to record notification", "error", err)
		return nil
	}
	return &id
}

func (s *ScrapeService) publish(
	ctx context.Context,
	logger *slog.Logger,
	product *domain.Product,
	items []domain.NotifyItem,
	notificationID *int64,
	result *domain.DispatchResult,
	now time.Time,
) {
	if s.publisher == nil {
		return
	}

	skus := make([]int64, len(items))
	for i, item := range items {
		skus[i] = item.Sku
	}

	event := &domain.AvailabilityEvent{
		ProductID:      product.ID,
		ProductName:    product.Name,
		ProductPageURL: product.ProductPageURL,
		Skus:           skus,
		NotificationID: notificationID,
		EmailSent:      result.EmailSent,
		ChatSent:       result.ChatSent,
		DetectedAt:     now,
	}

	if err := s.publisher.PublishAvailability(ctx, event); err != nil {
		logger.Warn("failed to publish availability event", "error", err)
	}
}
