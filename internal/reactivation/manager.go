// Package reactivation issues and redeems the single-use links that re-arm a
// suppressed SKU.
package reactivation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stock_watcher/internal/domain"
	"stock_watcher/internal/metrics"
)

// DefaultValidFor is how long a reactivation link stays redeemable.
const DefaultValidFor = 30 * time.Minute

type Config struct {
	BaseURL  string
	ValidFor time.Duration
}

type Manager struct {
	tokens    TokenStore
	skus      SkuStore
	txManager TransactionManager
	baseURL   string
	validFor  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewManager(
	tokens TokenStore,
	skus SkuStore,
	txManager TransactionManager,
	cfg Config,
	logger *slog.Logger,
) *Manager {
	validFor := cfg.ValidFor
	if validFor <= 0 {
		validFor = DefaultValidFor
	}
	return &Manager{
		tokens:    tokens,
		skus:      skus,
		txManager: txManager,
		baseURL:   cfg.BaseURL,
		validFor:  validFor,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "reactivation"),
	}
}

// URL builds the reactivation link for a token.
func (m *Manager) URL(token string) string {
	return fmt.Sprintf("%s/productsku/%s/reactivate", m.baseURL, token)
}

// Issue invalidates the SKU's outstanding tokens and creates a fresh one. It
// joins the transaction in ctx when there is one.
func (m *Manager) Issue(ctx context.Context, sku *domain.ProductSku, at time.Time) (*domain.ReactivationToken, error) {
	invalidated, err := m.tokens.InvalidateUnused(ctx, sku.ID, at)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous tokens: %w", err)
	}

	token := uuid.NewString()
	t := &domain.ReactivationToken{
		ProductSkuID: sku.ID,
		Token:        token,
		ReEnableURL:  m.URL(token),
		ValidTo:      at.Add(m.validFor),
		CreatedAt:    at,
	}

	id, err := m.tokens.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	t.ID = id

	m.logger.Debug("issued reactivation token",
		"product_sku_id", sku.ID,
		"sku", sku.Sku,
		"invalidated", invalidated,
		"valid_to", t.ValidTo,
	)

	return t, nil
}

// Redeem re-arms the SKU owning token. It fails with domain.ErrNotFound,
// domain.ErrAlreadyUsed or a *domain.ExpiredError; used is checked before
// expiry and nothing is written unless the token is valid.
func (m *Manager) Redeem(ctx context.Context, token string) (*domain.ReactivatedSku, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("reactivation token %q: %w", token, domain.ErrNotFound)
	}

	var result *domain.ReactivatedSku
	err := m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		t, err := m.tokens.GetByTokenForUpdate(txCtx, token)
		if err != nil {
			return err
		}

		if t.IsUsed {
			return domain.ErrAlreadyUsed
		}

		now := m.now()
		if t.ExpiredAt(now) {
			return &domain.ExpiredError{ValidTo: t.ValidTo}
		}

		sku, err := m.skus.GetByID(txCtx, t.ProductSkuID)
		if err != nil {
			return err
		}

		if err := m.skus.Reactivate(txCtx, sku.ID, now); err != nil {
			return fmt.Errorf("reactivate sku: %w", err)
		}
		if err := m.tokens.MarkUsed(txCtx, t.ID, now); err != nil {
			return fmt.Errorf("mark token used: %w", err)
		}

		result = &domain.ReactivatedSku{
			ProductSkuID:  sku.ID,
			ProductID:     sku.ProductID,
			Sku:           sku.Sku,
			Name:          sku.Name,
			ReactivatedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("sku reactivated",
		"product_id", result.ProductID,
		"product_sku_id", result.ProductSkuID,
		"sku", result.Sku,
	)

	return result, nil
}

// Outcome redeems token and describes the result for the person who clicked
// the link.
func (m *Manager) Outcome(ctx context.Context, token string) domain.ReactivationOutcome {
	sku, err := m.Redeem(ctx, token)
	out := Describe(sku, err)
	metrics.RecordReactivation(string(out.Status))
	if out.Status == domain.ReactivationFailed {
		m.logger.Error("reactivation failed", "error", err)
	}
	return out
}

// Describe maps a Redeem result onto the user-facing outcome.
func Describe(sku *domain.ReactivatedSku, err error) domain.ReactivationOutcome {
	var expired *domain.ExpiredError

	switch {
	case err == nil:
		return domain.ReactivationOutcome{
			Success: true,
			Status:  domain.ReactivationSucceeded,
			Message: fmt.Sprintf("ProductSku '%s' (SKU: %d) has been successfully reactivated.", sku.Name, sku.Sku),
			SkuName: &sku.Name,
			SkuCode: &sku.Sku,
		}
	case errors.Is(err, domain.ErrNotFound):
		return domain.ReactivationOutcome{
			Status:  domain.ReactivationNotFound,
			Message: "Reactivation token not found.",
		}
	case errors.Is(err, domain.ErrAlreadyUsed):
		return domain.ReactivationOutcome{
			Status:  domain.ReactivationAlreadyUsed,
			Message: "This reactivation link has already been used.",
		}
	case errors.As(err, &expired):
		validTo := expired.ValidTo
		return domain.ReactivationOutcome{
			Status:    domain.ReactivationExpired,
			Message:   fmt.Sprintf("This reactivation link expired on %s.", validTo.UTC().Format("2006-01-02 15:04:05Z")),
			ExpiredAt: &validTo,
		}
	default:
		return domain.ReactivationOutcome{
			Status:  domain.ReactivationFailed,
			Message: "Reactivation failed, please try again later.",
		}
	}
}
