package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"stock_watcher/internal/domain"
)

const skuColumns = `id, product_id, sku, name, temporary_disabled, created_at, updated_at, archived_at`

type SkuStore struct {
	db *sqlx.DB
}

func NewSkuStore(db *sqlx.DB) *SkuStore {
	return &SkuStore{db: db}
}

func (s *SkuStore) GetByID(ctx context.Context, id int64) (*domain.ProductSku, error) {
	var sku domain.ProductSku
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &sku,
		`SELECT `+skuColumns+` FROM product_skus WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product sku %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product sku %d: %w", id, err)
	}
	return &sku, nil
}

// Suppress marks the SKU as already notified.
func (s *SkuStore) Suppress(ctx context.Context, id int64, at time.Time) error {
	return s.setDisabled(ctx, id, true, at)
}

// Reactivate re-arms a suppressed SKU.
func (s *SkuStore) Reactivate(ctx context.Context, id int64, at time.Time) error {
	return s.setDisabled(ctx, id, false, at)
}

func (s *SkuStore) setDisabled(ctx context.Context, id int64, disabled bool, at time.Time) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE product_skus SET temporary_disabled = $2, updated_at = $3 WHERE id = $1`,
		id, disabled, at,
	)
	if err != nil {
		return fmt.Errorf("update product sku %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product sku %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("product sku %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
