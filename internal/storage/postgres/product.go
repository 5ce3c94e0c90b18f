package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stock_watcher/internal/domain"
)

type ProductStore struct {
	db *sqlx.DB
}

func NewProductStore(db *sqlx.DB) *ProductStore {
	return &ProductStore{db: db}
}

const productColumns = `id, name, adapter, availability_url, product_page_url, is_enabled,
	check_interval_seconds, created_at, updated_at, archived_at`

// GetWithActiveSkus loads a product together with its SKUs that are neither
// suppressed nor archived.
func (s *ProductStore) GetWithActiveSkus(ctx context.Context, id int64) (*domain.Product, error) {
	exec := GetExecutor(ctx, s.db)

	var product domain.Product
	err := sqlx.GetContext(ctx, exec, &product,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	query := `
		SELECT ` + skuColumns + `
		FROM product_skus
		WHERE product_id = $1
		  AND NOT temporary_disabled
		  AND archived_at IS NULL
		ORDER BY sku`

	if err := sqlx.SelectContext(ctx, exec, &product.Skus, query, id); err != nil {
		return nil, fmt.Errorf("get active skus for product %d: %w", id, err)
	}

	return &product, nil
}

// ListScheduleCandidates returns enabled, non-archived products that still
// have at least one active SKU, with the time of their latest execution.
func (s *ProductStore) ListScheduleCandidates(ctx context.Context) ([]domain.ScheduleCandidate, error) {
	query := `
		SELECT
			p.id AS product_id,
			p.check_interval_seconds,
			(SELECT MAX(l.executed_at) FROM job_execution_logs l WHERE l.product_id = p.id) AS last_executed_at
		FROM products p
		WHERE p.is_enabled
		  AND p.archived_at IS NULL
		  AND EXISTS (
			SELECT 1 FROM product_skus ps
			WHERE ps.product_id = p.id
			  AND NOT ps.temporary_disabled
			  AND ps.archived_at IS NULL
		  )
		ORDER BY p.id`

	var candidates []domain.ScheduleCandidate
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &candidates, query); err != nil {
		return nil, fmt.Errorf("list schedule candidates: %w", err)
	}
	return candidates, nil
}
