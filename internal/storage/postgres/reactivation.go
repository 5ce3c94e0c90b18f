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

const tokenColumns = `id, product_sku_id, token, re_enable_url, is_used, valid_to, created_at, updated_at`

type ReactivationStore struct {
	db *sqlx.DB
}

func NewReactivationStore(db *sqlx.DB) *ReactivationStore {
	return &ReactivationStore{db: db}
}

func (s *ReactivationStore) Create(ctx context.Context, token *domain.ReactivationToken) (int64, error) {
	query := `
		INSERT INTO product_sku_reactivations (
			product_sku_id, token, re_enable_url, is_used, valid_to, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		token.ProductSkuID,
		token.Token,
		token.ReEnableURL,
		token.IsUsed,
		token.ValidTo,
		token.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert reactivation token: %w", err)
	}
	return id, nil
}

// InvalidateUnused marks every still-unused token of the SKU as used.
func (s *ReactivationStore) InvalidateUnused(ctx context.Context, productSkuID int64, at time.Time) (int64, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE product_sku_reactivations SET is_used = TRUE, updated_at = $2
		 WHERE product_sku_id = $1 AND NOT is_used`,
		productSkuID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("invalidate tokens for sku %d: %w", productSkuID, err)
	}
	return res.RowsAffected()
}

// GetByTokenForUpdate looks a token up and row-locks it for the rest of the
// surrounding transaction.
func (s *ReactivationStore) GetByTokenForUpdate(ctx context.Context, token string) (*domain.ReactivationToken, error) {
	var t domain.ReactivationToken
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &t,
		`SELECT `+tokenColumns+` FROM product_sku_reactivations WHERE token = $1 FOR UPDATE`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reactivation token: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reactivation token: %w", err)
	}
	return &t, nil
}

func (s *ReactivationStore) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE product_sku_reactivations SET is_used = TRUE, updated_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark token %d used: %w", id, err)
	}
	return nil
}

// ListBySku returns the token history of a SKU, newest first.
func (s *ReactivationStore) ListBySku(ctx context.Context, productSkuID int64) ([]domain.ReactivationToken, error) {
	var tokens []domain.ReactivationToken
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &tokens,
		`SELECT `+tokenColumns+` FROM product_sku_reactivations
		 WHERE product_sku_id = $1 ORDER BY created_at DESC, id DESC`, productSkuID)
	if err != nil {
		return nil, fmt.Errorf("list tokens for sku %d: %w", productSkuID, err)
	}
	return tokens, nil
}
