package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"stock_watcher/internal/domain"
)

type ExecutionStore struct {
	db *sqlx.DB
}

func NewExecutionStore(db *sqlx.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) Create(ctx context.Context, rec *domain.ExecutionRecord) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO job_execution_logs (
			product_id, notification_id, executed_at, success, skipped, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err := exec.QueryRowxContext(ctx, query,
		rec.ProductID,
		rec.NotificationID,
		rec.ExecutedAt,
		rec.Success,
		rec.Skipped,
		rec.Duration.Milliseconds(),
		rec.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert execution log: %w", err)
	}

	if len(rec.ProductSkuIDs) > 0 {
		_, err = exec.ExecContext(ctx,
			`INSERT INTO job_execution_log_skus (execution_id, product_sku_id)
			 SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
			id, pq.Array(rec.ProductSkuIDs),
		)
		if err != nil {
			return 0, fmt.Errorf("link execution skus: %w", err)
		}
	}

	return id, nil
}

type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(ctx context.Context, rec *domain.NotificationRecord) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO notification_history (
			product_id, product_page_url, email_sent, email_body, chat_sent, chat_body, sent_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := exec.QueryRowxContext(ctx, query,
		rec.ProductID,
		rec.ProductPageURL,
		rec.EmailSent,
		rec.EmailBody,
		rec.ChatSent,
		rec.ChatBody,
		rec.SentAt,
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification history: %w", err)
	}

	if len(rec.ProductSkuIDs) > 0 {
		_, err = exec.ExecContext(ctx,
			`INSERT INTO notification_history_skus (notification_id, product_sku_id)
			 SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
			id, pq.Array(rec.ProductSkuIDs),
		)
		if err != nil {
			return 0, fmt.Errorf("link notification skus: %w", err)
		}
	}

	return id, nil
}
