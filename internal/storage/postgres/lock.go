package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ProductLocker hands out per-product leases backed by PostgreSQL session
// advisory locks, so two processes never scrape the same product at once.
// The product id is used as the lock key.
type ProductLocker struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewProductLocker(db *sqlx.DB, logger *slog.Logger) *ProductLocker {
	return &ProductLocker{db: db, logger: logger}
}

// TryLock attempts to take the lease without waiting. The returned release
// func must be called when acquired is true.
func (l *ProductLocker) TryLock(ctx context.Context, productID int64) (release func(), acquired bool, err error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	if err := conn.QueryRowxContext(ctx, "SELECT pg_try_advisory_lock($1)", productID).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("try advisory lock for product %d: %w", productID, err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release = func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(unlockCtx, "SELECT pg_advisory_unlock($1)", productID); err != nil {
			l.logger.Warn("failed to release product lock", "product_id", productID, "error", err)
		}
		conn.Close()
	}
	return release, true, nil
}
