package reactivation

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"stock_watcher/internal/domain"
)

type TokenStore interface {
	Create(ctx context.Context, token *domain.ReactivationToken) (int64, error)
	InvalidateUnused(ctx context.Context, productSkuID int64, at time.Time) (int64, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*domain.ReactivationToken, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) error
}

type SkuStore interface {
	GetByID(ctx context.Context, id int64) (*domain.ProductSku, error)
	Reactivate(ctx context.Context, id int64, at time.Time) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
