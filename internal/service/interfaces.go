package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"stock_watcher/internal/adapter"
	"stock_watcher/internal/domain"
)

type ProductStore interface {
	GetWithActiveSkus(ctx context.Context, id int64) (*domain.Product, error)
}

type SkuStore interface {
	Suppress(ctx context.Context, id int64, at time.Time) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, sku *domain.ProductSku, at time.Time) (*domain.ReactivationToken, error)
}

type ExecutionStore interface {
	Create(ctx context.Context, rec *domain.ExecutionRecord) (int64, error)
}

type NotificationStore interface {
	Create(ctx context.Context, rec *domain.NotificationRecord) (int64, error)
}

type AdapterResolver interface {
	Resolve(name string) (adapter.Adapter, error)
}

type Dispatcher interface {
	Notify(ctx context.Context, product *domain.Product, items []domain.NotifyItem) *domain.DispatchResult
}

type Locker interface {
	TryLock(ctx context.Context, productID int64) (release func(), acquired bool, err error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishAvailability(ctx context.Context, event *domain.AvailabilityEvent) error
}
