package pullandbear

import (
	"context"
	"fmt"

	"stock_watcher/internal/adapter"
	"stock_watcher/internal/domain"
)

// Adapter flattens Pull&Bear's per-parent stock lists.
type Adapter struct {
	client *adapter.HTTPClient
}

func New(client *adapter.HTTPClient) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Kind() adapter.Kind {
	return adapter.KindPullAndBear
}

func (a *Adapter) Fetch(ctx context.Context, endpoint string, wanted domain.SkuSet) (domain.SkuSet, error) {
	var resp StockResponse
	if err := a.client.GetJSON(ctx, a.Kind(), endpoint, &resp); err != nil {
		return nil, fmt.Errorf("pullandbear: %w", err)
	}
	if resp.Stocks == nil {
		return nil, fmt.Errorf("pullandbear: %w: missing stocks", domain.ErrParse)
	}

	var entries []adapter.Availability
	for _, parent := range resp.Stocks {
		for _, s := range parent.Stocks {
			entries = append(entries, adapter.Availability{Sku: s.ID, State: s.Availability})
		}
	}

	return adapter.FilterInStock(entries, wanted), nil
}
