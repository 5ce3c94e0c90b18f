package zara

import (
	"context"
	"fmt"

	"stock_watcher/internal/adapter"
	"stock_watcher/internal/domain"
)

// Adapter reads Zara's flat sku/availability list.
type Adapter struct {
	client *adapter.HTTPClient
}

func New(client *adapter.HTTPClient) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Kind() adapter.Kind {
	return adapter.KindZara
}

func (a *Adapter) Fetch(ctx context.Context, endpoint string, wanted domain.SkuSet) (domain.SkuSet, error) {
	var resp AvailabilityResponse
	if err := a.client.GetJSON(ctx, a.Kind(), endpoint, &resp); err != nil {
		return nil, fmt.Errorf("zara: %w", err)
	}
	if resp.SkusAvailability == nil {
		return nil, fmt.Errorf("zara: %w: missing skusAvailability", domain.ErrParse)
	}

	entries := make([]adapter.Availability, 0, len(resp.SkusAvailability))
	for _, s := range resp.SkusAvailability {
		entries = append(entries, adapter.Availability{Sku: s.Sku, State: s.Availability})
	}

	return adapter.FilterInStock(entries, wanted), nil
}
