// Package adapter turns store-specific availability endpoints into a uniform
// set of in-stock SKU codes.
package adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stock_watcher/internal/domain"
)

// InStock is the availability value every supported store uses for
// purchasable SKUs.
const InStock = "in_stock"

type Kind string

const (
	KindZara        Kind = "zara"
	KindPullAndBear Kind = "pullandbear"
)

// ParseKind maps a configured adapter name onto a Kind, ignoring case and
// surrounding whitespace.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindZara, KindPullAndBear:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown adapter %q", domain.ErrConfig, name)
	}
}

// Adapter fetches one availability endpoint and reports which of the wanted
// SKUs are in stock.
type Adapter interface {
	Kind() Kind
	Fetch(ctx context.Context, endpoint string, wanted domain.SkuSet) (domain.SkuSet, error)
}

// Registry resolves adapters by kind.
type Registry struct {
	adapters map[Kind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

// Resolve returns the adapter registered for the configured name. Unknown
// names wrap domain.ErrConfig.
func (r *Registry) Resolve(name string) (Adapter, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: adapter %q not registered", domain.ErrConfig, kind)
	}
	return a, nil
}

func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Availability is one decoded (sku, state) pair.
type Availability struct {
	Sku   int64
	State string
}

// FilterInStock keeps the in-stock entries whose SKU is wanted.
func FilterInStock(entries []Availability, wanted domain.SkuSet) domain.SkuSet {
	out := make(domain.SkuSet)
	for _, e := range entries {
		if e.State == InStock && wanted.Has(e.Sku) {
			out.Add(e.Sku)
		}
	}
	return out
}
