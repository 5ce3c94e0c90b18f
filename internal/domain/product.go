package domain

import (
	"sort"
	"time"
)

type Product struct {
	ID                   int64      `db:"id"`
	Name                 string     `db:"name"`
	Adapter              string     `db:"adapter"`
	AvailabilityURL      string     `db:"availability_url"`
	ProductPageURL       string     `db:"product_page_url"`
	IsEnabled            bool       `db:"is_enabled"`
	CheckIntervalSeconds int        `db:"check_interval_seconds"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            *time.Time `db:"updated_at"`
	ArchivedAt           *time.Time `db:"archived_at"`
	Skus                 []ProductSku
}

// CheckInterval returns the polling gap configured for the product.
func (p *Product) CheckInterval() time.Duration {
	return time.Duration(p.CheckIntervalSeconds) * time.Second
}

func (p *Product) IsArchived() bool {
	return p.ArchivedAt != nil
}

// SkuCodes returns the codes of the SKUs currently loaded on the product.
func (p *Product) SkuCodes() SkuSet {
	set := make(SkuSet, len(p.Skus))
	for _, s := range p.Skus {
		set.Add(s.Sku)
	}
	return set
}

// ProductSku is a single size or variant of a product. TemporaryDisabled is
// the suppression flag: set once the SKU was reported in stock, cleared by a
// reactivation token.
type ProductSku struct {
	ID                int64      `db:"id"`
	ProductID         int64      `db:"product_id"`
	Sku               int64      `db:"sku"`
	Name              string     `db:"name"`
	TemporaryDisabled bool       `db:"temporary_disabled"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at"`
	ArchivedAt        *time.Time `db:"archived_at"`
}

// ScheduleCandidate is an enabled product with at least one active SKU,
// paired with the time of its most recent execution.
type ScheduleCandidate struct {
	ProductID            int64      `db:"product_id"`
	CheckIntervalSeconds int        `db:"check_interval_seconds"`
	LastExecutedAt       *time.Time `db:"last_executed_at"`
}

// SkuSet is a set of external SKU codes.
type SkuSet map[int64]struct{}

func NewSkuSet(codes ...int64) SkuSet {
	set := make(SkuSet, len(codes))
	for _, c := range codes {
		set.Add(c)
	}
	return set
}

func (s SkuSet) Add(code int64) {
	s[code] = struct{}{}
}

func (s SkuSet) Has(code int64) bool {
	_, ok := s[code]
	return ok
}

// Intersect returns the codes present in both sets.
func (s SkuSet) Intersect(other SkuSet) SkuSet {
	out := make(SkuSet)
	for code := range s {
		if other.Has(code) {
			out.Add(code)
		}
	}
	return out
}

// Sorted returns the codes in ascending order.
func (s SkuSet) Sorted() []int64 {
	codes := make([]int64, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
