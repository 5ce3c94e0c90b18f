package domain

import "time"

type ReactivationToken struct {
	ID           int64      `db:"id"`
	ProductSkuID int64      `db:"product_sku_id"`
	Token        string     `db:"token"`
	ReEnableURL  string     `db:"re_enable_url"`
	IsUsed       bool       `db:"is_used"`
	ValidTo      time.Time  `db:"valid_to"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
}

// ExpiredAt reports whether the token is past its validity window. A token
// redeemed exactly at ValidTo is still valid.
func (t *ReactivationToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ValidTo)
}

// ReactivatedSku describes a SKU re-armed by a successful redemption.
type ReactivatedSku struct {
	ProductSkuID  int64
	ProductID     int64
	Sku           int64
	Name          string
	ReactivatedAt time.Time
}

type ReactivationStatus string

const (
	ReactivationSucceeded   ReactivationStatus = "reactivated"
	ReactivationNotFound    ReactivationStatus = "not_found"
	ReactivationAlreadyUsed ReactivationStatus = "already_used"
	ReactivationExpired     ReactivationStatus = "expired"
	ReactivationFailed      ReactivationStatus = "error"
)

// ReactivationOutcome is what the reactivation link renders back to the user.
type ReactivationOutcome struct {
	Success   bool               `json:"success"`
	Status    ReactivationStatus `json:"status"`
	Message   string             `json:"message"`
	SkuName   *string            `json:"productSkuName,omitempty"`
	SkuCode   *int64             `json:"sku,omitempty"`
	ExpiredAt *time.Time         `json:"expiredAt,omitempty"`
}
