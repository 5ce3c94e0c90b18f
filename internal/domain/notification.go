package domain

import "time"

// NotifyItem is one SKU line of an availability notification.
type NotifyItem struct {
	ProductSkuID    int64
	Sku             int64
	Name            string
	ReactivationURL string
	ValidTo         time.Time
}

// DispatchResult holds the bodies rendered for each channel and whether the
// send went through. Bodies are set even when the transport failed.
type DispatchResult struct {
	EmailBody string
	ChatBody  string
	EmailSent bool
	ChatSent  bool
	EmailErr  error
	ChatErr   error
}

func (r *DispatchResult) AnySent() bool {
	return r.EmailSent || r.ChatSent
}

// AvailabilityEvent is published after a batch of SKUs was suppressed and
// notified.
type AvailabilityEvent struct {
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name"`
	ProductPageURL string    `json:"product_page_url"`
	Skus           []int64   `json:"skus"`
	NotificationID *int64    `json:"notification_id,omitempty"`
	EmailSent      bool      `json:"email_sent"`
	ChatSent       bool      `json:"chat_sent"`
	DetectedAt     time.Time `json:"detected_at"`
}
