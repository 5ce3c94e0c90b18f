package domain

import "time"

type ExecutionRecord struct {
	ID             int64
	ProductID      int64
	NotificationID *int64
	ExecutedAt     time.Time
	Success        bool
	Skipped        bool
	Duration       time.Duration
	ErrorMessage   *string
	// ProductSkuIDs are the rows of the SKUs found available during the run.
	ProductSkuIDs []int64
}

type NotificationRecord struct {
	ID             int64
	ProductID      int64
	ProductSkuIDs  []int64
	ProductPageURL string
	EmailSent      bool
	EmailBody      *string
	ChatSent       bool
	ChatBody       *string
	SentAt         time.Time
	CreatedAt      time.Time
}

type ExecutionStatus string

const (
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionSkipped   ExecutionStatus = "skipped"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ExecutionOutcome is returned to whoever triggered an orchestration run.
type ExecutionOutcome struct {
	ProductID int64           `json:"product_id"`
	Status    ExecutionStatus `json:"status"`
	Success   bool            `json:"success"`
	Found     int             `json:"found"`
	Message   string          `json:"message,omitempty"`
}

func Succeeded(productID int64, found int) *ExecutionOutcome {
	return &ExecutionOutcome{ProductID: productID, Status: ExecutionSucceeded, Success: true, Found: found}
}

func Skipped(productID int64, message string) *ExecutionOutcome {
	return &ExecutionOutcome{ProductID: productID, Status: ExecutionSkipped, Success: true, Message: message}
}

func Failed(productID int64, message string) *ExecutionOutcome {
	return &ExecutionOutcome{ProductID: productID, Status: ExecutionFailed, Message: message}
}
