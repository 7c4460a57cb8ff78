package models

import "time"

// ManualEntrySource tags payments entered by an administrator instead of
// confirmed by the payment processor.
const ManualEntrySource = "MANUAL_ENTRY"

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
)

type Payment struct {
	ID          int           `json:"id"`
	OrderID     int           `json:"order_id"`
	Amount      float64       `json:"amount"`
	PaymentDate time.Time     `json:"payment_date"`
	Source      string        `json:"source"` // processor transaction id or MANUAL_ENTRY
	Note        string        `json:"note,omitempty"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type RecordPaymentRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	TransactionID string  `json:"transaction_id" binding:"required"`
}

type ManualPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Note   string  `json:"note"`
}

type PaymentEvent struct {
	PaymentID int     `json:"payment_id"`
	OrderID   int     `json:"order_id"`
	UserID    int     `json:"user_id"`
	Amount    float64 `json:"amount"`
	Source    string  `json:"source"`
	EventType string  `json:"event_type"` // payment_recorded
}
