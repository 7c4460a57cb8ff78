package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentType string

const (
	PaymentTypeFull        PaymentType = "full"
	PaymentTypeInstallment PaymentType = "installment"
)

// Order records a single-bicycle purchase. The installment plan active at
// checkout is snapshotted onto the order so later plan edits on the bicycle
// never reshape the schedule of an existing order.
type Order struct {
	ID                  int                 `json:"id"`
	UserID              int                 `json:"user_id"`
	BicycleID           int                 `json:"bicycle_id"`
	Status              OrderStatus         `json:"status"`
	PaymentType         PaymentType         `json:"payment_type"`
	TotalAmount         float64             `json:"total_amount"`
	PaidAmount          float64             `json:"paid_amount"`
	InstallmentDuration int                 `json:"installment_duration"`
	InstallmentInterval InstallmentInterval `json:"installment_interval"`
	OrderDate           time.Time           `json:"order_date"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Remaining is the outstanding balance. Zero or negative means fully paid.
func (o *Order) Remaining() float64 {
	return o.TotalAmount - o.PaidAmount
}

// Plan returns the snapshotted installment plan, if the order has one.
func (o *Order) Plan() (InstallmentPlan, bool) {
	if o.InstallmentDuration <= 0 {
		return InstallmentPlan{}, false
	}
	return InstallmentPlan{Duration: o.InstallmentDuration, Interval: o.InstallmentInterval}, true
}

type CreateOrderRequest struct {
	BicycleID            int         `json:"bicycle_id" binding:"required"`
	PaymentType          PaymentType `json:"payment_type" binding:"required,oneof=full installment"`
	InitialPaymentAmount float64     `json:"initial_payment_amount" binding:"gte=0"`
	TransactionID        string      `json:"transaction_id"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
}

type OrderEvent struct {
	OrderID     int         `json:"order_id"`
	UserID      int         `json:"user_id"`
	BicycleID   int         `json:"bicycle_id"`
	Status      OrderStatus `json:"status"`
	PaymentType PaymentType `json:"payment_type"`
	TotalAmount float64     `json:"total_amount"`
	PaidAmount  float64     `json:"paid_amount"`
	EventType   string      `json:"event_type"` // order_created, order_cancelled
}
