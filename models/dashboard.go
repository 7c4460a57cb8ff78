package models

import "time"

// OverdueOrder is one delinquent order on the admin dashboard, enriched with
// the customer display name and the order's running totals.
type OverdueOrder struct {
	OrderID       int       `json:"order_id"`
	CustomerName  string    `json:"customer_name"`
	AmountOverdue float64   `json:"amount_overdue"`
	DueDate       time.Time `json:"due_date"`
	TotalAmount   float64   `json:"total_amount"`
	PaidAmount    float64   `json:"paid_amount"`
}

// OrderStatusBreakdown partitions all orders by how much of the total has
// been settled, regardless of cancellation.
type OrderStatusBreakdown struct {
	Paid    int `json:"paid"`
	Partial int `json:"partial"`
	Unpaid  int `json:"unpaid"`
}

type PortfolioStats struct {
	TotalOrders                int                  `json:"total_orders"`
	TotalRevenue               float64              `json:"total_revenue"`
	TotalOutstanding           float64              `json:"total_outstanding"`
	ActiveInstallmentsCount    int                  `json:"active_installments_count"`
	UsersOwingCount            int                  `json:"users_owing_count"`
	ProductsOnInstallmentCount int                  `json:"products_on_installment_count"`
	TotalInstallmentRevenue    float64              `json:"total_installment_revenue"`
	TotalInstallmentTotalValue float64              `json:"total_installment_total_value"`
	OverdueOrders              []OverdueOrder       `json:"overdue_orders"`
	OrderStatus                OrderStatusBreakdown `json:"order_status"`
}
