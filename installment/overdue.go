package installment

import (
	"time"

	"bikeshop-svc/models"
)

// DefaultGracePeriod is how long past a due date a shortfall is tolerated
// before the order is flagged.
const DefaultGracePeriod = 24 * time.Hour

// shortfallTolerance is an absolute allowance of one minor currency unit, so
// fractional-cent drift from the schedule division never flags a customer who
// is effectively current.
const shortfallTolerance = 1.0

// Overdue describes the earliest installment an order is behind on.
type Overdue struct {
	AmountOverdue float64
	DueDate       time.Time
}

// FindOverdue walks the order's schedule against now and reports the first
// installment whose due date is more than grace in the past and whose
// cumulative due amount the customer has not covered. Only the earliest
// shortfall is reported, even when later installments are also behind.
//
// Orders that are not active installment purchases are never overdue:
// non-installment orders, cancelled orders, settled orders, and orders whose
// plan has no duration all return nil.
func FindOverdue(order models.Order, plan models.InstallmentPlan, now time.Time, grace time.Duration) *Overdue {
	if order.PaymentType != models.PaymentTypeInstallment ||
		order.Status == models.OrderStatusCancelled ||
		order.Remaining() <= 0 {
		return nil
	}
	if plan.Duration <= 0 {
		return nil
	}

	entries, err := Schedule(order.OrderDate, plan, order.TotalAmount)
	if err != nil {
		return nil
	}

	cutoff := now.Add(-grace)
	for _, e := range entries {
		if e.DueDate.Before(cutoff) && order.PaidAmount < e.CumulativeDue-shortfallTolerance {
			return &Overdue{
				AmountOverdue: e.CumulativeDue - order.PaidAmount,
				DueDate:       e.DueDate,
			}
		}
	}
	return nil
}
