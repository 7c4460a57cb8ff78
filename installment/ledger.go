package installment

import (
	"errors"
	"fmt"
	"time"

	"bikeshop-svc/models"
)

// ErrNonPositiveAmount rejects zero and negative payment amounts.
var ErrNonPositiveAmount = errors.New("payment amount must be positive")

// OverpaymentError means the payment would push the order's paid amount above
// its total. Remaining carries the exact balance still owed so the operator
// can be told what amount would be accepted.
type OverpaymentError struct {
	Amount    float64
	Remaining float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %.2f exceeds total amount, remaining: %.2f", e.Amount, e.Remaining)
}

// ApplyPayment settles amount against the order and returns the updated order
// together with the payment record to append. The check is strict, with no
// epsilon tolerance: paidAmount + amount must not exceed totalAmount. On any
// error the returned order is the input order, unchanged.
//
// Both processor-confirmed settlements and administrator manual entries funnel
// through here; source is the processor transaction id or
// models.ManualEntrySource.
func ApplyPayment(order models.Order, amount float64, source string, now time.Time) (models.Order, models.Payment, error) {
	if amount <= 0 {
		return order, models.Payment{}, ErrNonPositiveAmount
	}
	if order.PaidAmount+amount > order.TotalAmount {
		return order, models.Payment{}, &OverpaymentError{Amount: amount, Remaining: order.Remaining()}
	}

	order.PaidAmount += amount
	payment := models.Payment{
		OrderID:     order.ID,
		Amount:      amount,
		PaymentDate: now,
		Source:      source,
		Status:      models.PaymentStatusCompleted,
	}
	return order, payment, nil
}
