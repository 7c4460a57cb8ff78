package installment

import (
	"fmt"
	"time"

	"bikeshop-svc/models"
)

const (
	monthlyIntervalDays = 30
	dailyIntervalDays   = 1
)

// Entry is one installment of a payment schedule. CumulativeDue is the total
// the customer should have paid once this installment's due date has passed.
type Entry struct {
	Index         int       `json:"index"`
	DueDate       time.Time `json:"due_date"`
	CumulativeDue float64   `json:"cumulative_due"`
}

// InvalidScheduleError reports a schedule request that cannot be computed.
type InvalidScheduleError struct {
	Duration    int
	TotalAmount float64
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid installment schedule: duration=%d totalAmount=%.2f", e.Duration, e.TotalAmount)
}

// Schedule computes the due dates and cumulative due amounts for an order's
// installment plan. Index 0 falls on the order date itself: the first
// installment is the at-purchase payment, not one interval later. The per
// installment amount is the plain quotient totalAmount/duration; fractional
// remainders are carried as-is rather than rounded to whole cents.
//
// A monthly interval spaces installments 30 days apart. Any other interval
// value, including an empty one, is treated as daily.
func Schedule(orderDate time.Time, plan models.InstallmentPlan, totalAmount float64) ([]Entry, error) {
	if plan.Duration <= 0 || totalAmount <= 0 {
		return nil, &InvalidScheduleError{Duration: plan.Duration, TotalAmount: totalAmount}
	}

	intervalDays := dailyIntervalDays
	if plan.Interval == models.IntervalMonthly {
		intervalDays = monthlyIntervalDays
	}

	perInstallment := totalAmount / float64(plan.Duration)

	entries := make([]Entry, plan.Duration)
	for i := range entries {
		entries[i] = Entry{
			Index:         i,
			DueDate:       orderDate.Add(time.Duration(i*intervalDays) * 24 * time.Hour),
			CumulativeDue: float64(i+1) * perInstallment,
		}
	}
	return entries, nil
}
