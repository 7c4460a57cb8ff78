// Package analytics folds the full order book into the portfolio statistics
// shown on the admin dashboard.
package analytics

import (
	"time"

	"bikeshop-svc/installment"
	"bikeshop-svc/models"
)

// Aggregate computes portfolio statistics in a single pass over all orders.
// It is a pure function of its inputs: the clock is injected and no state is
// kept between calls, so the same snapshot and the same now always produce
// the same stats.
//
// Revenue policy: paidAmount counts toward revenue for every order, cancelled
// ones included; cancellation never claws back money already recorded.
// Outstanding balances and owing-user counts exclude cancelled orders.
func Aggregate(orders []models.Order, bicycles []models.Bicycle, users []models.User, now time.Time) models.PortfolioStats {
	bicycleByID := make(map[int]models.Bicycle, len(bicycles))
	for _, b := range bicycles {
		bicycleByID[b.ID] = b
	}
	userByID := make(map[int]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	stats := models.PortfolioStats{
		TotalOrders:   len(orders),
		OverdueOrders: []models.OverdueOrder{},
	}
	usersOwing := make(map[int]struct{})
	productsOnInstallment := make(map[int]struct{})

	for _, order := range orders {
		remaining := order.Remaining()

		stats.TotalRevenue += order.PaidAmount

		switch {
		case remaining <= 0:
			stats.OrderStatus.Paid++
		case order.PaidAmount > 0:
			stats.OrderStatus.Partial++
		default:
			stats.OrderStatus.Unpaid++
		}

		if remaining > 0 && order.Status != models.OrderStatusCancelled {
			stats.TotalOutstanding += remaining
			usersOwing[order.UserID] = struct{}{}
		}

		if order.PaymentType == models.PaymentTypeInstallment {
			stats.TotalInstallmentRevenue += order.PaidAmount
			stats.TotalInstallmentTotalValue += order.TotalAmount

			if order.Status != models.OrderStatusCancelled && remaining > 0 {
				stats.ActiveInstallmentsCount++
				productsOnInstallment[order.BicycleID] = struct{}{}
			}
		}

		if overdue := installment.FindOverdue(order, planFor(order, bicycleByID), now, installment.DefaultGracePeriod); overdue != nil {
			stats.OverdueOrders = append(stats.OverdueOrders, models.OverdueOrder{
				OrderID:       order.ID,
				CustomerName:  customerName(order.UserID, userByID),
				AmountOverdue: overdue.AmountOverdue,
				DueDate:       overdue.DueDate,
				TotalAmount:   order.TotalAmount,
				PaidAmount:    order.PaidAmount,
			})
		}
	}

	stats.UsersOwingCount = len(usersOwing)
	stats.ProductsOnInstallmentCount = len(productsOnInstallment)
	return stats
}

// planFor prefers the plan snapshotted on the order at checkout. Orders
// created before plans were snapshotted fall back to the bicycle's current
// plan; a bicycle deleted out from under its orders simply disables overdue
// tracking for them.
func planFor(order models.Order, bicycleByID map[int]models.Bicycle) models.InstallmentPlan {
	if plan, ok := order.Plan(); ok {
		return plan
	}
	bicycle, ok := bicycleByID[order.BicycleID]
	if !ok || bicycle.InstallmentDuration <= 0 {
		return models.InstallmentPlan{}
	}
	return models.InstallmentPlan{
		Duration: bicycle.InstallmentDuration,
		Interval: bicycle.InstallmentInterval,
	}
}

func customerName(userID int, userByID map[int]models.User) string {
	if user, ok := userByID[userID]; ok {
		return user.Name
	}
	return "Unknown"
}
