package analytics

import (
	"reflect"
	"testing"
	"time"

	"bikeshop-svc/models"
)

var (
	aggNow       = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	recentDate   = aggNow.Add(-time.Hour)
	sixtyDaysAgo = aggNow.Add(-60 * 24 * time.Hour)
)

func fixtureUsers() []models.User {
	return []models.User{
		{ID: 1, Name: "Martha Banda", Email: "martha@example.com", Role: models.RoleUser},
		{ID: 2, Name: "Joseph Phiri", Email: "joseph@example.com", Role: models.RoleUser},
	}
}

func fixtureBicycles() []models.Bicycle {
	return []models.Bicycle{
		{ID: 10, Name: "City Cruiser", Price: 1000},
		{ID: 11, Name: "Trail Blazer", Price: 3000, InstallmentAvailable: true, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly},
	}
}

func TestAggregate_FullyPaidOrder(t *testing.T) {
	orders := []models.Order{
		{ID: 100, UserID: 1, BicycleID: 10, Status: models.OrderStatusDelivered, PaymentType: models.PaymentTypeFull,
			TotalAmount: 1000, PaidAmount: 1000, OrderDate: sixtyDaysAgo},
	}

	stats := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)

	if stats.TotalRevenue != 1000 {
		t.Errorf("Expected revenue 1000, got %v", stats.TotalRevenue)
	}
	if stats.TotalOutstanding != 0 {
		t.Errorf("Expected outstanding 0, got %v", stats.TotalOutstanding)
	}
	if stats.OrderStatus.Paid != 1 || stats.OrderStatus.Partial != 0 || stats.OrderStatus.Unpaid != 0 {
		t.Errorf("Expected fully-paid bucket, got %+v", stats.OrderStatus)
	}
	if len(stats.OverdueOrders) != 0 {
		t.Errorf("Expected no overdue orders, got %+v", stats.OverdueOrders)
	}
	if stats.UsersOwingCount != 0 {
		t.Errorf("Expected no owing users, got %d", stats.UsersOwingCount)
	}
}

func TestAggregate_CancelledOrderPolicy(t *testing.T) {
	// Cancelled with 500 still owed: excluded from outstanding and owing
	// users, but its paid amount stays in revenue.
	orders := []models.Order{
		{ID: 101, UserID: 2, BicycleID: 11, Status: models.OrderStatusCancelled, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 2500, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly,
			OrderDate: sixtyDaysAgo},
	}

	stats := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)

	if stats.TotalRevenue != 2500 {
		t.Errorf("Expected revenue 2500, got %v", stats.TotalRevenue)
	}
	if stats.TotalOutstanding != 0 {
		t.Errorf("Expected cancelled order excluded from outstanding, got %v", stats.TotalOutstanding)
	}
	if stats.UsersOwingCount != 0 {
		t.Errorf("Expected cancelled order excluded from owing users, got %d", stats.UsersOwingCount)
	}
	if stats.ActiveInstallmentsCount != 0 {
		t.Errorf("Expected no active installments, got %d", stats.ActiveInstallmentsCount)
	}
	// Installment sums follow the revenue policy: cancelled orders included.
	if stats.TotalInstallmentRevenue != 2500 || stats.TotalInstallmentTotalValue != 3000 {
		t.Errorf("Expected installment sums 2500/3000, got %v/%v",
			stats.TotalInstallmentRevenue, stats.TotalInstallmentTotalValue)
	}
	// Status buckets ignore cancellation.
	if stats.OrderStatus.Partial != 1 {
		t.Errorf("Expected cancelled order in partial bucket, got %+v", stats.OrderStatus)
	}
	if len(stats.OverdueOrders) != 0 {
		t.Errorf("Expected cancelled order never overdue, got %+v", stats.OverdueOrders)
	}
}

func TestAggregate_OverdueEnrichment(t *testing.T) {
	// Monthly plan of 3x1000 opened 60 days ago with only 200 paid:
	// installment 1 (due at purchase) is short by 800.
	orders := []models.Order{
		{ID: 102, UserID: 2, BicycleID: 11, Status: models.OrderStatusProcessing, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 200, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly,
			OrderDate: sixtyDaysAgo},
	}

	stats := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)

	if len(stats.OverdueOrders) != 1 {
		t.Fatalf("Expected 1 overdue order, got %d", len(stats.OverdueOrders))
	}
	overdue := stats.OverdueOrders[0]
	if overdue.CustomerName != "Joseph Phiri" {
		t.Errorf("Expected customer name Joseph Phiri, got %s", overdue.CustomerName)
	}
	if overdue.AmountOverdue != 800 {
		t.Errorf("Expected amount overdue 800, got %v", overdue.AmountOverdue)
	}
	if !overdue.DueDate.Equal(sixtyDaysAgo) {
		t.Errorf("Expected due date %v, got %v", sixtyDaysAgo, overdue.DueDate)
	}
	if overdue.TotalAmount != 3000 || overdue.PaidAmount != 200 {
		t.Errorf("Expected totals 3000/200 on overdue record, got %v/%v", overdue.TotalAmount, overdue.PaidAmount)
	}
}

func TestAggregate_UnknownCustomerFallback(t *testing.T) {
	orders := []models.Order{
		{ID: 103, UserID: 99, BicycleID: 11, Status: models.OrderStatusPending, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 0, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly,
			OrderDate: sixtyDaysAgo},
	}

	stats := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)

	if len(stats.OverdueOrders) != 1 {
		t.Fatalf("Expected 1 overdue order, got %d", len(stats.OverdueOrders))
	}
	if stats.OverdueOrders[0].CustomerName != "Unknown" {
		t.Errorf("Expected Unknown customer fallback, got %s", stats.OverdueOrders[0].CustomerName)
	}
}

func TestAggregate_LegacyOrderFallsBackToBicyclePlan(t *testing.T) {
	// Orders created before plans were snapshotted carry no duration; the
	// bicycle's current plan drives overdue detection instead.
	orders := []models.Order{
		{ID: 104, UserID: 1, BicycleID: 11, Status: models.OrderStatusPending, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 0, OrderDate: sixtyDaysAgo},
	}

	stats := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)
	if len(stats.OverdueOrders) != 1 {
		t.Fatalf("Expected legacy order flagged via bicycle plan, got %d overdue", len(stats.OverdueOrders))
	}

	// A deleted bicycle disables overdue tracking rather than failing.
	stats = Aggregate(orders, nil, fixtureUsers(), aggNow)
	if len(stats.OverdueOrders) != 0 {
		t.Errorf("Expected missing bicycle to skip overdue tracking, got %+v", stats.OverdueOrders)
	}
}

func TestAggregate_PortfolioCounts(t *testing.T) {
	orders := []models.Order{
		// Active installment, behind schedule.
		{ID: 110, UserID: 1, BicycleID: 11, Status: models.OrderStatusPending, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 1000, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly,
			OrderDate: sixtyDaysAgo},
		// Same customer, second outstanding order: owing users still counts 1.
		{ID: 111, UserID: 1, BicycleID: 11, Status: models.OrderStatusPending, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 2900, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly,
			OrderDate: recentDate},
		// Unpaid full-payment order from another customer.
		{ID: 112, UserID: 2, BicycleID: 10, Status: models.OrderStatusPending, PaymentType: models.PaymentTypeFull,
			TotalAmount: 1000, PaidAmount: 0, OrderDate: recentDate},
	}

	stats := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)

	if stats.TotalOrders != 3 {
		t.Errorf("Expected 3 total orders, got %d", stats.TotalOrders)
	}
	if stats.TotalRevenue != 3900 {
		t.Errorf("Expected revenue 3900, got %v", stats.TotalRevenue)
	}
	if stats.TotalOutstanding != 3100 {
		t.Errorf("Expected outstanding 3100, got %v", stats.TotalOutstanding)
	}
	if stats.UsersOwingCount != 2 {
		t.Errorf("Expected 2 owing users, got %d", stats.UsersOwingCount)
	}
	if stats.ActiveInstallmentsCount != 2 {
		t.Errorf("Expected 2 active installments, got %d", stats.ActiveInstallmentsCount)
	}
	// Both installment orders are for the same bicycle.
	if stats.ProductsOnInstallmentCount != 1 {
		t.Errorf("Expected 1 product on installment, got %d", stats.ProductsOnInstallmentCount)
	}
	if stats.TotalInstallmentRevenue != 3900 || stats.TotalInstallmentTotalValue != 6000 {
		t.Errorf("Expected installment sums 3900/6000, got %v/%v",
			stats.TotalInstallmentRevenue, stats.TotalInstallmentTotalValue)
	}
	if stats.OrderStatus.Partial != 2 || stats.OrderStatus.Unpaid != 1 {
		t.Errorf("Expected 2 partial and 1 unpaid, got %+v", stats.OrderStatus)
	}
	// Only order 110 is behind its schedule.
	if len(stats.OverdueOrders) != 1 || stats.OverdueOrders[0].OrderID != 110 {
		t.Errorf("Expected only order 110 overdue, got %+v", stats.OverdueOrders)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	orders := []models.Order{
		{ID: 120, UserID: 1, BicycleID: 11, Status: models.OrderStatusPending, PaymentType: models.PaymentTypeInstallment,
			TotalAmount: 3000, PaidAmount: 500, InstallmentDuration: 3, InstallmentInterval: models.IntervalMonthly,
			OrderDate: sixtyDaysAgo},
		{ID: 121, UserID: 2, BicycleID: 10, Status: models.OrderStatusDelivered, PaymentType: models.PaymentTypeFull,
			TotalAmount: 1000, PaidAmount: 1000, OrderDate: recentDate},
	}

	first := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)
	second := Aggregate(orders, fixtureBicycles(), fixtureUsers(), aggNow)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical stats on repeated aggregation:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
