package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"bikeshop-svc/analytics"
	"bikeshop-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardHandler(db *sql.DB, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{db: db, logger: logger, now: time.Now}
}

// GetDashboardStats assembles the admin portfolio view. It loads the full
// order book with its bicycles and customers and folds them into one stats
// snapshot, including overdue installment detection as of now.
func (h *DashboardHandler) GetDashboardStats(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "GetDashboardStats")
	defer span.End()

	rows, err := h.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch orders for dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			h.logger.Error("Failed to scan order", zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	rows.Close()

	rows, err = h.db.QueryContext(ctx,
		"SELECT id, name, price, installment_available, installment_duration, installment_interval FROM bicycles")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch bicycles for dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	var bicycles []models.Bicycle
	for rows.Next() {
		var b models.Bicycle
		if err := rows.Scan(&b.ID, &b.Name, &b.Price,
			&b.InstallmentAvailable, &b.InstallmentDuration, &b.InstallmentInterval); err != nil {
			h.logger.Error("Failed to scan bicycle", zap.Error(err))
			continue
		}
		bicycles = append(bicycles, b)
	}
	rows.Close()

	rows, err = h.db.QueryContext(ctx, "SELECT id, name FROM users")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch users for dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			h.logger.Error("Failed to scan user", zap.Error(err))
			continue
		}
		users = append(users, u)
	}
	rows.Close()

	stats := analytics.Aggregate(orders, bicycles, users, h.now())

	span.SetAttributes(
		attribute.Int("dashboard.total_orders", stats.TotalOrders),
		attribute.Int("dashboard.overdue_orders", len(stats.OverdueOrders)),
	)
	c.JSON(http.StatusOK, stats)
}
