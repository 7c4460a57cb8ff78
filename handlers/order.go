package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"bikeshop-svc/installment"
	"bikeshop-svc/kafka"
	"bikeshop-svc/middleware"
	"bikeshop-svc/models"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const orderColumns = "id, user_id, bicycle_id, status, payment_type, total_amount, paid_amount, installment_duration, installment_interval, order_date, created_at, updated_at"

func eventsTopic() string {
	return getEnv("KAFKA_TOPIC", "shop_events")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type OrderHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewOrderHandler(db *sql.DB, producer sarama.SyncProducer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{db: db, producer: producer, logger: logger}
}

func scanOrder(row interface{ Scan(...any) error }, o *models.Order) error {
	return row.Scan(
		&o.ID, &o.UserID, &o.BicycleID, &o.Status, &o.PaymentType,
		&o.TotalAmount, &o.PaidAmount, &o.InstallmentDuration, &o.InstallmentInterval,
		&o.OrderDate, &o.CreatedAt, &o.UpdatedAt,
	)
}

// requestUser pulls the authenticated user's id and role out of the gin
// context set by the auth middleware.
func requestUser(c *gin.Context) (int, string, bool) {
	userIDVal, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, "", false
	}
	roleVal, _ := c.Get(middleware.ContextRoleKey)
	role, _ := roleVal.(string)
	return userIDVal.(int), role, true
}

// CreateOrder places an order for a single bicycle. Stock is checked and
// decremented inside one transaction, the price and any installment plan are
// read server side from the bicycle row, and the plan in force at checkout is
// copied onto the order.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	userID, _, ok := requestUser(c)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.InitialPaymentAmount > 0 && req.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required when initial_payment_amount is set"})
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("bicycle.id", req.BicycleID),
		attribute.String("payment.type", string(req.PaymentType)),
	)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	var bicycle models.Bicycle
	err = tx.QueryRowContext(ctx,
		`SELECT id, price, stock, installment_available, installment_duration, installment_interval
		 FROM bicycles WHERE id = $1 FOR UPDATE`, req.BicycleID,
	).Scan(&bicycle.ID, &bicycle.Price, &bicycle.Stock,
		&bicycle.InstallmentAvailable, &bicycle.InstallmentDuration, &bicycle.InstallmentInterval)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bicycle not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch bicycle for order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if bicycle.Stock < 1 {
		c.JSON(http.StatusConflict, gin.H{"error": "Bicycle out of stock"})
		return
	}

	// The bicycle's price is authoritative. Clients never send a total.
	totalAmount := bicycle.Price

	var plan models.InstallmentPlan
	if req.PaymentType == models.PaymentTypeInstallment {
		var offered bool
		plan, offered = bicycle.Plan()
		if !offered {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Installment payment is not available for this bicycle"})
			return
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE bicycles SET stock = stock - 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1", bicycle.ID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to decrement stock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	now := time.Now()
	order := models.Order{
		UserID:              userID,
		BicycleID:           bicycle.ID,
		Status:              models.OrderStatusPending,
		PaymentType:         req.PaymentType,
		TotalAmount:         totalAmount,
		InstallmentDuration: plan.Duration,
		InstallmentInterval: plan.Interval,
		OrderDate:           now,
	}

	var initialPayment *models.Payment
	if req.InitialPaymentAmount > 0 {
		updated, payment, err := installment.ApplyPayment(order, req.InitialPaymentAmount, req.TransactionID, now)
		if err != nil {
			var overpay *installment.OverpaymentError
			if errors.As(err, &overpay) {
				middleware.RecordOverpaymentRejected()
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order = updated
		initialPayment = &payment
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, bicycle_id, status, payment_type, total_amount, paid_amount, installment_duration, installment_interval, order_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+orderColumns,
		order.UserID, order.BicycleID, order.Status, order.PaymentType,
		order.TotalAmount, order.PaidAmount, order.InstallmentDuration, order.InstallmentInterval, order.OrderDate,
	).Scan(
		&order.ID, &order.UserID, &order.BicycleID, &order.Status, &order.PaymentType,
		&order.TotalAmount, &order.PaidAmount, &order.InstallmentDuration, &order.InstallmentInterval,
		&order.OrderDate, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if initialPayment != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payments (order_id, amount, payment_date, source, status)
			 VALUES ($1, $2, $3, $4, $5)`,
			order.ID, initialPayment.Amount, initialPayment.PaymentDate,
			initialPayment.Source, initialPayment.Status); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to record initial payment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		middleware.RecordPaymentRecorded("processor")
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", order.ID))

	event := models.OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		BicycleID:   order.BicycleID,
		Status:      order.Status,
		PaymentType: order.PaymentType,
		TotalAmount: order.TotalAmount,
		PaidAmount:  order.PaidAmount,
		EventType:   "order_created",
	}
	if err := kafka.PublishEvent(ctx, h.producer, eventsTopic(), event, h.logger); err != nil {
		h.logger.Error("Failed to publish order created event", zap.Error(err))
	}

	h.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", order.ID),
		zap.Int("user_id", order.UserID),
		zap.Float64("total_amount", order.TotalAmount),
	)
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	userID, role, ok := requestUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	var order models.Order
	err := scanOrder(h.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id), &order)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if order.UserID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "ListMyOrders")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, _, ok := requestUser(c)
	if !ok {
		return
	}

	orders, err := h.queryOrders(c, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY order_date DESC", userID)
	if err != nil {
		span.RecordError(err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListAllOrders(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "ListAllOrders")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	orders, err := h.queryOrders(c, "SELECT "+orderColumns+" FROM orders ORDER BY order_date DESC")
	if err != nil {
		span.RecordError(err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListOrdersByUser(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "ListOrdersByUser")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	orders, err := h.queryOrders(c, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY order_date DESC", c.Param("userId"))
	if err != nil {
		span.RecordError(err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// queryOrders runs a list query and writes the error response itself on
// failure, returning a non-nil error so callers can bail out.
func (h *OrderHandler) queryOrders(c *gin.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := h.db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.Error("Failed to fetch orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			h.logger.Error("Failed to scan order", zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var order models.Order
	err := scanOrder(h.db.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING `+orderColumns,
		req.Status, id), &order)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Order status updated",
		zap.Int("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	c.JSON(http.StatusOK, order)
}

// CancelOrder cancels a pending order and restores the bicycle's stock.
// Payments already made stay on the ledger; cancellation only stops the
// schedule, it does not refund.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "CancelOrder")
	defer span.End()

	userID, role, ok := requestUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	var order models.Order
	err = scanOrder(tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id), &order)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch order for cancellation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if order.UserID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	if order.Status != models.OrderStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Only pending orders can be cancelled"})
		return
	}

	err = scanOrder(tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING `+orderColumns,
		models.OrderStatusCancelled, order.ID), &order)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to cancel order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE bicycles SET stock = stock + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1", order.BicycleID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to restore stock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit cancellation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	event := models.OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		BicycleID:   order.BicycleID,
		Status:      order.Status,
		PaymentType: order.PaymentType,
		TotalAmount: order.TotalAmount,
		PaidAmount:  order.PaidAmount,
		EventType:   "order_cancelled",
	}
	if err := kafka.PublishEvent(ctx, h.producer, eventsTopic(), event, h.logger); err != nil {
		h.logger.Error("Failed to publish order cancelled event", zap.Error(err))
	}

	h.logger.Info("Order cancelled",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", order.ID),
	)
	c.JSON(http.StatusOK, order)
}
