package handlers

import (
	"database/sql"
	"errors"
	"net/http"
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

const paymentColumns = "id, order_id, amount, payment_date, source, note, status, created_at"

type PaymentHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewPaymentHandler(db *sql.DB, producer sarama.SyncProducer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{db: db, producer: producer, logger: logger}
}

func scanPayment(row interface{ Scan(...any) error }, p *models.Payment) error {
	return row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaymentDate, &p.Source, &p.Note, &p.Status, &p.CreatedAt)
}

// RecordPayment records a processor-confirmed installment payment against an
// order. The order row is locked, the payment validated against the remaining
// balance, and the payment insert plus balance update commit together or not
// at all.
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.recordPayment(c, req.Amount, req.TransactionID, "", "processor", false)
}

// RecordManualPayment lets an administrator enter a payment taken outside the
// processor, such as cash in the shop. The payment is tagged MANUAL_ENTRY so
// reconciliation can tell the two apart.
func (h *PaymentHandler) RecordManualPayment(c *gin.Context) {
	var req models.ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.recordPayment(c, req.Amount, models.ManualEntrySource, req.Note, "manual", true)
}

func (h *PaymentHandler) recordPayment(c *gin.Context, amount float64, source, note, metricSource string, adminOnly bool) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "RecordPayment")
	defer span.End()

	userID, role, ok := requestUser(c)
	if !ok {
		return
	}
	if adminOnly && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	orderID := c.Param("id")
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Float64("payment.amount", amount),
		attribute.String("payment.source_type", metricSource),
	)

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
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID), &order)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch order for payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if order.UserID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	updated, payment, err := installment.ApplyPayment(order, amount, source, time.Now())
	if err != nil {
		var overpay *installment.OverpaymentError
		if errors.As(err, &overpay) {
			middleware.RecordOverpaymentRejected()
			h.logger.Warn("Overpayment rejected",
				zap.Int("order_id", order.ID),
				zap.Float64("amount", amount),
				zap.Float64("remaining", overpay.Remaining),
			)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment.Note = note

	err = scanPayment(tx.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, amount, source, note, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING `+paymentColumns,
		order.ID, payment.Amount, payment.Source, payment.Note, payment.Status), &payment)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to insert payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET paid_amount = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		updated.PaidAmount, order.ID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update order balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordPaymentRecorded(metricSource)

	event := models.PaymentEvent{
		PaymentID: payment.ID,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    payment.Amount,
		Source:    payment.Source,
		EventType: "payment_recorded",
	}
	if err := kafka.PublishEvent(ctx, h.producer, eventsTopic(), event, h.logger); err != nil {
		h.logger.Error("Failed to publish payment event", zap.Error(err))
	}

	h.logger.Info("Payment recorded",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("payment_id", payment.ID),
		zap.Int("order_id", order.ID),
		zap.Float64("amount", payment.Amount),
		zap.Float64("paid_amount", updated.PaidAmount),
	)
	c.JSON(http.StatusCreated, gin.H{
		"payment":          payment,
		"paid_amount":      updated.PaidAmount,
		"remaining_amount": updated.Remaining(),
	})
}

func (h *PaymentHandler) ListPaymentsByOrder(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "ListPaymentsByOrder")
	defer span.End()

	userID, role, ok := requestUser(c)
	if !ok {
		return
	}
	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order.id", orderID))

	var ownerID int
	err := h.db.QueryRowContext(ctx, "SELECT user_id FROM orders WHERE id = $1", orderID).Scan(&ownerID)
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
	if ownerID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	payments, err := h.queryPayments(c,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1 ORDER BY payment_date DESC", orderID)
	if err != nil {
		span.RecordError(err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) ListPaymentsByUser(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "ListPaymentsByUser")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	payments, err := h.queryPayments(c,
		`SELECT p.id, p.order_id, p.amount, p.payment_date, p.source, p.note, p.status, p.created_at
		 FROM payments p JOIN orders o ON p.order_id = o.id
		 WHERE o.user_id = $1 ORDER BY p.payment_date DESC`, c.Param("userId"))
	if err != nil {
		span.RecordError(err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) queryPayments(c *gin.Context, query string, args ...any) ([]models.Payment, error) {
	rows, err := h.db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.Error("Failed to fetch payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			h.logger.Error("Failed to scan payment", zap.Error(err))
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}
