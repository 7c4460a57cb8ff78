package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bikeshop-svc/cache"
	"bikeshop-svc/circuitbreaker"
	"bikeshop-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const bicycleColumns = "id, name, description, price, category_id, stock, features, is_featured, installment_available, installment_duration, installment_interval, created_at, updated_at"

type BicycleHandler struct {
	db             *sql.DB
	redisClient    *redis.Client
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewBicycleHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *BicycleHandler {
	return &BicycleHandler{
		db:             db,
		redisClient:    redisClient,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
	}
}

func scanBicycle(row interface{ Scan(...any) error }, b *models.Bicycle) error {
	return row.Scan(
		&b.ID, &b.Name, &b.Description, &b.Price, &b.CategoryID, &b.Stock,
		pq.Array(&b.Features), &b.IsFeatured, &b.InstallmentAvailable,
		&b.InstallmentDuration, &b.InstallmentInterval, &b.CreatedAt, &b.UpdatedAt,
	)
}

func (h *BicycleHandler) GetBicycles(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "GetBicycles")
	defer span.End()

	query := "SELECT " + bicycleColumns + " FROM bicycles"
	args := []any{}
	if categoryID := c.Query("category_id"); categoryID != "" {
		query += " WHERE category_id = $1"
		args = append(args, categoryID)
	}
	query += " ORDER BY id"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch bicycles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	var bicycles []models.Bicycle
	for rows.Next() {
		var b models.Bicycle
		if err := scanBicycle(rows, &b); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan bicycle", zap.Error(err))
			continue
		}
		bicycles = append(bicycles, b)
	}

	span.SetAttributes(attribute.Int("bicycles.count", len(bicycles)))
	c.JSON(http.StatusOK, bicycles)
}

// GetFeaturedBicycles returns up to four featured models for the storefront
// landing page.
func (h *BicycleHandler) GetFeaturedBicycles(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "GetFeaturedBicycles")
	defer span.End()

	rows, err := h.db.QueryContext(ctx,
		"SELECT "+bicycleColumns+" FROM bicycles WHERE is_featured = TRUE ORDER BY id LIMIT 4")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch featured bicycles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	var bicycles []models.Bicycle
	for rows.Next() {
		var b models.Bicycle
		if err := scanBicycle(rows, &b); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan bicycle", zap.Error(err))
			continue
		}
		bicycles = append(bicycles, b)
	}

	c.JSON(http.StatusOK, bicycles)
}

func (h *BicycleHandler) GetBicycle(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "GetBicycle")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("bicycle.id", id))

	// Try to get from cache first
	if h.redisClient != nil {
		cachedData, err := cache.GetBicycle(ctx, h.redisClient, id)
		if err == nil {
			var bicycle models.Bicycle
			if err := json.Unmarshal(cachedData, &bicycle); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				h.logger.Info("Cache hit", zap.String("bicycle_id", id))
				c.JSON(http.StatusOK, bicycle)
				return
			}
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Get from database with circuit breaker
	var bicycle models.Bicycle
	dbErr := h.circuitBreaker.Execute(ctx, func() error {
		return scanBicycle(h.db.QueryRowContext(ctx,
			"SELECT "+bicycleColumns+" FROM bicycles WHERE id = $1", id), &bicycle)
	})

	if dbErr != nil {
		if dbErr == circuitbreaker.ErrCircuitOpen {
			span.SetAttributes(attribute.String("circuit.state", "open"))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			return
		}
		if dbErr == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bicycle not found"})
			return
		}
		span.RecordError(dbErr)
		h.logger.Error("Failed to fetch bicycle", zap.Error(dbErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Cache the bicycle for 5 minutes
	if h.redisClient != nil {
		cache.SetBicycle(ctx, h.redisClient, id, bicycle, 5*time.Minute)
	}

	c.JSON(http.StatusOK, bicycle)
}

func (h *BicycleHandler) CreateBicycle(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "CreateBicycle")
	defer span.End()

	var req models.CreateBicycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Financing offered without a duration would make overdue tracking
	// impossible for every order of this bicycle.
	if req.InstallmentAvailable && req.InstallmentDuration <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "installment_duration must be positive when installment_available is set"})
		return
	}
	if req.InstallmentInterval == "" {
		req.InstallmentInterval = models.IntervalMonthly
	}

	var bicycle models.Bicycle
	err := scanBicycle(h.db.QueryRowContext(ctx,
		`INSERT INTO bicycles (name, description, price, category_id, stock, features, is_featured, installment_available, installment_duration, installment_interval)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+bicycleColumns,
		req.Name, req.Description, req.Price, req.CategoryID, req.Stock, pq.Array(req.Features),
		req.IsFeatured, req.InstallmentAvailable, req.InstallmentDuration, req.InstallmentInterval,
	), &bicycle)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create bicycle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("bicycle.id", bicycle.ID))
	h.logger.Info("Bicycle created", zap.Int("bicycle_id", bicycle.ID))
	c.JSON(http.StatusCreated, bicycle)
}

func (h *BicycleHandler) UpdateBicycle(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "UpdateBicycle")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("bicycle.id", id))

	var req models.UpdateBicycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.InstallmentAvailable != nil && *req.InstallmentAvailable &&
		req.InstallmentDuration != nil && *req.InstallmentDuration <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "installment_duration must be positive when installment_available is set"})
		return
	}

	// Build update query dynamically
	query := "UPDATE bicycles SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}
	argPos := 1

	addArg := func(column string, value any) {
		query += ", " + column + " = $" + strconv.Itoa(argPos)
		args = append(args, value)
		argPos++
	}

	if req.Name != "" {
		addArg("name", req.Name)
	}
	if req.Description != nil {
		addArg("description", *req.Description)
	}
	if req.Price > 0 {
		addArg("price", req.Price)
	}
	if req.Stock != nil {
		addArg("stock", *req.Stock)
	}
	if req.Features != nil {
		addArg("features", pq.Array(req.Features))
	}
	if req.IsFeatured != nil {
		addArg("is_featured", *req.IsFeatured)
	}
	if req.InstallmentAvailable != nil {
		addArg("installment_available", *req.InstallmentAvailable)
	}
	if req.InstallmentDuration != nil {
		addArg("installment_duration", *req.InstallmentDuration)
	}
	if req.InstallmentInterval != nil {
		addArg("installment_interval", *req.InstallmentInterval)
	}

	query += " WHERE id = $" + strconv.Itoa(argPos) + " RETURNING " + bicycleColumns
	args = append(args, id)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	var bicycle models.Bicycle
	err = scanBicycle(tx.QueryRowContext(ctx, query, args...), &bicycle)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bicycle not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update bicycle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// The invariant holds on the resulting row, not on the request: a patch
	// touching only installment_available can still combine with a stored
	// zero duration.
	if bicycle.InstallmentAvailable && bicycle.InstallmentDuration <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "installment_duration must be positive when installment_available is set"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit bicycle update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Invalidate cache
	if h.redisClient != nil {
		cache.DeleteBicycle(ctx, h.redisClient, id)
	}

	h.logger.Info("Bicycle updated", zap.String("bicycle_id", id))
	c.JSON(http.StatusOK, bicycle)
}

// DeleteBicycle removes a bicycle along with its orders and their payments,
// mirroring the admin back-office contract that a retired product takes its
// purchase history with it.
func (h *BicycleHandler) DeleteBicycle(c *gin.Context) {
	ctx, span := otel.Tracer("bikeshop-svc").Start(c.Request.Context(), "DeleteBicycle")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("bicycle.id", id))

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM payments WHERE order_id IN (SELECT id FROM orders WHERE bicycle_id = $1)", id); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete payments for bicycle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE bicycle_id = $1", id); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete orders for bicycle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM bicycles WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete bicycle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bicycle not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit bicycle deletion", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.redisClient != nil {
		cache.DeleteBicycle(ctx, h.redisClient, id)
	}

	h.logger.Info("Bicycle deleted", zap.String("bicycle_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Bicycle deleted"})
}
