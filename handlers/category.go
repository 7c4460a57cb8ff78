package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"bikeshop-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CategoryHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCategoryHandler(db *sql.DB, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{db: db, logger: logger}
}

func (h *CategoryHandler) GetCategories(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT id, name, description, created_at FROM categories ORDER BY name")
	if err != nil {
		h.logger.Error("Failed to fetch categories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt); err != nil {
			h.logger.Error("Failed to scan category", zap.Error(err))
			continue
		}
		categories = append(categories, cat)
	}

	c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var category models.Category
	err := h.db.QueryRowContext(c.Request.Context(),
		"INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id, name, description, created_at",
		req.Name, req.Description,
	).Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt)
	if err != nil {
		h.logger.Error("Failed to create category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Category created", zap.Int("category_id", category.ID))
	c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id := c.Param("id")

	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := "UPDATE categories SET id = id"
	args := []any{}
	argPos := 1

	if req.Name != "" {
		query += ", name = $" + strconv.Itoa(argPos)
		args = append(args, req.Name)
		argPos++
	}
	if req.Description != nil {
		query += ", description = $" + strconv.Itoa(argPos)
		args = append(args, *req.Description)
		argPos++
	}

	query += " WHERE id = $" + strconv.Itoa(argPos) + " RETURNING id, name, description, created_at"
	args = append(args, id)

	var category models.Category
	err := h.db.QueryRowContext(c.Request.Context(), query, args...).
		Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		h.logger.Error("Failed to update category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Category updated", zap.String("category_id", id))
	c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category and everything under it. Bicycles in the
// category go too, along with their orders and payments.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payments WHERE order_id IN (
			SELECT o.id FROM orders o JOIN bicycles b ON o.bicycle_id = b.id WHERE b.category_id = $1)`, id); err != nil {
		h.logger.Error("Failed to delete payments for category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM orders WHERE bicycle_id IN (SELECT id FROM bicycles WHERE category_id = $1)", id); err != nil {
		h.logger.Error("Failed to delete orders for category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM bicycles WHERE category_id = $1", id); err != nil {
		h.logger.Error("Failed to delete bicycles for category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		h.logger.Error("Failed to delete category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit category deletion", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Category deleted", zap.String("category_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
