package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"bikeshop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupCategoryTest(t *testing.T) (*CategoryHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewCategoryHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/categories", handler.GetCategories)
	router.PUT("/categories/:id", handler.UpdateCategory)

	return handler, mock, router
}

func putJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCategoryHandler_UpdateCategory_Success(t *testing.T) {
	handler, mock, router := setupCategoryTest(t)
	defer handler.db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE categories SET id = id, name = $1, description = $2 WHERE id = $3 RETURNING id, name, description, created_at")).
		WithArgs("Gravel", "Drop-bar bikes for mixed terrain", "3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(3, "Gravel", "Drop-bar bikes for mixed terrain", time.Now()))

	desc := "Drop-bar bikes for mixed terrain"
	w := putJSON(t, router, "/categories/3", models.UpdateCategoryRequest{
		Name:        "Gravel",
		Description: &desc,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var category models.Category
	if err := json.Unmarshal(w.Body.Bytes(), &category); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if category.Name != "Gravel" {
		t.Errorf("Expected name Gravel, got %q", category.Name)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// A name-only patch must leave the description untouched.
func TestCategoryHandler_UpdateCategory_PartialPatch(t *testing.T) {
	handler, mock, router := setupCategoryTest(t)
	defer handler.db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE categories SET id = id, name = $1 WHERE id = $2 RETURNING id, name, description, created_at")).
		WithArgs("Mountain", "3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(3, "Mountain", "Knobby tyres", time.Now()))

	w := putJSON(t, router, "/categories/3", models.UpdateCategoryRequest{Name: "Mountain"})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestCategoryHandler_UpdateCategory_NotFound(t *testing.T) {
	handler, mock, router := setupCategoryTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("UPDATE categories SET").
		WillReturnError(sql.ErrNoRows)

	w := putJSON(t, router, "/categories/99", models.UpdateCategoryRequest{Name: "Gravel"})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
