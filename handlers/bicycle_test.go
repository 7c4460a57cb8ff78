package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"bikeshop-svc/circuitbreaker"
	"bikeshop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupBicycleTest(t *testing.T) (*BicycleHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	// Redis is nil here, so every read goes straight to the database.
	handler := &BicycleHandler{
		db:             db,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/bicycles/:id", handler.GetBicycle)
	router.POST("/bicycles", handler.CreateBicycle)
	router.PUT("/bicycles/:id", handler.UpdateBicycle)

	return handler, mock, router
}

func bicycleRow(id int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "price", "category_id", "stock", "features",
		"is_featured", "installment_available", "installment_duration", "installment_interval",
		"created_at", "updated_at",
	}).AddRow(id, "Trail 29er", "Hardtail trail bike", 1200.0, 1, 5,
		pq.Array([]string{"disc brakes", "tubeless"}), true, true, 6, "monthly", now, now)
}

func TestBicycleHandler_GetBicycle_Success(t *testing.T) {
	handler, mock, router := setupBicycleTest(t)
	defer handler.db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + bicycleColumns + " FROM bicycles WHERE id = $1")).
		WithArgs("1").
		WillReturnRows(bicycleRow(1))

	req := httptest.NewRequest(http.MethodGet, "/bicycles/1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestBicycleHandler_GetBicycle_NotFound(t *testing.T) {
	handler, mock, router := setupBicycleTest(t)
	defer handler.db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + bicycleColumns + " FROM bicycles WHERE id = $1")).
		WithArgs("999").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/bicycles/999", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

// A patch enabling financing must be rejected when the stored row has no
// duration, even though the request itself never mentions one.
func TestBicycleHandler_UpdateBicycle_FinancingWithoutStoredDuration(t *testing.T) {
	handler, mock, router := setupBicycleTest(t)
	defer handler.db.Close()

	now := time.Now()
	available := true

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE bicycles SET").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "price", "category_id", "stock", "features",
			"is_featured", "installment_available", "installment_duration", "installment_interval",
			"created_at", "updated_at",
		}).AddRow(1, "Trail 29er", "Hardtail trail bike", 1200.0, 1, 5,
			pq.Array([]string{}), false, true, 0, "monthly", now, now))
	mock.ExpectRollback()

	w := putJSON(t, router, "/bicycles/1", models.UpdateBicycleRequest{
		InstallmentAvailable: &available,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestBicycleHandler_UpdateBicycle_FinancingWithDurationAccepted(t *testing.T) {
	handler, mock, router := setupBicycleTest(t)
	defer handler.db.Close()

	available := true
	duration := 6

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE bicycles SET").
		WillReturnRows(bicycleRow(1))
	mock.ExpectCommit()

	w := putJSON(t, router, "/bicycles/1", models.UpdateBicycleRequest{
		InstallmentAvailable: &available,
		InstallmentDuration:  &duration,
	})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// Offering financing with no duration would produce orders whose schedule can
// never be computed.
func TestBicycleHandler_CreateBicycle_FinancingNeedsDuration(t *testing.T) {
	handler, _, router := setupBicycleTest(t)
	defer handler.db.Close()

	w := postJSON(t, router, "/bicycles", models.CreateBicycleRequest{
		Name:                 "Trail 29er",
		Price:                1200,
		CategoryID:           1,
		Stock:                5,
		InstallmentAvailable: true,
		InstallmentDuration:  0,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
}
