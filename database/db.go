package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "bikeshopdb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables if they don't exist
	createTablesQuery := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS categories (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bicycles (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price DECIMAL(12, 2) NOT NULL,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		stock INTEGER NOT NULL DEFAULT 0,
		features TEXT[],
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		installment_available BOOLEAN NOT NULL DEFAULT FALSE,
		installment_duration INTEGER NOT NULL DEFAULT 0,
		installment_interval VARCHAR(10) NOT NULL DEFAULT 'monthly',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		bicycle_id INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		payment_type VARCHAR(20) NOT NULL,
		total_amount DECIMAL(12, 2) NOT NULL,
		paid_amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
		installment_duration INTEGER NOT NULL DEFAULT 0,
		installment_interval VARCHAR(10) NOT NULL DEFAULT 'daily',
		order_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL,
		amount DECIMAL(12, 2) NOT NULL,
		payment_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		source VARCHAR(255) NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'completed',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bicycles_category ON bicycles(category_id);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_bicycle ON orders(bicycle_id);
	CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
	`

	if _, err := db.Exec(createTablesQuery); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
