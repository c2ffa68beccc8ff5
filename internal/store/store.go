package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("product not found: %s", sku)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to load product %s", sku)
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY sku")
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to list products")
	}
	return products, nil
}

// SearchProducts finds products whose SKU or name contains the term,
// case-insensitively. A blank term matches nothing.
func (s *Store) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Product{}, nil
	}

	var products []models.Product
	pattern := "%" + term + "%"
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE sku ILIKE $1 OR name ILIKE $1 ORDER BY sku", pattern)
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to search products")
	}
	return products, nil
}

// DeductStock atomically decrements stock for a SKU. The decrement is guarded
// in the UPDATE itself, so two concurrent deductions can never race the
// quantity negative.
func (s *Store) DeductStock(ctx context.Context, sku string, quantity int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, last_updated = NOW()
		WHERE sku = $1 AND stock_quantity >= $2
		RETURNING *`, sku, quantity)
	if err == sql.ErrNoRows {
		// Distinguish an unknown SKU from an insufficient balance.
		current, gerr := s.GetProductBySKU(ctx, sku)
		if gerr != nil {
			return nil, gerr
		}
		return nil, models.NewInsufficientStock("insufficient stock for %s: available=%d, requested=%d",
			sku, current.StockQuantity, quantity)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to deduct stock for %s", sku)
	}
	return &product, nil
}

// IncreaseStock atomically increments stock for a SKU.
func (s *Store) IncreaseStock(ctx context.Context, sku string, quantity int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, last_updated = NOW()
		WHERE sku = $1
		RETURNING *`, sku, quantity)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("product not found: %s", sku)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to increase stock for %s", sku)
	}
	return &product, nil
}

// SetStockQuantity overrides the stock quantity for a SKU (manual correction).
func (s *Store) SetStockQuantity(ctx context.Context, sku string, quantity int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products
		SET stock_quantity = $2, last_updated = NOW()
		WHERE sku = $1
		RETURNING *`, sku, quantity)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("product not found: %s", sku)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to set stock for %s", sku)
	}
	return &product, nil
}

// GetVendorByName retrieves a vendor directory entry
func (s *Store) GetVendorByName(ctx context.Context, name string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.db.GetContext(ctx, &vendor, "SELECT * FROM vendors WHERE name = $1", name)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("vendor not found: %s", name)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to load vendor %s", name)
	}
	return &vendor, nil
}
