package service

import (
	"context"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
)

// StoreCatalog serves catalog lookups from the products table.
type StoreCatalog struct {
	store *store.Store
}

// NewCatalog creates a catalog backed by the database
func NewCatalog(s *store.Store) *StoreCatalog {
	return &StoreCatalog{store: s}
}

// LookupProduct resolves a SKU to its product record
func (c *StoreCatalog) LookupProduct(ctx context.Context, sku string) (*models.Product, error) {
	return c.store.GetProductBySKU(ctx, sku)
}

// StoreVendorDirectory serves vendor lookups from the vendors table.
type StoreVendorDirectory struct {
	store *store.Store
}

// NewVendorDirectory creates a vendor directory backed by the database
func NewVendorDirectory(s *store.Store) *StoreVendorDirectory {
	return &StoreVendorDirectory{store: s}
}

// GetVendor resolves a vendor by name
func (d *StoreVendorDirectory) GetVendor(ctx context.Context, name string) (*models.Vendor, error) {
	return d.store.GetVendorByName(ctx, name)
}
