package service

import (
	"context"
	"errors"

	"procurement-service/internal/models"
	"procurement-service/internal/redisclient"
	"procurement-service/internal/util"

	"go.uber.org/zap"
)

// ProductStore is the persistence surface the stock ledger needs.
type ProductStore interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	DeductStock(ctx context.Context, sku string, quantity int) (*models.Product, error)
	IncreaseStock(ctx context.Context, sku string, quantity int) (*models.Product, error)
	SetStockQuantity(ctx context.Context, sku string, quantity int) (*models.Product, error)
}

// StockCache mirrors per-SKU quantities for fast reads. The database stays
// authoritative; cache failures degrade to DB reads.
type StockCache interface {
	SetStock(ctx context.Context, sku string, quantity int) error
	GetStock(ctx context.Context, sku string) (int, error)
	DeductStock(ctx context.Context, sku string, quantity int) (int, error)
	IncreaseStock(ctx context.Context, sku string, quantity int) (int, error)
}

// StockEvents publishes ledger adjustments for downstream consumers.
type StockEvents interface {
	PublishStockAdjusted(ctx context.Context, sku string, change, newQuantity, reorderLevel int, reason string) error
}

// StockLedger is the subsystem of record for per-SKU quantity on hand. Every
// mutation is a single atomic read-modify-write against the product row.
type StockLedger struct {
	products ProductStore
	cache    StockCache
	events   StockEvents
	logger   *zap.Logger
}

// NewStockLedger creates a new stock ledger. cache and events may be nil.
func NewStockLedger(products ProductStore, cache StockCache, events StockEvents) *StockLedger {
	return &StockLedger{
		products: products,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// GetStock returns the quantity on hand for a SKU.
func (l *StockLedger) GetStock(ctx context.Context, sku string) (int, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.GetStock")
	defer span.End()

	if l.cache != nil {
		qty, err := l.cache.GetStock(ctx, sku)
		if err == nil {
			return qty, nil
		}
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			l.logger.Warn("Stock cache read failed, falling back to DB",
				zap.String("sku", sku), zap.Error(err))
		}
	}

	product, err := l.products.GetProductBySKU(ctx, sku)
	if err != nil {
		return 0, err
	}
	l.cacheSet(ctx, sku, product.StockQuantity)
	return product.StockQuantity, nil
}

// HasSufficientStock reports whether at least quantity units are on hand.
// It fails closed: an unknown SKU reads as insufficient.
func (l *StockLedger) HasSufficientStock(ctx context.Context, sku string, quantity int) (bool, error) {
	qty, err := l.GetStock(ctx, sku)
	if err != nil {
		if models.IsKind(err, models.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return qty >= quantity, nil
}

// Deduct atomically removes quantity units from a SKU's stock. The deduction
// either applies in full or fails with no effect.
func (l *StockLedger) Deduct(ctx context.Context, sku string, quantity int, reason string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.Deduct")
	defer span.End()

	if quantity <= 0 {
		return nil, models.NewInvalidQuantity("deduction quantity must be positive, got %d", quantity)
	}

	product, err := l.products.DeductStock(ctx, sku, quantity)
	if err != nil {
		if models.IsKind(err, models.KindInsufficientStock) {
			util.StockDeductionsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.StockDeductionsFailedTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	l.cacheAdjust(ctx, sku, -quantity, product.StockQuantity)
	l.publishAdjusted(ctx, product, -quantity, reason)
	return product, nil
}

// Increase atomically adds quantity units to a SKU's stock. Unknown SKUs
// fail with NOT_FOUND rather than being silently skipped.
func (l *StockLedger) Increase(ctx context.Context, sku string, quantity int, reason string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.Increase")
	defer span.End()

	if quantity <= 0 {
		return nil, models.NewInvalidQuantity("increase quantity must be positive, got %d", quantity)
	}

	product, err := l.products.IncreaseStock(ctx, sku, quantity)
	if err != nil {
		return nil, err
	}

	l.cacheAdjust(ctx, sku, quantity, product.StockQuantity)
	l.publishAdjusted(ctx, product, quantity, reason)
	return product, nil
}

// SetQuantity overrides a SKU's stock quantity. Manual correction path.
func (l *StockLedger) SetQuantity(ctx context.Context, sku string, quantity int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.SetQuantity")
	defer span.End()

	if quantity < 0 {
		return nil, models.NewInvalidQuantity("stock quantity cannot be negative, got %d", quantity)
	}

	before, err := l.products.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	product, err := l.products.SetStockQuantity(ctx, sku, quantity)
	if err != nil {
		return nil, err
	}

	l.cacheSet(ctx, sku, product.StockQuantity)
	l.publishAdjusted(ctx, product, product.StockQuantity-before.StockQuantity, models.StockReasonCorrection)
	return product, nil
}

// SearchProducts finds products by case-insensitive substring match on SKU
// or name.
func (l *StockLedger) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	return l.products.SearchProducts(ctx, term)
}

// SyncCache loads every product's quantity into the cache. Called at startup.
func (l *StockLedger) SyncCache(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}

	products, err := l.products.GetProducts(ctx)
	if err != nil {
		return err
	}

	for _, p := range products {
		if err := l.cache.SetStock(ctx, p.SKU, p.StockQuantity); err != nil {
			l.logger.Error("Failed to seed stock cache",
				zap.String("sku", p.SKU), zap.Error(err))
		}
	}

	l.logger.Info("Stock cache synced", zap.Int("count", len(products)))
	return nil
}

func (l *StockLedger) cacheSet(ctx context.Context, sku string, quantity int) {
	if l.cache == nil {
		return
	}
	if err := l.cache.SetStock(ctx, sku, quantity); err != nil {
		l.logger.Warn("Failed to update stock cache",
			zap.String("sku", sku), zap.Error(err))
	}
}

// cacheAdjust mirrors a committed change into the cache, reseeding on a miss.
func (l *StockLedger) cacheAdjust(ctx context.Context, sku string, change, newQuantity int) {
	if l.cache == nil {
		return
	}

	var err error
	if change < 0 {
		_, err = l.cache.DeductStock(ctx, sku, -change)
	} else {
		_, err = l.cache.IncreaseStock(ctx, sku, change)
	}
	if err != nil {
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			l.logger.Warn("Failed to adjust stock cache",
				zap.String("sku", sku), zap.Error(err))
		}
		l.cacheSet(ctx, sku, newQuantity)
	}
}

func (l *StockLedger) publishAdjusted(ctx context.Context, product *models.Product, change int, reason string) {
	if l.events == nil {
		return
	}
	err := l.events.PublishStockAdjusted(ctx, product.SKU, change,
		product.StockQuantity, product.ReorderLevel, reason)
	if err != nil {
		l.logger.Error("Failed to publish StockAdjusted event",
			zap.String("sku", product.SKU), zap.Error(err))
	}
}
