package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"procurement-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProductStore enforces the same per-SKU atomicity as the SQL store's
// guarded UPDATE statements.
type fakeProductStore struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newFakeProductStore(products ...*models.Product) *fakeProductStore {
	f := &fakeProductStore{products: make(map[string]*models.Product)}
	for _, p := range products {
		f.products[p.SKU] = p
	}
	return f
}

func (f *fakeProductStore) GetProductBySKU(_ context.Context, sku string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[sku]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, models.NewNotFound("product not found: %s", sku)
}

func (f *fakeProductStore) GetProducts(_ context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProductStore) SearchProducts(_ context.Context, term string) ([]models.Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.Product{}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if strings.Contains(strings.ToLower(p.SKU), term) ||
			strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductStore) DeductStock(_ context.Context, sku string, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[sku]
	if !ok {
		return nil, models.NewNotFound("product not found: %s", sku)
	}
	if p.StockQuantity < quantity {
		return nil, models.NewInsufficientStock("insufficient stock for %s: available=%d, requested=%d",
			sku, p.StockQuantity, quantity)
	}
	p.StockQuantity -= quantity
	p.LastUpdated = time.Now()
	cp := *p
	return &cp, nil
}

func (f *fakeProductStore) IncreaseStock(_ context.Context, sku string, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[sku]
	if !ok {
		return nil, models.NewNotFound("product not found: %s", sku)
	}
	p.StockQuantity += quantity
	p.LastUpdated = time.Now()
	cp := *p
	return &cp, nil
}

func (f *fakeProductStore) SetStockQuantity(_ context.Context, sku string, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[sku]
	if !ok {
		return nil, models.NewNotFound("product not found: %s", sku)
	}
	p.StockQuantity = quantity
	p.LastUpdated = time.Now()
	cp := *p
	return &cp, nil
}

type recordedAdjustment struct {
	sku         string
	change      int
	newQuantity int
	reason      string
}

type fakeStockEvents struct {
	mu          sync.Mutex
	adjustments []recordedAdjustment
}

func (f *fakeStockEvents) PublishStockAdjusted(_ context.Context, sku string, change, newQuantity, _ int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjustments = append(f.adjustments, recordedAdjustment{sku, change, newQuantity, reason})
	return nil
}

func newLedgerFixture(products ...*models.Product) (*StockLedger, *fakeProductStore, *fakeStockEvents) {
	store := newFakeProductStore(products...)
	events := &fakeStockEvents{}
	return NewStockLedger(store, nil, events), store, events
}

func TestLedgerDeductInsufficientStock(t *testing.T) {
	ledger, store, _ := newLedgerFixture(&models.Product{SKU: "SKU-B", Name: "Gadget", StockQuantity: 3})
	ctx := context.Background()

	_, err := ledger.Deduct(ctx, "SKU-B", 5, models.StockReasonSale)
	require.Error(t, err)
	assert.Equal(t, models.KindInsufficientStock, models.KindOf(err))

	p, err := store.GetProductBySKU(ctx, "SKU-B")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)
}

func TestLedgerDeductAndIncrease(t *testing.T) {
	ledger, _, events := newLedgerFixture(&models.Product{SKU: "SKU-A", Name: "Widget", StockQuantity: 10, ReorderLevel: 2})
	ctx := context.Background()

	p, err := ledger.Deduct(ctx, "SKU-A", 4, models.StockReasonSale)
	require.NoError(t, err)
	assert.Equal(t, 6, p.StockQuantity)

	p, err = ledger.Increase(ctx, "SKU-A", 3, models.StockReasonReceipt)
	require.NoError(t, err)
	assert.Equal(t, 9, p.StockQuantity)

	require.Len(t, events.adjustments, 2)
	assert.Equal(t, recordedAdjustment{"SKU-A", -4, 6, models.StockReasonSale}, events.adjustments[0])
	assert.Equal(t, recordedAdjustment{"SKU-A", 3, 9, models.StockReasonReceipt}, events.adjustments[1])
}

func TestLedgerIncreaseUnknownSKU(t *testing.T) {
	ledger, _, _ := newLedgerFixture()

	_, err := ledger.Increase(context.Background(), "SKU-GHOST", 5, models.StockReasonReceipt)
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestLedgerRejectsNonPositiveQuantities(t *testing.T) {
	ledger, _, _ := newLedgerFixture(&models.Product{SKU: "SKU-A", StockQuantity: 10})
	ctx := context.Background()

	_, err := ledger.Deduct(ctx, "SKU-A", 0, models.StockReasonSale)
	assert.Equal(t, models.KindInvalidQuantity, models.KindOf(err))

	_, err = ledger.Increase(ctx, "SKU-A", -1, models.StockReasonReceipt)
	assert.Equal(t, models.KindInvalidQuantity, models.KindOf(err))

	_, err = ledger.SetQuantity(ctx, "SKU-A", -5)
	assert.Equal(t, models.KindInvalidQuantity, models.KindOf(err))
}

func TestLedgerHasSufficientStockFailsClosed(t *testing.T) {
	ledger, _, _ := newLedgerFixture(&models.Product{SKU: "SKU-A", StockQuantity: 10})
	ctx := context.Background()

	ok, err := ledger.HasSufficientStock(ctx, "SKU-A", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.HasSufficientStock(ctx, "SKU-A", 11)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown SKU reads as insufficient, not as an error.
	ok, err = ledger.HasSufficientStock(ctx, "SKU-GHOST", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerSetQuantityPublishesDelta(t *testing.T) {
	ledger, _, events := newLedgerFixture(&models.Product{SKU: "SKU-A", StockQuantity: 10})
	ctx := context.Background()

	p, err := ledger.SetQuantity(ctx, "SKU-A", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.StockQuantity)

	require.Len(t, events.adjustments, 1)
	assert.Equal(t, recordedAdjustment{"SKU-A", -6, 4, models.StockReasonCorrection}, events.adjustments[0])
}

func TestLedgerSearchProducts(t *testing.T) {
	ledger, _, _ := newLedgerFixture(
		&models.Product{SKU: "SKU-A", Name: "Blue Widget"},
		&models.Product{SKU: "SKU-B", Name: "Red Gadget"},
	)
	ctx := context.Background()

	results, err := ledger.SearchProducts(ctx, "widGET")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "SKU-A", results[0].SKU)

	results, err = ledger.SearchProducts(ctx, "sku-")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = ledger.SearchProducts(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLedgerConcurrentDeductsNeverGoNegative(t *testing.T) {
	ledger, store, _ := newLedgerFixture(&models.Product{SKU: "SKU-A", StockQuantity: 10})
	ctx := context.Background()

	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Deduct(ctx, "SKU-A", 1, models.StockReasonSale); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, err := store.GetProductBySKU(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), successes)
	assert.Equal(t, 0, p.StockQuantity)
}
