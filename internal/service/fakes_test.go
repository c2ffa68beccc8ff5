package service

import (
	"context"
	"sync"
	"time"

	"procurement-service/internal/models"
)

// fakePOStore keeps purchase orders in memory with the same atomicity
// contract as the SQL store: every mutation is copy-modify-commit under a
// single mutex.
type fakePOStore struct {
	mu     sync.Mutex
	pos    map[string]*models.PurchaseOrder
	nextID int64
}

func newFakePOStore() *fakePOStore {
	return &fakePOStore{pos: make(map[string]*models.PurchaseOrder)}
}

func clonePO(po *models.PurchaseOrder) *models.PurchaseOrder {
	cp := *po
	cp.Items = append([]models.POItem(nil), po.Items...)
	cp.History = append([]models.HistoryEntry(nil), po.History...)
	return &cp
}

func (f *fakePOStore) CreatePurchaseOrder(_ context.Context, po *models.PurchaseOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos[po.POID] = clonePO(po)
	return nil
}

func (f *fakePOStore) GetPurchaseOrder(_ context.Context, poID string) (*models.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	po, ok := f.pos[poID]
	if !ok {
		return nil, models.NewNotFound("purchase order not found: %s", poID)
	}
	return clonePO(po), nil
}

func (f *fakePOStore) ListPurchaseOrders(_ context.Context) ([]models.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PurchaseOrder, 0, len(f.pos))
	for _, po := range f.pos {
		out = append(out, *clonePO(po))
	}
	return out, nil
}

func (f *fakePOStore) DeletePurchaseOrderDraft(_ context.Context, poID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	po, ok := f.pos[poID]
	if !ok {
		return models.NewNotFound("purchase order not found: %s", poID)
	}
	if po.Status != models.StatusDraft {
		return models.NewInvalidState("only draft purchase orders can be deleted (status: %s)", po.Status)
	}
	delete(f.pos, poID)
	return nil
}

func (f *fakePOStore) UpdatePurchaseOrderTx(
	_ context.Context,
	poID string,
	mutate func(po *models.PurchaseOrder) (*models.HistoryEntry, error),
) (*models.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.pos[poID]
	if !ok {
		return nil, models.NewNotFound("purchase order not found: %s", poID)
	}

	working := clonePO(current)
	entry, err := mutate(working)
	if err != nil {
		return nil, err
	}

	f.nextID++
	entry.ID = f.nextID
	entry.POID = poID
	working.History = append(working.History, *entry)
	f.pos[poID] = working
	return clonePO(working), nil
}

type fakeCatalog struct {
	products map[string]*models.Product
}

func (f *fakeCatalog) LookupProduct(_ context.Context, sku string) (*models.Product, error) {
	if p, ok := f.products[sku]; ok {
		return p, nil
	}
	return nil, models.NewNotFound("product not found: %s", sku)
}

type fakeVendors struct {
	vendors map[string]*models.Vendor
}

func (f *fakeVendors) GetVendor(_ context.Context, name string) (*models.Vendor, error) {
	if v, ok := f.vendors[name]; ok {
		return v, nil
	}
	return nil, models.NewNotFound("vendor not found: %s", name)
}

// fakeLedger records increases and can be told to fail particular SKUs.
type fakeLedger struct {
	mu        sync.Mutex
	increases map[string]int
	failSKUs  map[string]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{increases: make(map[string]int), failSKUs: make(map[string]error)}
}

func (f *fakeLedger) Increase(_ context.Context, sku string, quantity int, _ string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failSKUs[sku]; ok {
		return nil, err
	}
	f.increases[sku] += quantity
	return &models.Product{SKU: sku, StockQuantity: f.increases[sku]}, nil
}

func (f *fakeLedger) increased(sku string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.increases[sku]
}

// fakeLocker serializes per-key the way the Redis lock does, including the
// bounded wait and CONFLICT on exhaustion.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) AcquirePOLock(ctx context.Context, poID string, _, maxWait time.Duration) (func(), error) {
	deadline := time.Now().Add(maxWait)
	for {
		f.mu.Lock()
		if !f.held[poID] {
			f.held[poID] = true
			f.mu.Unlock()
			return func() {
				f.mu.Lock()
				delete(f.held, poID)
				f.mu.Unlock()
			}, nil
		}
		f.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, models.NewConflict("purchase order %s is locked by another operation", poID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// fakeEvents counts published events by type.
type fakeEvents struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{counts: make(map[string]int)}
}

func (f *fakeEvents) bump(eventType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[eventType]++
}

func (f *fakeEvents) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[eventType]
}

func (f *fakeEvents) PublishPOCreated(_ context.Context, _ *models.PurchaseOrder) error {
	f.bump(models.EventTypePOCreated)
	return nil
}

func (f *fakeEvents) PublishPODeleted(_ context.Context, _, _ string) error {
	f.bump(models.EventTypePODeleted)
	return nil
}

func (f *fakeEvents) PublishPOStatus(_ context.Context, eventType, _, _ string, _, _ models.POStatus, _, _ string) error {
	f.bump(eventType)
	return nil
}

func (f *fakeEvents) PublishPOReceived(_ context.Context, _, _ string, _ []models.ReceivedLine, _ models.POStatus) error {
	f.bump(models.EventTypePOReceived)
	return nil
}
