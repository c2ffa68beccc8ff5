package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/util"

	"go.uber.org/zap"
)

// POStore is the persistence surface the lifecycle engine needs. Every
// mutating method is atomic per purchase order.
type POStore interface {
	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, poID string) (*models.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error)
	DeletePurchaseOrderDraft(ctx context.Context, poID string) error
	UpdatePurchaseOrderTx(ctx context.Context, poID string,
		mutate func(po *models.PurchaseOrder) (*models.HistoryEntry, error)) (*models.PurchaseOrder, error)
}

// Catalog resolves SKUs to product details. Read-only collaborator.
type Catalog interface {
	LookupProduct(ctx context.Context, sku string) (*models.Product, error)
}

// VendorDirectory looks up vendors by name. Read-only collaborator.
type VendorDirectory interface {
	GetVendor(ctx context.Context, name string) (*models.Vendor, error)
}

// StockIncreaser is the slice of the stock ledger the receiving flow uses.
type StockIncreaser interface {
	Increase(ctx context.Context, sku string, quantity int, reason string) (*models.Product, error)
}

// POLocker serializes mutating operations per purchase order with a bounded
// wait; exhaustion surfaces as a CONFLICT error, never a deadlock.
type POLocker interface {
	AcquirePOLock(ctx context.Context, poID string, ttl, maxWait time.Duration) (func(), error)
}

// LifecycleEvents publishes purchase order lifecycle events.
type LifecycleEvents interface {
	PublishPOCreated(ctx context.Context, po *models.PurchaseOrder) error
	PublishPODeleted(ctx context.Context, poID, actor string) error
	PublishPOStatus(ctx context.Context, eventType, poID, actor string, from, to models.POStatus, deliveryRef, reason string) error
	PublishPOReceived(ctx context.Context, poID, actor string, lines []models.ReceivedLine, newStatus models.POStatus) error
}

// POService drives purchase orders through their lifecycle. It owns no
// persistent state: it validates, orchestrates the PO store and the stock
// ledger, and records every mutation in the order's history.
type POService struct {
	pos        POStore
	catalog    Catalog
	vendors    VendorDirectory
	ledger     StockIncreaser
	locks      POLocker
	events     LifecycleEvents
	lockTTL    time.Duration
	lockWait   time.Duration
	noteMaxLen int
	logger     *zap.Logger
}

// NewPOService creates a new purchase order service
func NewPOService(
	pos POStore,
	catalog Catalog,
	vendors VendorDirectory,
	ledger StockIncreaser,
	locks POLocker,
	events LifecycleEvents,
	lockTTL, lockWait time.Duration,
	noteMaxLen int,
) *POService {
	return &POService{
		pos:        pos,
		catalog:    catalog,
		vendors:    vendors,
		ledger:     ledger,
		locks:      locks,
		events:     events,
		lockTTL:    lockTTL,
		lockWait:   lockWait,
		noteMaxLen: noteMaxLen,
		logger:     util.GetLogger(),
	}
}

// CreatePOItem is one requested line on a new purchase order
type CreatePOItem struct {
	SKU         string `json:"sku" binding:"required"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// CreatePORequest represents a request to create a purchase order
type CreatePORequest struct {
	VendorName  string         `json:"vendor_name" binding:"required"`
	RequestedBy string         `json:"requested_by" binding:"required"`
	Items       []CreatePOItem `json:"items" binding:"required,min=1,dive"`
}

// CreatePO creates a new draft purchase order. Product names are snapshotted
// from the catalog; when a SKU is unknown there, the caller-supplied name is
// kept instead. Vendor existence is checked advisorily: the directory only
// filters the picker upstream, it is not a hard invariant here.
func (s *POService) CreatePO(ctx context.Context, req *CreatePORequest) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "POService.CreatePO")
	defer span.End()

	if strings.TrimSpace(req.VendorName) == "" {
		return nil, models.NewValidationFailed("vendor name is required")
	}
	if strings.TrimSpace(req.RequestedBy) == "" {
		return nil, models.NewValidationFailed("requested_by is required")
	}
	if len(req.Items) == 0 {
		return nil, models.NewValidationFailed("a purchase order needs at least one item")
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.SKU) == "" {
			return nil, models.NewValidationFailed("item SKU is required")
		}
		if item.Quantity <= 0 {
			return nil, models.NewInvalidQuantity("ordered quantity for SKU %s must be positive, got %d",
				item.SKU, item.Quantity)
		}
	}

	if _, err := s.vendors.GetVendor(ctx, req.VendorName); err != nil {
		s.logger.Warn("Vendor not found in directory, proceeding anyway",
			zap.String("vendor", req.VendorName), zap.Error(err))
	}

	now := time.Now()
	po := &models.PurchaseOrder{
		POID:        models.NewPOID(now),
		VendorName:  req.VendorName,
		OrderDate:   now,
		RequestedBy: req.RequestedBy,
		Status:      models.StatusDraft,
	}

	for _, item := range req.Items {
		name := item.ProductName
		if product, err := s.catalog.LookupProduct(ctx, item.SKU); err == nil {
			name = product.Name
		} else if name == "" {
			name = "Unknown Product"
		}
		po.Items = append(po.Items, models.POItem{
			SKU:             item.SKU,
			ProductName:     name,
			QuantityOrdered: item.Quantity,
		})
	}

	draft := models.StatusDraft
	po.History = []models.HistoryEntry{{
		Timestamp:    now,
		User:         req.RequestedBy,
		Action:       "Created PO",
		StatusChange: &draft,
	}}

	if err := s.pos.CreatePurchaseOrder(ctx, po); err != nil {
		return nil, err
	}

	util.POsCreatedTotal.Inc()
	s.logger.Info("Purchase order created",
		zap.String("po_id", po.POID),
		zap.String("vendor", po.VendorName),
		zap.Int("items", len(po.Items)))

	if s.events != nil {
		if err := s.events.PublishPOCreated(ctx, po); err != nil {
			s.logger.Error("Failed to publish POCreated event", zap.Error(err))
		}
	}
	return po, nil
}

// GetPO retrieves a purchase order by id
func (s *POService) GetPO(ctx context.Context, poID string) (*models.PurchaseOrder, error) {
	return s.pos.GetPurchaseOrder(ctx, poID)
}

// ListPOs returns all purchase orders, newest order date first
func (s *POService) ListPOs(ctx context.Context) ([]models.PurchaseOrder, error) {
	return s.pos.ListPurchaseOrders(ctx)
}

// DeletePO removes a purchase order while it is still a draft. The only
// deletion path in the system; any other status is INVALID_STATE.
func (s *POService) DeletePO(ctx context.Context, poID, actor string) error {
	ctx, span := util.StartSpan(ctx, "POService.DeletePO")
	defer span.End()

	release, err := s.locks.AcquirePOLock(ctx, poID, s.lockTTL, s.lockWait)
	if err != nil {
		return err
	}
	defer release()

	if err := s.pos.DeletePurchaseOrderDraft(ctx, poID); err != nil {
		if models.IsKind(err, models.KindInvalidState) {
			util.POTransitionsRejectedTotal.WithLabelValues("invalid_state").Inc()
		}
		return err
	}

	util.POsDeletedTotal.Inc()
	s.logger.Info("Draft purchase order deleted",
		zap.String("po_id", poID), zap.String("actor", actor))

	if s.events != nil {
		if err := s.events.PublishPODeleted(ctx, poID, actor); err != nil {
			s.logger.Error("Failed to publish PODeleted event", zap.Error(err))
		}
	}
	return nil
}

// SendToVendor moves a draft purchase order to Sent to Vendor.
func (s *POService) SendToVendor(ctx context.Context, poID, actor string) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "POService.SendToVendor")
	defer span.End()

	po, err := s.applyTransition(ctx, poID, actor, models.StatusSentToVendor,
		models.EventTypePOSent, "", "", "")
	if err == nil {
		util.POsSentTotal.Inc()
	}
	return po, err
}

// MarkShipped records that the vendor has shipped the order. The delivery
// reference is mandatory.
func (s *POService) MarkShipped(ctx context.Context, poID, actor, deliveryRef, notes string) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "POService.MarkShipped")
	defer span.End()

	if strings.TrimSpace(deliveryRef) == "" {
		return nil, models.NewValidationFailed("delivery reference is required to mark a purchase order shipped")
	}

	po, err := s.applyTransition(ctx, poID, actor, models.StatusShipped,
		models.EventTypePOShipped, deliveryRef, "", notes)
	if err == nil {
		util.POsShippedTotal.Inc()
	}
	return po, err
}

// CancelPO cancels an order that has been sent but not yet shipped. The
// reason is mandatory.
func (s *POService) CancelPO(ctx context.Context, poID, actor, reason string) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "POService.CancelPO")
	defer span.End()

	if strings.TrimSpace(reason) == "" {
		return nil, models.NewValidationFailed("a cancellation reason is required")
	}

	po, err := s.applyTransition(ctx, poID, actor, models.StatusCancelled,
		models.EventTypePOCancelled, "", reason, "")
	if err == nil {
		util.POsCancelledTotal.Inc()
	}
	return po, err
}

// applyTransition performs one status transition under the per-PO lock,
// validating it against the transition table and appending the history entry
// in the same transaction as the status write.
func (s *POService) applyTransition(
	ctx context.Context,
	poID, actor string,
	to models.POStatus,
	eventType, deliveryRef, reason, notes string,
) (*models.PurchaseOrder, error) {
	release, err := s.locks.AcquirePOLock(ctx, poID, s.lockTTL, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var from models.POStatus
	updated, err := s.pos.UpdatePurchaseOrderTx(ctx, poID, func(po *models.PurchaseOrder) (*models.HistoryEntry, error) {
		if !po.Status.CanTransitionTo(to) {
			return nil, models.NewInvalidState("purchase order %s cannot move from %s to %s",
				poID, po.Status, to)
		}
		from = po.Status
		po.Status = to

		status := to
		return &models.HistoryEntry{
			Timestamp:    time.Now(),
			User:         actor,
			Action:       fmt.Sprintf("Status changed from %s to %s", from, to),
			StatusChange: &status,
			Notes:        notes,
			DeliveryRef:  deliveryRef,
			Reason:       reason,
		}, nil
	})
	if err != nil {
		if models.IsKind(err, models.KindInvalidState) {
			util.POTransitionsRejectedTotal.WithLabelValues("invalid_state").Inc()
		}
		return nil, err
	}

	s.logger.Info("Purchase order transitioned",
		zap.String("po_id", poID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("actor", actor))

	if s.events != nil {
		if err := s.events.PublishPOStatus(ctx, eventType, poID, actor, from, to, deliveryRef, reason); err != nil {
			s.logger.Error("Failed to publish PO status event", zap.Error(err))
		}
	}
	return updated, nil
}

// ReceiveItems credits delivered quantities against a shipped or partially
// received order. Validation is all-or-nothing: one bad line rejects the
// call with nothing applied. Once the order update commits, the stock ledger
// is credited line by line; a ledger failure at that point surfaces as a
// partial failure carrying the unreconciled lines, and the order update is
// deliberately not rolled back.
func (s *POService) ReceiveItems(ctx context.Context, poID, actor string, received map[string]int, notes string) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "POService.ReceiveItems")
	defer span.End()

	if s.noteMaxLen > 0 && len(notes) > s.noteMaxLen {
		return nil, models.NewValidationFailed("notes exceed the maximum length of %d characters", s.noteMaxLen)
	}

	start := time.Now()
	defer func() {
		util.ReceiveLatency.Observe(time.Since(start).Seconds())
	}()

	release, err := s.locks.AcquirePOLock(ctx, poID, s.lockTTL, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *models.ReceiptResult
	updated, err := s.pos.UpdatePurchaseOrderTx(ctx, poID, func(po *models.PurchaseOrder) (*models.HistoryEntry, error) {
		res, err := po.ApplyReceipt(received)
		if err != nil {
			return nil, err
		}
		result = res

		entry := &models.HistoryEntry{
			Timestamp: time.Now(),
			User:      actor,
			Action:    res.HistoryAction(),
			Notes:     notes,
		}
		if res.StatusChanged {
			status := res.NewStatus
			entry.StatusChange = &status
		}
		return entry, nil
	})
	if err != nil {
		switch models.KindOf(err) {
		case models.KindInvalidState:
			util.POTransitionsRejectedTotal.WithLabelValues("invalid_state").Inc()
		case models.KindInvalidQuantity:
			util.POTransitionsRejectedTotal.WithLabelValues("invalid_quantity").Inc()
		}
		return nil, err
	}

	s.logger.Info("Purchase order items received",
		zap.String("po_id", poID),
		zap.String("actor", actor),
		zap.Int("lines", len(result.Applied)),
		zap.String("status", result.NewStatus.String()))

	if s.events != nil {
		if err := s.events.PublishPOReceived(ctx, poID, actor, result.Applied, result.NewStatus); err != nil {
			s.logger.Error("Failed to publish POReceived event", zap.Error(err))
		}
	}

	// The order update is durable from here on. Credit the ledger; failures
	// must be surfaced, never swallowed, so the mismatch between the order
	// and the stock on hand can be reconciled manually.
	var failures []models.StockIncreaseFailure
	for _, line := range result.Applied {
		if _, err := s.ledger.Increase(ctx, line.SKU, line.Quantity, models.StockReasonReceipt); err != nil {
			s.logger.Error("Stock ledger increase failed after PO update committed",
				zap.String("po_id", poID),
				zap.String("sku", line.SKU),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
			failures = append(failures, models.StockIncreaseFailure{
				SKU:      line.SKU,
				Quantity: line.Quantity,
				Cause:    err,
			})
		}
	}

	if len(failures) > 0 {
		util.LedgerPartialFailuresTotal.Inc()
		util.POsReceivedTotal.WithLabelValues("partial_failure").Inc()
		return updated, &models.PartialFailureError{POID: poID, Failures: failures}
	}

	util.POsReceivedTotal.WithLabelValues("ok").Inc()
	return updated, nil
}
