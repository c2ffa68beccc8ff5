package store

import (
	"context"
	"database/sql"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreatePurchaseOrder persists a new purchase order with its line items and
// initial history in a single transaction.
func (s *Store) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (po_id, vendor_name, order_date, requested_by, status)
		VALUES ($1, $2, $3, $4, $5)`,
		po.POID, po.VendorName, po.OrderDate, po.RequestedBy, po.Status)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to insert purchase order %s", po.POID)
	}

	for i := range po.Items {
		po.Items[i].POID = po.POID
		po.Items[i].LineNo = i + 1
		if err := insertItem(ctx, tx, &po.Items[i]); err != nil {
			return err
		}
	}

	for i := range po.History {
		po.History[i].POID = po.POID
		if err := insertHistory(ctx, tx, &po.History[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewPersistenceFailure(err, "failed to commit purchase order %s", po.POID)
	}
	return nil
}

// GetPurchaseOrder loads a purchase order with its items and history.
func (s *Store) GetPurchaseOrder(ctx context.Context, poID string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := s.db.GetContext(ctx, &po, "SELECT * FROM purchase_orders WHERE po_id = $1", poID)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("purchase order not found: %s", poID)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to load purchase order %s", poID)
	}

	if err := s.loadPODetails(ctx, &po); err != nil {
		return nil, err
	}
	return &po, nil
}

// ListPurchaseOrders returns all purchase orders with items and history,
// newest order date first.
func (s *Store) ListPurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error) {
	var pos []models.PurchaseOrder
	err := s.db.SelectContext(ctx, &pos,
		"SELECT * FROM purchase_orders ORDER BY order_date DESC")
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to list purchase orders")
	}

	for i := range pos {
		if err := s.loadPODetails(ctx, &pos[i]); err != nil {
			return nil, err
		}
	}
	return pos, nil
}

func (s *Store) loadPODetails(ctx context.Context, po *models.PurchaseOrder) error {
	err := s.db.SelectContext(ctx, &po.Items,
		"SELECT * FROM po_items WHERE po_id = $1 ORDER BY line_no", po.POID)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to load items for %s", po.POID)
	}

	err = s.db.SelectContext(ctx, &po.History,
		"SELECT * FROM po_history WHERE po_id = $1 ORDER BY id", po.POID)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to load history for %s", po.POID)
	}
	return nil
}

// UpdatePurchaseOrderTx runs mutate against the purchase order inside a
// transaction that row-locks the order, so read-modify-write cycles for the
// same order cannot interleave. mutate returns the single history entry to
// append; if it returns an error nothing is written. The database never sees
// a state the mutation did not produce.
func (s *Store) UpdatePurchaseOrderTx(
	ctx context.Context,
	poID string,
	mutate func(po *models.PurchaseOrder) (*models.HistoryEntry, error),
) (*models.PurchaseOrder, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var po models.PurchaseOrder
	err = tx.GetContext(ctx, &po,
		"SELECT * FROM purchase_orders WHERE po_id = $1 FOR UPDATE", poID)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("purchase order not found: %s", poID)
	}
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to lock purchase order %s", poID)
	}

	err = tx.SelectContext(ctx, &po.Items,
		"SELECT * FROM po_items WHERE po_id = $1 ORDER BY line_no", poID)
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to load items for %s", poID)
	}

	entry, err := mutate(&po)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE purchase_orders SET status = $2 WHERE po_id = $1", poID, po.Status)
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to update purchase order %s", poID)
	}

	for i := range po.Items {
		_, err = tx.ExecContext(ctx,
			"UPDATE po_items SET quantity_received = $3 WHERE po_id = $1 AND line_no = $2",
			poID, po.Items[i].LineNo, po.Items[i].QuantityReceived)
		if err != nil {
			return nil, models.NewPersistenceFailure(err, "failed to update items for %s", poID)
		}
	}

	entry.POID = poID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to commit update for %s", poID)
	}

	err = s.db.SelectContext(ctx, &po.History,
		"SELECT * FROM po_history WHERE po_id = $1 ORDER BY id", poID)
	if err != nil {
		return nil, models.NewPersistenceFailure(err, "failed to load history for %s", poID)
	}
	return &po, nil
}

// DeletePurchaseOrderDraft removes a purchase order, permitted only while it
// is still a draft. This is the only deletion path in the system.
func (s *Store) DeletePurchaseOrderDraft(ctx context.Context, poID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var status models.POStatus
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM purchase_orders WHERE po_id = $1 FOR UPDATE", poID)
	if err == sql.ErrNoRows {
		return models.NewNotFound("purchase order not found: %s", poID)
	}
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to lock purchase order %s", poID)
	}

	if status != models.StatusDraft {
		return models.NewInvalidState("only draft purchase orders can be deleted (status: %s)", status)
	}

	for _, q := range []string{
		"DELETE FROM po_history WHERE po_id = $1",
		"DELETE FROM po_items WHERE po_id = $1",
		"DELETE FROM purchase_orders WHERE po_id = $1",
	} {
		if _, err := tx.ExecContext(ctx, q, poID); err != nil {
			return models.NewPersistenceFailure(err, "failed to delete purchase order %s", poID)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewPersistenceFailure(err, "failed to commit delete for %s", poID)
	}
	return nil
}

func insertItem(ctx context.Context, tx *sqlx.Tx, item *models.POItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO po_items (po_id, line_no, sku, product_name, quantity_ordered, quantity_received)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.POID, item.LineNo, item.SKU, item.ProductName,
		item.QuantityOrdered, item.QuantityReceived)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to insert item %s for %s", item.SKU, item.POID)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entry *models.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO po_history (po_id, ts, username, action, status_change, notes, delivery_ref, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.POID, entry.Timestamp, entry.User, entry.Action,
		entry.StatusChange, entry.Notes, entry.DeliveryRef, entry.Reason)
	if err != nil {
		return models.NewPersistenceFailure(err, "failed to append history for %s", entry.POID)
	}
	return nil
}
