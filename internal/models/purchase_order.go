package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewPOID generates a purchase order id: PO-<date>-<time>-<random suffix>.
func NewPOID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("PO-%s-%s", now.Format("20060102-150405"), suffix)
}

// ReceivedLine records one line credited by a receiving call.
type ReceivedLine struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// ReceiptResult summarizes the outcome of applying one receiving call.
type ReceiptResult struct {
	Applied       []ReceivedLine
	OldStatus     POStatus
	NewStatus     POStatus
	StatusChanged bool
}

// HistoryAction renders the audit description for this receipt, listing each
// credited line or noting that nothing new was entered.
func (r *ReceiptResult) HistoryAction() string {
	if len(r.Applied) == 0 {
		return "Items received. No new quantities entered."
	}
	parts := make([]string, 0, len(r.Applied))
	for _, line := range r.Applied {
		parts = append(parts, fmt.Sprintf("%s (Qty: %d)", line.SKU, line.Quantity))
	}
	return "Items received. Details: " + strings.Join(parts, "; ")
}

// ApplyReceipt credits the submitted quantities against the order's lines and
// derives the resulting status. Validation runs over every line before any
// mutation, so an over-receipt or negative quantity rejects the whole call
// with the order untouched. SKUs that are not on the order are ignored.
func (po *PurchaseOrder) ApplyReceipt(received map[string]int) (*ReceiptResult, error) {
	if !po.Status.Receivable() {
		return nil, NewInvalidState("purchase order %s is not receivable (status: %s)", po.POID, po.Status)
	}

	for i := range po.Items {
		qty, ok := received[po.Items[i].SKU]
		if !ok {
			continue
		}
		if qty < 0 {
			return nil, NewInvalidQuantity("received quantity for SKU %s cannot be negative", po.Items[i].SKU)
		}
		if remaining := po.Items[i].Remaining(); qty > remaining {
			return nil, NewInvalidQuantity("received quantity for SKU %s (%d) exceeds remaining quantity (%d)",
				po.Items[i].SKU, qty, remaining)
		}
	}

	result := &ReceiptResult{OldStatus: po.Status, NewStatus: po.Status}
	var totalOrdered, totalReceived int
	for i := range po.Items {
		if qty, ok := received[po.Items[i].SKU]; ok && qty > 0 {
			po.Items[i].QuantityReceived += qty
			result.Applied = append(result.Applied, ReceivedLine{
				SKU:         po.Items[i].SKU,
				ProductName: po.Items[i].ProductName,
				Quantity:    qty,
			})
		}
		totalOrdered += po.Items[i].QuantityOrdered
		totalReceived += po.Items[i].QuantityReceived
	}

	switch {
	case totalReceived >= totalOrdered:
		result.NewStatus = StatusReceived
	case totalReceived > 0:
		result.NewStatus = StatusPartiallyReceived
	}

	if result.NewStatus != po.Status {
		po.Status = result.NewStatus
		result.StatusChanged = true
	}
	return result, nil
}

// TotalOrdered sums quantity_ordered over all lines.
func (po *PurchaseOrder) TotalOrdered() int {
	var total int
	for _, it := range po.Items {
		total += it.QuantityOrdered
	}
	return total
}

// TotalReceived sums quantity_received over all lines.
func (po *PurchaseOrder) TotalReceived() int {
	var total int
	for _, it := range po.Items {
		total += it.QuantityReceived
	}
	return total
}
