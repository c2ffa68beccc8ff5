package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog with its stock level
type Product struct {
	SKU           string          `db:"sku" json:"sku"`
	Name          string          `db:"name" json:"name"`
	Category      string          `db:"category" json:"category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	ReorderLevel  int             `db:"reorder_level" json:"reorder_level"`
	SupplierInfo  string          `db:"supplier_info" json:"supplier_info,omitempty"`
	LastUpdated   time.Time       `db:"last_updated" json:"last_updated"`
}

// Vendor represents an entry in the vendor directory
type Vendor struct {
	Name          string         `db:"name" json:"name"`
	ContactPerson string         `db:"contact_person" json:"contact_person,omitempty"`
	Phone         string         `db:"phone" json:"phone,omitempty"`
	Email         string         `db:"email" json:"email,omitempty"`
	ProvidedSKUs  pq.StringArray `db:"provided_skus" json:"provided_skus"`
}

// PurchaseOrder represents a purchase order with its line items and history
type PurchaseOrder struct {
	POID        string         `db:"po_id" json:"po_id"`
	VendorName  string         `db:"vendor_name" json:"vendor_name"`
	OrderDate   time.Time      `db:"order_date" json:"order_date"`
	RequestedBy string         `db:"requested_by" json:"requested_by"`
	Status      POStatus       `db:"status" json:"status"`
	Items       []POItem       `json:"items"`
	History     []HistoryEntry `json:"history"`
}

// POItem is a single line on a purchase order. ProductName is a snapshot
// taken from the catalog at creation time and does not follow later renames.
type POItem struct {
	POID             string `db:"po_id" json:"-"`
	LineNo           int    `db:"line_no" json:"-"`
	SKU              string `db:"sku" json:"sku"`
	ProductName      string `db:"product_name" json:"product_name"`
	QuantityOrdered  int    `db:"quantity_ordered" json:"quantity_ordered"`
	QuantityReceived int    `db:"quantity_received" json:"quantity_received"`
}

// Remaining returns the quantity still outstanding on this line.
func (it POItem) Remaining() int {
	return it.QuantityOrdered - it.QuantityReceived
}

// HistoryEntry is one append-only audit record on a purchase order.
// StatusChange is set only when the entry caused a status transition.
type HistoryEntry struct {
	ID           int64     `db:"id" json:"-"`
	POID         string    `db:"po_id" json:"-"`
	Timestamp    time.Time `db:"ts" json:"timestamp"`
	User         string    `db:"username" json:"user"`
	Action       string    `db:"action" json:"action"`
	StatusChange *POStatus `db:"status_change" json:"status_change,omitempty"`
	Notes        string    `db:"notes" json:"notes,omitempty"`
	DeliveryRef  string    `db:"delivery_ref" json:"delivery_ref,omitempty"`
	Reason       string    `db:"reason" json:"reason,omitempty"`
}

// POStatus is the workflow state of a purchase order
type POStatus string

// Purchase order statuses
const (
	StatusDraft             POStatus = "Draft"
	StatusSentToVendor      POStatus = "Sent to Vendor"
	StatusShipped           POStatus = "Shipped"
	StatusPartiallyReceived POStatus = "Partially Received"
	StatusReceived          POStatus = "Received"
	StatusCancelled         POStatus = "Cancelled"
)

// String returns the string representation of the status.
func (s POStatus) String() string {
	return string(s)
}

// transitions is the full workflow: the warehouse sends a draft to the
// vendor, the vendor ships or cancels, receiving drives the order to
// completion. Anything not in this table is rejected.
var transitions = map[POStatus][]POStatus{
	StatusDraft:             {StatusSentToVendor},
	StatusSentToVendor:      {StatusShipped, StatusCancelled},
	StatusShipped:           {StatusPartiallyReceived, StatusReceived},
	StatusPartiallyReceived: {StatusPartiallyReceived, StatusReceived},
}

// CanTransitionTo reports whether the workflow permits moving from this
// status to the target.
func (s POStatus) CanTransitionTo(target POStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Receivable reports whether goods may be received against an order in
// this status.
func (s POStatus) Receivable() bool {
	return s == StatusShipped || s == StatusPartiallyReceived
}

// Terminal reports whether the status has no outgoing transitions.
func (s POStatus) Terminal() bool {
	return s == StatusReceived || s == StatusCancelled
}

// Valid reports whether s is a known purchase order status.
func (s POStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSentToVendor, StatusShipped,
		StatusPartiallyReceived, StatusReceived, StatusCancelled:
		return true
	}
	return false
}
