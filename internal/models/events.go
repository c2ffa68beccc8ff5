package models

import "time"

// Event types
const (
	EventTypePOCreated     = "PO_CREATED"
	EventTypePODeleted     = "PO_DELETED"
	EventTypePOSent        = "PO_SENT_TO_VENDOR"
	EventTypePOShipped     = "PO_SHIPPED"
	EventTypePOCancelled   = "PO_CANCELLED"
	EventTypePOReceived    = "PO_RECEIVED"
	EventTypeStockAdjusted = "STOCK_ADJUSTED"
)

// Stock adjustment reasons
const (
	StockReasonSale       = "sale"
	StockReasonReceipt    = "po_receipt"
	StockReasonCorrection = "correction"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// POCreatedEvent published when a purchase order is created
type POCreatedEvent struct {
	BaseEvent
	POID        string   `json:"po_id"`
	VendorName  string   `json:"vendor_name"`
	RequestedBy string   `json:"requested_by"`
	Items       []POItem `json:"items"`
}

// PODeletedEvent published when a draft purchase order is deleted
type PODeletedEvent struct {
	BaseEvent
	POID  string `json:"po_id"`
	Actor string `json:"actor"`
}

// POStatusEvent published on Send/Ship/Cancel transitions
type POStatusEvent struct {
	BaseEvent
	POID        string   `json:"po_id"`
	Actor       string   `json:"actor"`
	OldStatus   POStatus `json:"old_status"`
	NewStatus   POStatus `json:"new_status"`
	DeliveryRef string   `json:"delivery_ref,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// POReceivedEvent published after a receiving call commits
type POReceivedEvent struct {
	BaseEvent
	POID      string         `json:"po_id"`
	Actor     string         `json:"actor"`
	Lines     []ReceivedLine `json:"lines"`
	NewStatus POStatus       `json:"new_status"`
}

// StockAdjustedEvent published by the stock ledger on every quantity change
type StockAdjustedEvent struct {
	BaseEvent
	SKU          string `json:"sku"`
	Change       int    `json:"change"`
	NewQuantity  int    `json:"new_quantity"`
	ReorderLevel int    `json:"reorder_level"`
	Reason       string `json:"reason"`
}
