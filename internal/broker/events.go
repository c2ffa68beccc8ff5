package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procurement-service/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes purchase order lifecycle and stock ledger events.
// These feed downstream collaborators (reporting, dashboards); the
// authoritative audit trail lives in the purchase order history.
type EventPublisher struct {
	poProducer    *Producer
	stockProducer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(poProducer, stockProducer *Producer) *EventPublisher {
	return &EventPublisher{poProducer: poProducer, stockProducer: stockProducer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishPOCreated publishes a PO_CREATED event
func (ep *EventPublisher) PublishPOCreated(ctx context.Context, po *models.PurchaseOrder) error {
	event := &models.POCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypePOCreated),
		POID:        po.POID,
		VendorName:  po.VendorName,
		RequestedBy: po.RequestedBy,
		Items:       po.Items,
	}
	return ep.poProducer.PublishEvent(ctx, po.POID, event)
}

// PublishPODeleted publishes a PO_DELETED event
func (ep *EventPublisher) PublishPODeleted(ctx context.Context, poID, actor string) error {
	event := &models.PODeletedEvent{
		BaseEvent: newBaseEvent(models.EventTypePODeleted),
		POID:      poID,
		Actor:     actor,
	}
	return ep.poProducer.PublishEvent(ctx, poID, event)
}

// PublishPOStatus publishes the event for a Send/Ship/Cancel transition
func (ep *EventPublisher) PublishPOStatus(ctx context.Context, eventType, poID, actor string, from, to models.POStatus, deliveryRef, reason string) error {
	event := &models.POStatusEvent{
		BaseEvent:   newBaseEvent(eventType),
		POID:        poID,
		Actor:       actor,
		OldStatus:   from,
		NewStatus:   to,
		DeliveryRef: deliveryRef,
		Reason:      reason,
	}
	return ep.poProducer.PublishEvent(ctx, poID, event)
}

// PublishPOReceived publishes a PO_RECEIVED event
func (ep *EventPublisher) PublishPOReceived(ctx context.Context, poID, actor string, lines []models.ReceivedLine, newStatus models.POStatus) error {
	event := &models.POReceivedEvent{
		BaseEvent: newBaseEvent(models.EventTypePOReceived),
		POID:      poID,
		Actor:     actor,
		Lines:     lines,
		NewStatus: newStatus,
	}
	return ep.poProducer.PublishEvent(ctx, poID, event)
}

// PublishStockAdjusted publishes a STOCK_ADJUSTED event
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, sku string, change, newQuantity, reorderLevel int, reason string) error {
	event := &models.StockAdjustedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeStockAdjusted),
		SKU:          sku,
		Change:       change,
		NewQuantity:  newQuantity,
		ReorderLevel: reorderLevel,
		Reason:       reason,
	}
	return ep.stockProducer.PublishEvent(ctx, sku, event)
}

// EventHandler routes consumed messages to registered callbacks
type EventHandler struct {
	onStockAdjusted func(context.Context, *models.StockAdjustedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnStockAdjusted registers a handler for STOCK_ADJUSTED events
func (eh *EventHandler) OnStockAdjusted(handler func(context.Context, *models.StockAdjustedEvent) error) {
	eh.onStockAdjusted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeStockAdjusted:
		if eh.onStockAdjusted != nil {
			var event models.StockAdjustedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockAdjusted event: %w", err)
			}
			return eh.onStockAdjusted(ctx, &event)
		}
	}

	return nil
}
