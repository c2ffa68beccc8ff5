package worker

import (
	"context"

	"procurement-service/internal/broker"
	"procurement-service/internal/models"
	"procurement-service/internal/util"

	"go.uber.org/zap"
)

// ReorderWorker watches stock adjustments and flags SKUs that fall to or
// below their reorder level. Alerting is advisory; it never blocks the
// ledger path that produced the event.
type ReorderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewReorderWorker creates a new reorder alert worker
func NewReorderWorker(consumer *broker.Consumer) *ReorderWorker {
	w := &ReorderWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnStockAdjusted(w.handleStockAdjusted)
	return w
}

// Start starts the worker
func (w *ReorderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reorder alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReorderWorker) Stop() error {
	w.logger.Info("Stopping reorder alert worker")
	return w.consumer.Close()
}

func (w *ReorderWorker) handleStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	if event.ReorderLevel <= 0 || event.NewQuantity > event.ReorderLevel {
		return nil
	}

	util.LowStockAlertsTotal.Inc()
	w.logger.Warn("SKU at or below reorder level",
		zap.String("sku", event.SKU),
		zap.Int("quantity", event.NewQuantity),
		zap.Int("reorder_level", event.ReorderLevel),
		zap.String("reason", event.Reason))
	return nil
}
