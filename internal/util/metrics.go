package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	POsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_created_total",
		Help: "Total number of purchase orders created",
	})

	POsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_deleted_total",
		Help: "Total number of draft purchase orders deleted",
	})

	POsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_sent_total",
		Help: "Total number of purchase orders sent to a vendor",
	})

	POsShippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_shipped_total",
		Help: "Total number of purchase orders marked shipped",
	})

	POsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_cancelled_total",
		Help: "Total number of purchase orders cancelled",
	})

	POsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_orders_received_total",
		Help: "Total number of receiving calls processed",
	}, []string{"result"})

	POTransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_transitions_rejected_total",
		Help: "Total number of rejected purchase order operations",
	}, []string{"reason"})

	ReceiveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_order_receive_latency_seconds",
		Help:    "Latency of receiving operations",
		Buckets: prometheus.DefBuckets,
	})

	LedgerPartialFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_ledger_partial_failures_total",
		Help: "Receiving calls where the PO committed but a ledger increase failed",
	})

	StockDeductionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_deductions_failed_total",
		Help: "Total number of failed stock deductions",
	}, []string{"reason"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Stock adjustments that left a SKU at or below its reorder level",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
