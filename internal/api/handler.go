package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/service"
	"procurement-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	poService *service.POService
	ledger    *service.StockLedger
}

// NewHandler creates a new HTTP handler
func NewHandler(poService *service.POService, ledger *service.StockLedger) *Handler {
	return &Handler{
		poService: poService,
		ledger:    ledger,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/pos", h.createPO)
		v1.GET("/pos", h.listPOs)
		v1.GET("/pos/:id", h.getPO)
		v1.DELETE("/pos/:id", h.deletePO)
		v1.POST("/pos/:id/send", h.sendToVendor)
		v1.POST("/pos/:id/ship", h.markShipped)
		v1.POST("/pos/:id/cancel", h.cancelPO)
		v1.POST("/pos/:id/receive", h.receiveItems)

		v1.GET("/products", h.searchProducts)
		v1.GET("/products/:sku/stock", h.getStock)
		v1.POST("/products/:sku/deduct", h.deductStock)
		v1.POST("/products/:sku/increase", h.increaseStock)
		v1.PUT("/products/:sku/stock", h.setStock)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusForError maps the domain error taxonomy to HTTP status codes
func statusForError(err error) int {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidState, models.KindConflict:
		return http.StatusConflict
	case models.KindInvalidQuantity, models.KindValidationFailed:
		return http.StatusBadRequest
	case models.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"error":   models.KindOf(err).String(),
		"details": err.Error(),
	})
}

func (h *Handler) createPO(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	po, err := h.poService.CreatePO(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, po)
}

func (h *Handler) listPOs(c *gin.Context) {
	pos, err := h.poService.ListPOs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_orders": pos})
}

func (h *Handler) getPO(c *gin.Context) {
	po, err := h.poService.GetPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) deletePO(c *gin.Context) {
	actor := c.Query("actor")
	if actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": "actor query parameter is required",
		})
		return
	}

	if err := h.poService.DeletePO(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

type actorRequest struct {
	Actor string `json:"actor" binding:"required"`
}

func (h *Handler) sendToVendor(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	po, err := h.poService.SendToVendor(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

type shipRequest struct {
	Actor       string `json:"actor" binding:"required"`
	DeliveryRef string `json:"delivery_reference" binding:"required"`
	Notes       string `json:"notes"`
}

func (h *Handler) markShipped(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	po, err := h.poService.MarkShipped(c.Request.Context(), c.Param("id"), req.Actor, req.DeliveryRef, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

type cancelRequest struct {
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) cancelPO(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	po, err := h.poService.CancelPO(c.Request.Context(), c.Param("id"), req.Actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

type receiveRequest struct {
	Actor string         `json:"actor" binding:"required"`
	Items map[string]int `json:"items" binding:"required"`
	Notes string         `json:"notes"`
}

func (h *Handler) receiveItems(c *gin.Context) {
	var req receiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	po, err := h.poService.ReceiveItems(c.Request.Context(), c.Param("id"), req.Actor, req.Items, req.Notes)
	if err != nil {
		// A partial failure means the PO update committed but stock was not
		// fully credited; return the detail so it can be reconciled.
		var pf *models.PartialFailureError
		if errors.As(err, &pf) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":          models.KindPartialFailure.String(),
				"details":        pf.Error(),
				"purchase_order": po,
				"failures":       pf.Failures,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) searchProducts(c *gin.Context) {
	products, err := h.ledger.SearchProducts(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getStock(c *gin.Context) {
	qty, err := h.ledger.GetStock(c.Request.Context(), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sku": c.Param("sku"), "stock_quantity": qty})
}

type quantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) deductStock(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	product, err := h.ledger.Deduct(c.Request.Context(), c.Param("sku"), req.Quantity, models.StockReasonSale)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) increaseStock(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	product, err := h.ledger.Increase(c.Request.Context(), c.Param("sku"), req.Quantity, models.StockReasonCorrection)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type setStockRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindValidationFailed.String(),
			"details": err.Error(),
		})
		return
	}

	product, err := h.ledger.SetQuantity(c.Request.Context(), c.Param("sku"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
