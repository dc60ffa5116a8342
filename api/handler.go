package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sales_api/internal/idempotency"
	"sales_api/internal/sales"
)

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	keys         idempotency.Store
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, keys idempotency.Store, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		keys:         keys,
		logger:       logger,
	}
}

// handleCreateSale handles the POST /sales endpoint.
//
// Once started, a sale runs to completion even if the client goes away:
// collaborator calls are bounded by the client timeouts, not by the request.
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req sales.SaleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload", "detail": err.Error()})
		return
	}

	workCtx := context.WithoutCancel(ctx.Request.Context())

	key := idempotency.Key(ctx.Request)
	if key == "" {
		if sale := h.createSale(workCtx, ctx, req); sale != nil {
			ctx.JSON(http.StatusCreated, sale)
		}
		return
	}

	fingerprint, err := idempotency.Fingerprint(req)
	if err != nil {
		h.logger.Error("failed to fingerprint request", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if h.replay(workCtx, ctx, key, fingerprint) {
		return
	}

	// The key is released unless the sale completed, a panic included.
	completed := false
	defer func() {
		if completed {
			return
		}
		if err := h.keys.Release(workCtx, key); err != nil {
			h.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
	}()

	sale := h.createSale(workCtx, ctx, req)
	if sale == nil {
		return
	}
	if err := h.keys.Complete(workCtx, key, fingerprint, sale.ID); err != nil {
		h.logger.Warn("failed to complete idempotency key", zap.String("key", key), zap.Error(err))
	}
	completed = true
	ctx.JSON(http.StatusCreated, sale)
}

// createSale runs the workflow, writing the error response on failure.
func (h *salesHandler) createSale(workCtx context.Context, ctx *gin.Context, req sales.SaleRequest) *sales.Sale {
	sale, err := h.salesService.CreateSale(workCtx, req)
	if err != nil {
		h.writeError(ctx, err)
		return nil
	}
	return sale
}

// replay reserves key and reports whether the response has already been
// written: the key is in flight, was used for another request, or maps to a
// stored sale.
func (h *salesHandler) replay(workCtx context.Context, ctx *gin.Context, key, fingerprint string) bool {
	saleID, err := h.keys.Reserve(workCtx, key, fingerprint)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return true
	case errors.Is(err, idempotency.ErrKeyReused):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return true
	case err != nil:
		h.logger.Error("failed to reserve idempotency key", zap.String("key", key), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return true
	case saleID == "":
		return false
	}

	sale, err := h.salesService.GetSale(workCtx, saleID)
	if err != nil {
		// The ledger lost the sale, e.g. an in-memory ledger after a restart.
		h.logger.Warn("idempotency key points to a missing sale",
			zap.String("key", key),
			zap.String("sale_id", saleID),
			zap.Error(err),
		)
		return false
	}
	ctx.JSON(http.StatusOK, sale)
	return true
}

// handleGetSale handles GET /sales/:id.
func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.salesService.GetSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, sales.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		h.logger.Error("failed to read sale", zap.String("sale_id", ctx.Param("id")), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx.JSON(http.StatusOK, sale)
}

// handleSearchSales handles GET /sales with an optional user_id filter.
func (h *salesHandler) handleSearchSales(ctx *gin.Context) {
	var userID int64
	if raw := ctx.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
			return
		}
		userID = id
	}

	results, metadata, err := h.salesService.SearchSales(ctx.Request.Context(), userID)
	if err != nil {
		if sales.KindOf(err) != "" {
			h.writeError(ctx, err)
			return
		}
		h.logger.Error("error searching sales", zap.Int64("user_id_filter", userID), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search sales"})
		return
	}
	if results == nil {
		results = []*sales.Sale{}
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results, "metadata": metadata})
}

func (h *salesHandler) writeError(ctx *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if kind := sales.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	if status == http.StatusInternalServerError && sales.KindOf(err) == "" {
		body["error"] = "internal error"
	}
	ctx.JSON(status, body)
}

// statusFor maps workflow failures to HTTP statuses. Buyer and product
// problems are the caller's, collaborator and ledger failures are ours.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sales.ErrStockUpdateFailed), errors.Is(err, sales.ErrCatalogFailure):
		return http.StatusBadGateway
	case errors.Is(err, sales.ErrStorageFailure):
		return http.StatusInternalServerError
	case sales.KindOf(err) != "":
		return http.StatusBadRequest
	case errors.Is(err, sales.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
