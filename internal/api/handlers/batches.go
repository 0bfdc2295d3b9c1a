package handlers

import (
	"context"
	"delivery-batch-service/internal/api/dto"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/services"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// BatchAPI is the part of services.BatchService exposed over HTTP.
type BatchAPI interface {
	CreateBatch(ctx context.Context, orderIDs []int64, strategy string) (*domain.Batch, error)
	GetBatchSuggestions(ctx context.Context, zoneID *int64, maxBatchSize int) ([]services.Suggestion, error)
	OptimizeBatch(ctx context.Context, batchID string, addIDs, removeIDs []int64) (*services.OptimizeResult, error)
	GenerateBatchRoutes(ctx context.Context, batchID string, driverID *int64) (*domain.Route, error)
	SplitBatch(ctx context.Context, batchID string, strategy services.SplitStrategy) ([]*domain.Batch, error)
	MergeBatches(ctx context.Context, batchIDs []string) (*domain.Batch, error)
	UpdateBatchStatus(ctx context.Context, batchID string, status domain.BatchStatus, driverID *int64) error
	RunScheduledOptimization(ctx context.Context) error
}

type BatchHandler struct {
	Service BatchAPI
}

func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if !decodeJSON(c, &req, false) {
		return
	}
	if len(req.OrderIDs) == 0 {
		writeError(c, http.StatusBadRequest, "order_ids is required")
		return
	}

	batch, err := h.Service.CreateBatch(c.Request.Context(), req.OrderIDs, req.Strategy)
	if err != nil {
		respondError(c, "create batch", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewBatchResponse(batch))
}

func (h *BatchHandler) Suggestions(c *gin.Context) {
	var zoneID *int64
	if raw := c.Query("zone_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "zone_id must be an integer")
			return
		}
		zoneID = &id
	}

	maxSize := 0
	if raw := c.Query("max_batch_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "max_batch_size must be a non-negative integer")
			return
		}
		maxSize = n
	}

	suggestions, err := h.Service.GetBatchSuggestions(c.Request.Context(), zoneID, maxSize)
	if err != nil {
		respondError(c, "batch suggestions", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListSuggestionsResponse(suggestions))
}

func (h *BatchHandler) Optimize(c *gin.Context) {
	var req dto.OptimizeBatchRequest
	if !decodeJSON(c, &req, true) {
		return
	}

	res, err := h.Service.OptimizeBatch(c.Request.Context(), c.Param("id"), req.AddOrderIDs, req.RemoveOrderIDs)
	if err != nil {
		respondError(c, "optimize batch", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOptimizeBatchResponse(res))
}

func (h *BatchHandler) Routes(c *gin.Context) {
	var req dto.GenerateRouteRequest
	if !decodeJSON(c, &req, true) {
		return
	}

	route, err := h.Service.GenerateBatchRoutes(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, "generate route", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRouteResponse(route))
}

func (h *BatchHandler) Split(c *gin.Context) {
	req := dto.SplitBatchRequest{Strategy: string(services.SplitHalves)}
	if !decodeJSON(c, &req, true) {
		return
	}

	batches, err := h.Service.SplitBatch(c.Request.Context(), c.Param("id"), services.SplitStrategy(req.Strategy))
	if err != nil {
		respondError(c, "split batch", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListBatchesResponse(batches))
}

func (h *BatchHandler) Merge(c *gin.Context) {
	var req dto.MergeBatchesRequest
	if !decodeJSON(c, &req, false) {
		return
	}
	if len(req.BatchIDs) < 2 {
		writeError(c, http.StatusBadRequest, "batch_ids must name at least two batches")
		return
	}

	batch, err := h.Service.MergeBatches(c.Request.Context(), req.BatchIDs)
	if err != nil {
		respondError(c, "merge batches", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewBatchResponse(batch))
}

func (h *BatchHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if !decodeJSON(c, &req, false) {
		return
	}

	status := domain.BatchStatus(req.Status)
	if !status.IsValid() {
		writeError(c, http.StatusBadRequest, "unknown status "+strconv.Quote(req.Status))
		return
	}

	if err := h.Service.UpdateBatchStatus(c.Request.Context(), c.Param("id"), status, req.DriverID); err != nil {
		respondError(c, "update batch status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch_id": c.Param("id"), "status": status})
}

// RunOptimization triggers the scheduled optimization sweep out of band.
func (h *BatchHandler) RunOptimization(c *gin.Context) {
	if err := h.Service.RunScheduledOptimization(c.Request.Context()); err != nil {
		respondError(c, "run optimization", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}
