package worker

import (
	"context"
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	TaskCreateBatch   = "batch:create"
	TaskOptimizeBatch = "batch:optimize"
	TaskAutoBatch     = "batch:auto_batch"

	autoBatchUniqueTTL = 2 * time.Minute
)

type PayloadCreateBatch struct {
	OrderIDs []int64 `json:"order_ids"`
	Strategy string  `json:"strategy,omitempty"`
}

type PayloadOptimizeBatch struct {
	BatchID        string  `json:"batch_id"`
	AddOrderIDs    []int64 `json:"add_order_ids,omitempty"`
	RemoveOrderIDs []int64 `json:"remove_order_ids,omitempty"`
}

type PayloadAutoBatch struct {
	ZoneID int64 `json:"zone_id"`
}

func (p *RedisTaskProcessor) ProcessTaskCreateBatch(ctx context.Context, task *asynq.Task) error {
	var payload PayloadCreateBatch
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}
	if len(payload.OrderIDs) == 0 {
		return fmt.Errorf("create batch task without orders: %w", asynq.SkipRetry)
	}

	batch, err := p.batches.CreateBatch(ctx, payload.OrderIDs, payload.Strategy)
	if err != nil {
		return markPermanent(fmt.Errorf("create batch: %w", err))
	}

	log.Info().
		Str("type", task.Type()).
		Str("batch_id", batch.ID).
		Ints64("order_ids", batch.OrderIDs).
		Msg("processed task")
	return nil
}

func (p *RedisTaskProcessor) ProcessTaskOptimizeBatch(ctx context.Context, task *asynq.Task) error {
	var payload PayloadOptimizeBatch
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}
	if payload.BatchID == "" {
		return fmt.Errorf("optimize batch task without batch id: %w", asynq.SkipRetry)
	}

	res, err := p.batches.OptimizeBatch(ctx, payload.BatchID, payload.AddOrderIDs, payload.RemoveOrderIDs)
	if err != nil {
		return markPermanent(fmt.Errorf("optimize batch %s: %w", payload.BatchID, err))
	}

	log.Info().
		Str("type", task.Type()).
		Str("batch_id", payload.BatchID).
		Bool("dissolved", res.Dissolved).
		Msg("processed task")
	return nil
}

func (p *RedisTaskProcessor) ProcessTaskAutoBatch(ctx context.Context, task *asynq.Task) error {
	var payload PayloadAutoBatch
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	created, err := p.batches.AutoBatch(ctx, payload.ZoneID)
	if err != nil {
		return markPermanent(fmt.Errorf("auto batch zone %d: %w", payload.ZoneID, err))
	}

	log.Info().
		Str("type", task.Type()).
		Int64("zone_id", payload.ZoneID).
		Int("created", len(created)).
		Msg("processed task")
	return nil
}

// markPermanent marks errors that a retry cannot fix with asynq.SkipRetry.
func markPermanent(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict),
		domain.IsInfeasible(err):
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
