package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// RedisTaskDistributor enqueues batch-operation tasks on asynq.
// It implements ports.TaskDistributor.
type RedisTaskDistributor struct {
	client *asynq.Client
}

func NewRedisTaskDistributor(redisOpt asynq.RedisClientOpt) *RedisTaskDistributor {
	return &RedisTaskDistributor{client: asynq.NewClient(redisOpt)}
}

func (d *RedisTaskDistributor) Close() error {
	return d.client.Close()
}

func (d *RedisTaskDistributor) DistributeAutoBatch(ctx context.Context, zoneID int64) error {
	// One pending sweep per zone; a duplicate enqueue within the window is a no-op.
	err := d.enqueue(ctx, TaskAutoBatch, PayloadAutoBatch{ZoneID: zoneID},
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(autoBatchUniqueTTL),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		log.Debug().Int64("zone_id", zoneID).Msg("auto batch already queued")
		return nil
	}
	return err
}

func (d *RedisTaskDistributor) DistributeCreateBatch(ctx context.Context, orderIDs []int64, strategy string) error {
	return d.enqueue(ctx, TaskCreateBatch, PayloadCreateBatch{OrderIDs: orderIDs, Strategy: strategy},
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
	)
}

func (d *RedisTaskDistributor) DistributeOptimizeBatch(ctx context.Context, batchID string, addIDs, removeIDs []int64) error {
	return d.enqueue(ctx, TaskOptimizeBatch, PayloadOptimizeBatch{BatchID: batchID, AddOrderIDs: addIDs, RemoveOrderIDs: removeIDs},
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
	)
}

func (d *RedisTaskDistributor) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, jsonPayload, opts...)
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s task: %w", taskType, err)
	}

	log.Info().
		Str("type", task.Type()).
		Str("queue", info.Queue).
		Int("max_retry", info.MaxRetry).
		Bytes("payload", task.Payload()).
		Msg("enqueued task")

	return nil
}
