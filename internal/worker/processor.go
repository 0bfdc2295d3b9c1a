package worker

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/services"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// BatchOperations is the part of services.BatchService the worker pool runs.
type BatchOperations interface {
	CreateBatch(ctx context.Context, orderIDs []int64, strategy string) (*domain.Batch, error)
	OptimizeBatch(ctx context.Context, batchID string, addIDs, removeIDs []int64) (*services.OptimizeResult, error)
	AutoBatch(ctx context.Context, zoneID int64) ([]*domain.Batch, error)
}

// RedisTaskProcessor consumes batch-operation tasks with a bounded pool of
// asynq workers.
type RedisTaskProcessor struct {
	server  *asynq.Server
	batches BatchOperations
}

func NewRedisTaskProcessor(redisOpt asynq.RedisClientOpt, concurrency int, batches BatchOperations) *RedisTaskProcessor {
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger:          NewLogger(),
			ShutdownTimeout: 10 * time.Second,
		},
	)

	return &RedisTaskProcessor{server: server, batches: batches}
}

// NewTestTaskProcessor returns a processor without a Redis connection so
// handlers can be called directly.
func NewTestTaskProcessor(batches BatchOperations) *RedisTaskProcessor {
	return &RedisTaskProcessor{batches: batches}
}

func (p *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskCreateBatch, p.ProcessTaskCreateBatch)
	mux.HandleFunc(TaskOptimizeBatch, p.ProcessTaskOptimizeBatch)
	mux.HandleFunc(TaskAutoBatch, p.ProcessTaskAutoBatch)

	return p.server.Start(mux)
}

func (p *RedisTaskProcessor) Shutdown() {
	p.server.Shutdown()
}
