package ports

import "context"

//go:generate mockgen -package mockwk -destination ../worker/mock/distributor.go delivery-batch-service/internal/ports TaskDistributor

// Port: enqueues batch-operation jobs for the worker pool.
type TaskDistributor interface {
	DistributeAutoBatch(ctx context.Context, zoneID int64) error
	DistributeCreateBatch(ctx context.Context, orderIDs []int64, strategy string) error
	DistributeOptimizeBatch(ctx context.Context, batchID string, addIDs, removeIDs []int64) error
}
