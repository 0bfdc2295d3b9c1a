package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// Port: persistence for batches and the order->batch association.
//
// Every method that claims orders does so with a compare-and-swap on the
// order row: the claim succeeds only if the order is still confirmed and
// unbatched, otherwise the whole call fails with domain.ErrConflict and
// nothing is written.
type BatchRepository interface {
	// Insert the batch and claim all of its orders.
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	// Release removed orders, claim added ones and store the batch's new
	// order set and metrics.
	ReplaceBatchOrders(ctx context.Context, batch *domain.Batch, added, removed []int64) error
	// Persist status, driver and timestamps, cascading order status.
	// Cancellation releases the orders.
	UpdateBatchStatus(ctx context.Context, batch *domain.Batch) error
	// Delete the batch and release its orders back to the unbatched pool.
	DissolveBatch(ctx context.Context, id string) error
	// Dissolve every pending source batch and create merged from their
	// orders atomically. Fails with domain.ErrConflict, changing nothing,
	// when a source is no longer pending or an order was claimed elsewhere.
	MergeBatches(ctx context.Context, sourceIDs []string, merged *domain.Batch) error
}
