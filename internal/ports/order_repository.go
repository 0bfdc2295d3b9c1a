package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// Port: read access to orders joined with their merchant pickup location.
type OrderRepository interface {
	// Return the orders with the given ids. Missing ids are simply absent from the result.
	GetOrders(ctx context.Context, ids []int64) ([]domain.Order, error)
	// Return up to limit confirmed, unbatched orders, oldest first.
	// A nil zoneID means all zones.
	ListUnbatchedOrders(ctx context.Context, zoneID *int64, limit int) ([]domain.Order, error)
	// Return zones holding at least minOrders confirmed, unbatched orders.
	ListZonesWithUnbatchedOrders(ctx context.Context, minOrders int) ([]int64, error)
}
