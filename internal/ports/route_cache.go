package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
	"time"
)

// Port: short-lived cache of generated routes keyed by batch id.
// A miss returns (nil, nil); callers regenerate.
type RouteCache interface {
	Get(ctx context.Context, batchID string) (*domain.Route, error)
	Set(ctx context.Context, route *domain.Route, ttl time.Duration) error
	Delete(ctx context.Context, batchID string) error
}
