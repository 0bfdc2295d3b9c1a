package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/geo"
	"sync"
	"time"
)

var origin = domain.Coordinates{Lat: 40.7128, Lon: -74.0060}

func newOrder(id int64, pickup, delivery domain.Coordinates) domain.Order {
	return domain.Order{
		ID:         id,
		MerchantID: id,
		ZoneID:     1,
		Pickup:     pickup,
		Delivery:   delivery,
		ItemCount:  1,
		Status:     domain.OrderStatusConfirmed,
	}
}

// nearbyOrders returns n orders whose pickups sit 40 m apart near at and
// whose deliveries sit 40 m apart 2 km north of it. Any subset of two to
// five of them is a feasible batch under default settings.
func nearbyOrders(firstID int64, n int, at domain.Coordinates) []domain.Order {
	out := make([]domain.Order, 0, n)
	for i := 0; i < n; i++ {
		east := float64(i) * 40
		out = append(out, newOrder(
			firstID+int64(i),
			geo.Offset(at, 0, east),
			geo.Offset(at, 2000, east),
		))
	}
	return out
}

func window(start time.Time, d time.Duration) *domain.TimeWindow {
	return &domain.TimeWindow{Start: start, End: start.Add(d)}
}

// memoryRouteCache is a map-backed ports.RouteCache.
type memoryRouteCache struct {
	mu     sync.Mutex
	routes map[string]*domain.Route
}

func newMemoryRouteCache() *memoryRouteCache {
	return &memoryRouteCache{routes: make(map[string]*domain.Route)}
}

func (c *memoryRouteCache) Get(ctx context.Context, batchID string) (*domain.Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.routes[batchID], nil
}

func (c *memoryRouteCache) Set(ctx context.Context, route *domain.Route, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route.BatchID] = route
	return nil
}

func (c *memoryRouteCache) Delete(ctx context.Context, batchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.routes, batchID)
	return nil
}

func (c *memoryRouteCache) has(batchID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.routes[batchID]
	return ok
}
