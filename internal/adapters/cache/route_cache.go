package cache

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const RouteKeyPrefix = "batch:route:"

// Redis-backed implementation of the RouteCache port. Routes are stored as
// JSON strings that expire after the TTL given to Set.
type RedisRouteCache struct {
	client redis.UniversalClient
}

func NewRedisRouteCache(client redis.UniversalClient) *RedisRouteCache {
	return &RedisRouteCache{client: client}
}

type cachedNode struct {
	Kind               string             `json:"kind"`
	OrderID            *int64             `json:"order_id,omitempty"`
	Location           domain.Coordinates `json:"location"`
	Address            string             `json:"address"`
	ServiceSeconds     float64            `json:"service_seconds"`
	EstimatedArrival   time.Time          `json:"estimated_arrival"`
	EstimatedDeparture time.Time          `json:"estimated_departure"`
}

type cachedRoute struct {
	BatchID             string       `json:"batch_id"`
	Strategy            string       `json:"strategy"`
	Nodes               []cachedNode `json:"nodes"`
	TotalDistanceMeters float64      `json:"total_distance_meters"`
	TotalSeconds        float64      `json:"total_seconds"`
	Feasible            bool         `json:"feasible"`
	Violations          []string     `json:"violations"`
	GeneratedAt         time.Time    `json:"generated_at"`
}

func routeKey(batchID string) string {
	return RouteKeyPrefix + batchID
}

func (c *RedisRouteCache) Get(ctx context.Context, batchID string) (_ *domain.Route, err error) {
	defer obs.Time(ctx, "route.cache.Get")(&err)

	data, err := c.client.Get(ctx, routeKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached route %s: %w", batchID, err)
	}

	var cr cachedRoute
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, fmt.Errorf("get cached route %s: unmarshal: %w", batchID, err)
	}
	return cr.toDomain(), nil
}

func (c *RedisRouteCache) Set(ctx context.Context, route *domain.Route, ttl time.Duration) (err error) {
	defer obs.Time(ctx, "route.cache.Set")(&err)

	if route == nil || route.BatchID == "" {
		return errors.New("set cached route: route must carry a batch id")
	}

	data, err := json.Marshal(fromDomain(route))
	if err != nil {
		return fmt.Errorf("set cached route %s: marshal: %w", route.BatchID, err)
	}

	if err := c.client.Set(ctx, routeKey(route.BatchID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set cached route %s: %w", route.BatchID, err)
	}
	return nil
}

func (c *RedisRouteCache) Delete(ctx context.Context, batchID string) error {
	if err := c.client.Del(ctx, routeKey(batchID)).Err(); err != nil {
		return fmt.Errorf("delete cached route %s: %w", batchID, err)
	}
	return nil
}

func fromDomain(r *domain.Route) cachedRoute {
	cr := cachedRoute{
		BatchID:             r.BatchID,
		Strategy:            string(r.Strategy),
		Nodes:               make([]cachedNode, 0, len(r.Nodes)),
		TotalDistanceMeters: r.TotalDistanceMeters,
		TotalSeconds:        r.TotalDuration.Seconds(),
		Feasible:            r.Feasible,
		Violations:          r.Violations,
		GeneratedAt:         r.GeneratedAt,
	}
	for _, n := range r.Nodes {
		cr.Nodes = append(cr.Nodes, cachedNode{
			Kind:               string(n.Kind),
			OrderID:            n.OrderID,
			Location:           n.Location,
			Address:            n.Address,
			ServiceSeconds:     n.ServiceDuration.Seconds(),
			EstimatedArrival:   n.EstimatedArrival,
			EstimatedDeparture: n.EstimatedDeparture,
		})
	}
	return cr
}

func (cr cachedRoute) toDomain() *domain.Route {
	r := &domain.Route{
		BatchID:             cr.BatchID,
		Strategy:            domain.RouteStrategy(cr.Strategy),
		Nodes:               make([]domain.RouteNode, 0, len(cr.Nodes)),
		TotalDistanceMeters: cr.TotalDistanceMeters,
		TotalDuration:       seconds(cr.TotalSeconds),
		Feasible:            cr.Feasible,
		Violations:          cr.Violations,
		GeneratedAt:         cr.GeneratedAt,
	}
	if r.Violations == nil {
		r.Violations = []string{}
	}
	for _, n := range cr.Nodes {
		r.Nodes = append(r.Nodes, domain.RouteNode{
			Kind:               domain.NodeKind(n.Kind),
			OrderID:            n.OrderID,
			Location:           n.Location,
			Address:            n.Address,
			ServiceDuration:    seconds(n.ServiceSeconds),
			EstimatedArrival:   n.EstimatedArrival,
			EstimatedDeparture: n.EstimatedDeparture,
		})
	}
	return r
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
