package cache

import (
	"context"
	"delivery-batch-service/internal/domain"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleRoute() *domain.Route {
	at := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	id := int64(11)
	return &domain.Route{
		BatchID:  "b1",
		Strategy: domain.RouteStrategySavings,
		Nodes: []domain.RouteNode{
			{Kind: domain.NodeKindStart, Location: domain.Coordinates{Lat: 1, Lon: 2}, Address: "start", EstimatedArrival: at, EstimatedDeparture: at},
			{
				Kind: domain.NodeKindPickup, OrderID: &id, Location: domain.Coordinates{Lat: 1.001, Lon: 2},
				Address: "Deli", ServiceDuration: domain.PickupServiceDuration,
				EstimatedArrival: at.Add(time.Minute), EstimatedDeparture: at.Add(6 * time.Minute),
			},
		},
		TotalDistanceMeters: 111.2,
		TotalDuration:       6 * time.Minute,
		Feasible:            true,
		Violations:          []string{},
		GeneratedAt:         at,
	}
}

func TestRedisRouteCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewRedisRouteCache(client)

	got, err := c.Get(ctx, "b1")
	require.NoError(t, err)
	require.Nil(t, got)

	want := sampleRoute()
	require.NoError(t, c.Set(ctx, want, 10*time.Minute))
	require.True(t, mr.Exists(RouteKeyPrefix+"b1"))
	require.Equal(t, 10*time.Minute, mr.TTL(RouteKeyPrefix+"b1"))

	got, err = c.Get(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, "b1"))
	got, err = c.Get(ctx, "b1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRouteCache_Expires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewRedisRouteCache(client)

	require.NoError(t, c.Set(ctx, sampleRoute(), time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, "b1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRouteCache_Errors(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewRedisRouteCache(client)

	require.Error(t, c.Set(ctx, &domain.Route{}, time.Minute))

	require.NoError(t, mr.Set(RouteKeyPrefix+"bad", "{not json"))
	_, err := c.Get(ctx, "bad")
	require.Error(t, err)
}

func TestRedisPositionFeed(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	feed := NewRedisPositionFeed(client)

	pos, err := feed.GetDriverPosition(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, pos)

	require.NoError(t, mr.Set(DriverPositionKey(7), `{"lat":40.7,"lon":-74.0,"reported_at":"2026-03-02T13:55:00Z"}`))

	pos, err = feed.GetDriverPosition(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), pos.DriverID)
	require.Equal(t, domain.Coordinates{Lat: 40.7, Lon: -74.0}, pos.Location)
	require.Equal(t, time.Date(2026, 3, 2, 13, 55, 0, 0, time.UTC), pos.ReportedAt)
}
