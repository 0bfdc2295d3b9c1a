package services

import (
	"context"
	"delivery-batch-service/internal/adapters/repositories"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/geo"
	"delivery-batch-service/internal/ports"
	mockwk "delivery-batch-service/internal/worker/mock"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testNow = time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

type testEnv struct {
	svc       *BatchService
	store     *repositories.MemoryStore
	routes    *memoryRouteCache
	positions *stubPositionFeed
}

func newTestEnv(t *testing.T, orders []domain.Order, configure ...func(*BatchServiceDeps)) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     repositories.NewMemoryStore(orders...),
		routes:    newMemoryRouteCache(),
		positions: &stubPositionFeed{positions: map[int64]ports.DriverPosition{}},
	}

	var seq atomic.Int64
	deps := BatchServiceDeps{
		Settings:     domain.DefaultBatchSettings(),
		Orders:       env.store,
		Batches:      env.store,
		RouteCache:   env.routes,
		PositionFeed: env.positions,
		Now:          func() time.Time { return testNow },
		NewID:        func() string { return fmt.Sprintf("batch-%d", seq.Add(1)) },
	}
	for _, c := range configure {
		c(&deps)
	}

	svc, err := NewBatchService(deps)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (e *testEnv) order(t *testing.T, id int64) domain.Order {
	t.Helper()
	o, ok := e.store.Order(id)
	require.True(t, ok, "order %d missing", id)
	return o
}

type stubPositionFeed struct {
	positions map[int64]ports.DriverPosition
}

func (f *stubPositionFeed) GetDriverPosition(ctx context.Context, driverID int64) (*ports.DriverPosition, error) {
	p, ok := f.positions[driverID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type stubSuggester struct {
	suggestions []Suggestion
}

func (s stubSuggester) Suggestions(orders []domain.Order, maxBatchSize int) []Suggestion {
	return append([]Suggestion(nil), s.suggestions...)
}

func TestNewBatchService_RequiresRepositories(t *testing.T) {
	_, err := NewBatchService(BatchServiceDeps{Settings: domain.DefaultBatchSettings()})
	require.Error(t, err)

	settings := domain.DefaultBatchSettings()
	settings.MinBatchSize = 1
	store := repositories.NewMemoryStore()
	_, err = NewBatchService(BatchServiceDeps{Settings: settings, Orders: store, Batches: store})
	require.Error(t, err)
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 4, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2, 3}, "")
	require.NoError(t, err)
	require.Equal(t, "batch-1", b.ID)
	require.Equal(t, domain.BatchStatusPending, b.Status)
	require.Equal(t, []int64{1, 2, 3}, b.OrderIDs)
	require.Equal(t, int64(1), b.ZoneID)
	require.Greater(t, b.SavingsPercentage, 15.0)
	require.LessOrEqual(t, b.EstimatedDuration, 60*time.Minute)
	require.Equal(t, testNow, b.CreatedAt)

	for _, id := range []int64{1, 2, 3} {
		o := env.order(t, id)
		require.NotNil(t, o.BatchID)
		require.Equal(t, b.ID, *o.BatchID)
		require.Equal(t, domain.OrderStatusBatched, o.Status)
	}
	require.True(t, env.order(t, 4).IsBatchable())
	require.True(t, env.routes.has(b.ID))
}

func TestCreateBatch_Rejections(t *testing.T) {
	ctx := context.Background()

	orders := nearbyOrders(1, 4, origin)
	orders[3].Status = domain.OrderStatusCancelled
	far := newOrder(9, geo.Offset(origin, 0, 8000), geo.Offset(origin, 2000, 8000))
	env := newTestEnv(t, append(orders, far))

	_, err := env.svc.CreateBatch(ctx, []int64{1, 99}, "")
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.CreateBatch(ctx, []int64{1, 4}, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.CreateBatch(ctx, []int64{1, 2}, "bogus")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.CreateBatch(ctx, []int64{1, 9}, "")
	var infeasible *domain.InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	require.Equal(t, "Pickup locations too spread out", infeasible.Reason)
	require.EqualError(t, err, "not feasible: Pickup locations too spread out")

	_, err = env.svc.CreateBatch(ctx, []int64{1, 1}, "")
	require.True(t, domain.IsInfeasible(err))
	require.Contains(t, err.Error(), "Batch requires at least 2 orders")

	_, err = env.svc.CreateBatch(ctx, []int64{1, 2}, string(domain.RouteStrategySavings))
	require.NoError(t, err)

	_, err = env.svc.CreateBatch(ctx, []int64{2, 3}, "")
	require.ErrorIs(t, err, domain.ErrValidation)
	require.True(t, env.order(t, 3).IsBatchable())
	require.Len(t, env.store.BatchIDs(), 1)
}

func TestOptimizeBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 4, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)

	res, err := env.svc.OptimizeBatch(ctx, b.ID, []int64{3}, nil)
	require.NoError(t, err)
	require.False(t, res.Dissolved)
	require.Equal(t, []int64{1, 2, 3}, res.Batch.OrderIDs)
	require.Len(t, res.Route.Nodes, 7)
	require.Equal(t, b.ID, *env.order(t, 3).BatchID)

	again, err := env.svc.OptimizeBatch(ctx, b.ID, []int64{3}, nil)
	require.NoError(t, err)
	require.Equal(t, res.Batch.OrderIDs, again.Batch.OrderIDs)
	require.Equal(t, res.Batch.TotalDistanceMeters, again.Batch.TotalDistanceMeters)
	require.Equal(t, res.Batch.SavingsPercentage, again.Batch.SavingsPercentage)

	res, err = env.svc.OptimizeBatch(ctx, b.ID, nil, []int64{1})
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, res.Batch.OrderIDs)
	require.True(t, env.order(t, 1).IsBatchable())

	stored, err := env.store.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, stored.OrderIDs)
}

func TestOptimizeBatch_DissolvesBelowMinimum(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 2, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)
	require.True(t, env.routes.has(b.ID))

	res, err := env.svc.OptimizeBatch(ctx, b.ID, nil, []int64{2})
	require.NoError(t, err)
	require.True(t, res.Dissolved)
	require.Nil(t, res.Batch)
	require.Equal(t, []int64{1, 2}, res.ReleasedOrderIDs)

	_, err = env.store.GetBatch(ctx, b.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.True(t, env.order(t, 1).IsBatchable())
	require.True(t, env.order(t, 2).IsBatchable())
	require.False(t, env.routes.has(b.ID))
}

func TestOptimizeBatch_Rejections(t *testing.T) {
	ctx := context.Background()
	far := newOrder(9, geo.Offset(origin, 0, 8000), geo.Offset(origin, 2000, 8000))
	env := newTestEnv(t, append(nearbyOrders(1, 5, origin), far))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)
	other, err := env.svc.CreateBatch(ctx, []int64{3, 4}, "")
	require.NoError(t, err)

	_, err = env.svc.OptimizeBatch(ctx, "missing", nil, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.OptimizeBatch(ctx, b.ID, nil, []int64{5})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.OptimizeBatch(ctx, b.ID, []int64{3}, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.OptimizeBatch(ctx, b.ID, []int64{9}, nil)
	require.True(t, domain.IsInfeasible(err))
	require.True(t, env.order(t, 9).IsBatchable())

	stored, err := env.store.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, stored.OrderIDs)

	require.NoError(t, env.svc.UpdateBatchStatus(ctx, other.ID, domain.BatchStatusAssigned, nil))
	_, err = env.svc.OptimizeBatch(ctx, other.ID, []int64{5}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestSplitThenMerge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 4, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2, 3, 4}, "")
	require.NoError(t, err)

	parts, err := env.svc.SplitBatch(ctx, b.ID, SplitHalves)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, []int64{1, 2}, parts[0].OrderIDs)
	require.Equal(t, []int64{3, 4}, parts[1].OrderIDs)

	_, err = env.store.GetBatch(ctx, b.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.False(t, env.routes.has(b.ID))

	merged, err := env.svc.MergeBatches(ctx, []string{parts[0].ID, parts[1].ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 4}, merged.OrderIDs)
	require.Equal(t, []string{merged.ID}, env.store.BatchIDs())

	for _, id := range []int64{1, 2, 3, 4} {
		require.Equal(t, merged.ID, *env.order(t, id).BatchID)
	}
}

func TestSplitBatch_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 5, origin))

	pair, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)

	_, err = env.svc.SplitBatch(ctx, pair.ID, SplitHalves)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.store.GetBatch(ctx, pair.ID)
	require.NoError(t, err)

	_, err = env.svc.SplitBatch(ctx, pair.ID, "random")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.SplitBatch(ctx, "missing", SplitHalves)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Orders without windows share one bucket.
	triple, err := env.svc.CreateBatch(ctx, []int64{3, 4, 5}, "")
	require.NoError(t, err)
	_, err = env.svc.SplitBatch(ctx, triple.ID, SplitTimeWindow)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSplitBatch_OddHalvesReleasesRemainder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 3, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2, 3}, "")
	require.NoError(t, err)

	parts, err := env.svc.SplitBatch(ctx, b.ID, SplitHalves)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, []int64{1, 2}, parts[0].OrderIDs)
	require.True(t, env.order(t, 3).IsBatchable())
}

func TestSplitBatch_TimeWindow(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	orders := nearbyOrders(1, 4, origin)
	orders[0].Window = window(day.Add(13*time.Hour+30*time.Minute), time.Hour)
	orders[1].Window = window(day.Add(14*time.Hour), time.Hour)
	orders[2].Window = window(day.Add(13*time.Hour+30*time.Minute), time.Hour)
	orders[3].Window = window(day.Add(14*time.Hour), time.Hour)
	env := newTestEnv(t, orders)

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2, 3, 4}, "")
	require.NoError(t, err)

	parts, err := env.svc.SplitBatch(ctx, b.ID, SplitTimeWindow)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, []int64{1, 3}, parts[0].OrderIDs)
	require.Equal(t, []int64{2, 4}, parts[1].OrderIDs)
}

func TestMergeBatches_Rejections(t *testing.T) {
	ctx := context.Background()
	far := nearbyOrders(7, 2, geo.Offset(origin, 0, 8000))
	env := newTestEnv(t, append(nearbyOrders(1, 6, origin), far...))

	a, err := env.svc.CreateBatch(ctx, []int64{1, 2, 3}, "")
	require.NoError(t, err)
	b, err := env.svc.CreateBatch(ctx, []int64{4, 5, 6}, "")
	require.NoError(t, err)
	c, err := env.svc.CreateBatch(ctx, []int64{7, 8}, "")
	require.NoError(t, err)

	_, err = env.svc.MergeBatches(ctx, []string{a.ID, a.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.MergeBatches(ctx, []string{a.ID, b.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.MergeBatches(ctx, []string{a.ID, c.ID})
	require.True(t, domain.IsInfeasible(err))
	require.Len(t, env.store.BatchIDs(), 3)

	require.NoError(t, env.svc.UpdateBatchStatus(ctx, c.ID, domain.BatchStatusAssigned, nil))
	_, err = env.svc.MergeBatches(ctx, []string{a.ID, c.ID})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.svc.MergeBatches(ctx, []string{a.ID, "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// racingBatches runs beforeMerge ahead of the store's merge, standing in for
// another process that changes a source batch in the meantime.
type racingBatches struct {
	ports.BatchRepository
	beforeMerge func(ctx context.Context)
}

func (r *racingBatches) MergeBatches(ctx context.Context, sourceIDs []string, merged *domain.Batch) error {
	if r.beforeMerge != nil {
		r.beforeMerge(ctx)
	}
	return r.BatchRepository.MergeBatches(ctx, sourceIDs, merged)
}

func TestMergeBatches_ConcurrentChangeKeepsSources(t *testing.T) {
	ctx := context.Background()
	racing := &racingBatches{}
	env := newTestEnv(t, nearbyOrders(1, 4, origin), func(d *BatchServiceDeps) {
		racing.BatchRepository = d.Batches
		d.Batches = racing
	})

	a, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)
	b, err := env.svc.CreateBatch(ctx, []int64{3, 4}, "")
	require.NoError(t, err)

	racing.beforeMerge = func(ctx context.Context) {
		taken, err := env.store.GetBatch(ctx, b.ID)
		require.NoError(t, err)
		require.NoError(t, taken.TransitionTo(domain.BatchStatusAssigned, nil, testNow))
		require.NoError(t, env.store.UpdateBatchStatus(ctx, taken))
	}

	merged, err := env.svc.MergeBatches(ctx, []string{a.ID, b.ID})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Nil(t, merged)

	require.ElementsMatch(t, []string{a.ID, b.ID}, env.store.BatchIDs())
	for id, batchID := range map[int64]string{1: a.ID, 2: a.ID, 3: b.ID, 4: b.ID} {
		o := env.order(t, id)
		require.NotNil(t, o.BatchID, "order %d", id)
		require.Equal(t, batchID, *o.BatchID)
	}
	require.Equal(t, domain.OrderStatusBatched, env.order(t, 1).Status)
	require.True(t, env.routes.has(a.ID))
	require.True(t, env.routes.has(b.ID))
}

func TestUpdateBatchStatus_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 2, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)

	err = env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusCompleted, nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	err = env.svc.UpdateBatchStatus(ctx, b.ID, "lost", nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	driver := int64(7)
	require.NoError(t, env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusAssigned, &driver))
	got, err := env.store.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BatchStatusAssigned, got.Status)
	require.Equal(t, driver, *got.DriverID)
	require.Equal(t, testNow, *got.AssignedAt)
	require.Equal(t, domain.OrderStatusAssigned, env.order(t, 1).Status)

	require.NoError(t, env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusInProgress, nil))
	require.Equal(t, domain.OrderStatusPickedUp, env.order(t, 2).Status)

	require.NoError(t, env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusCompleted, nil))
	got, err = env.store.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, testNow, *got.CompletedAt)
	require.Equal(t, domain.OrderStatusDelivered, env.order(t, 1).Status)
	require.False(t, env.routes.has(b.ID))

	err = env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusCancelled, nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUpdateBatchStatus_CancelReleasesOrders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 2, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)
	require.NoError(t, env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusAssigned, nil))
	require.NoError(t, env.svc.UpdateBatchStatus(ctx, b.ID, domain.BatchStatusCancelled, nil))

	require.True(t, env.order(t, 1).IsBatchable())
	require.True(t, env.order(t, 2).IsBatchable())
	require.False(t, env.routes.has(b.ID))

	// Released orders can be batched again.
	_, err = env.svc.CreateBatch(ctx, []int64{1, 2}, "")
	require.NoError(t, err)
}

func TestGenerateBatchRoutes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nearbyOrders(1, 3, origin))

	b, err := env.svc.CreateBatch(ctx, []int64{1, 2, 3}, "")
	require.NoError(t, err)

	cached, err := env.routes.Get(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	route, err := env.svc.GenerateBatchRoutes(ctx, b.ID, nil)
	require.NoError(t, err)
	require.Same(t, cached, route)

	vehicle := geo.Offset(origin, -600, 0)
	driver := int64(5)
	env.positions.positions[driver] = ports.DriverPosition{DriverID: driver, Location: vehicle, ReportedAt: testNow.Add(-time.Minute)}

	live, err := env.svc.GenerateBatchRoutes(ctx, b.ID, &driver)
	require.NoError(t, err)
	require.Equal(t, vehicle, live.Nodes[0].Location)
	requireValidSequence(t, live, nearbyOrders(1, 3, origin))

	// The vehicle-start route is not shared with later callers.
	plain, err := env.svc.GenerateBatchRoutes(ctx, b.ID, nil)
	require.NoError(t, err)
	require.Same(t, cached, plain)
	require.NotEqual(t, vehicle, plain.Nodes[0].Location)
	require.Less(t, plain.TotalDistanceMeters, live.TotalDistanceMeters)

	stale := int64(6)
	env.positions.positions[stale] = ports.DriverPosition{DriverID: stale, Location: vehicle, ReportedAt: testNow.Add(-time.Hour)}
	fromCache, err := env.svc.GenerateBatchRoutes(ctx, b.ID, &stale)
	require.NoError(t, err)
	require.Same(t, cached, fromCache)

	require.NoError(t, env.routes.Delete(ctx, b.ID))
	regenerated, err := env.svc.GenerateBatchRoutes(ctx, b.ID, nil)
	require.NoError(t, err)
	require.Equal(t, nearbyOrders(1, 1, origin)[0].Pickup, regenerated.Nodes[0].Location)
	require.True(t, env.routes.has(b.ID))

	_, err = env.svc.GenerateBatchRoutes(ctx, "missing", nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateBatchRoutesRejectsTerminalBatch(t *testing.T) {
	testCases := []struct {
		name  string
		steps []domain.BatchStatus
	}{
		{name: "Cancelled", steps: []domain.BatchStatus{domain.BatchStatusCancelled}},
		{name: "Completed", steps: []domain.BatchStatus{
			domain.BatchStatusAssigned, domain.BatchStatusInProgress, domain.BatchStatusCompleted,
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, nearbyOrders(1, 2, origin))

			b, err := env.svc.CreateBatch(ctx, []int64{1, 2}, "")
			require.NoError(t, err)

			driver := int64(3)
			for _, st := range tc.steps {
				require.NoError(t, env.svc.UpdateBatchStatus(ctx, b.ID, st, &driver))
			}

			route, err := env.svc.GenerateBatchRoutes(ctx, b.ID, nil)
			require.ErrorIs(t, err, domain.ErrInvalidState)
			require.Nil(t, route)
			require.False(t, env.routes.has(b.ID))
		})
	}
}

func TestGetBatchSuggestions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoNeighbourhoods(), func(d *BatchServiceDeps) {
		d.Settings.SuggestionLimit = 2
	})

	suggestions, err := env.svc.GetBatchSuggestions(ctx, nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	require.LessOrEqual(t, len(suggestions), 2)
	if len(suggestions) == 2 {
		require.GreaterOrEqual(t, suggestions[0].Score, suggestions[1].Score)
	}

	zone := int64(42)
	suggestions, err = env.svc.GetBatchSuggestions(ctx, &zone, 5)
	require.NoError(t, err)
	require.Empty(t, suggestions)
}

func TestAutoBatch_SkipsOverlapsAndLowScores(t *testing.T) {
	ctx := context.Background()

	suggester := stubSuggester{suggestions: []Suggestion{
		{OrderIDs: []int64{4, 5}, Score: 0.80},
		{OrderIDs: []int64{1, 2, 3}, Score: 0.90},
		{OrderIDs: []int64{6, 1}, Score: 0.65},
		{OrderIDs: []int64{3, 4}, Score: 0.85},
		{OrderIDs: []int64{5, 6}, Score: 0.75},
		{OrderIDs: []int64{2, 6}, Score: 0.70},
	}}
	env := newTestEnv(t, nearbyOrders(1, 6, origin), func(d *BatchServiceDeps) {
		d.Suggester = suggester
	})

	created, err := env.svc.AutoBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, []int64{1, 2, 3}, created[0].OrderIDs)
	require.Equal(t, []int64{4, 5}, created[1].OrderIDs)
	require.True(t, env.order(t, 6).IsBatchable())
}

func TestAutoBatch_SkipsInfeasibleSuggestion(t *testing.T) {
	ctx := context.Background()

	far := newOrder(9, geo.Offset(origin, 0, 8000), geo.Offset(origin, 2000, 8000))
	suggester := stubSuggester{suggestions: []Suggestion{
		{OrderIDs: []int64{1, 9}, Score: 0.95},
		{OrderIDs: []int64{1, 2}, Score: 0.90},
	}}
	env := newTestEnv(t, append(nearbyOrders(1, 2, origin), far), func(d *BatchServiceDeps) {
		d.Suggester = suggester
	})

	created, err := env.svc.AutoBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, []int64{1, 2}, created[0].OrderIDs)
}

func TestAutoBatch_ConcurrentSweepsNeverDoubleClaim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoNeighbourhoods())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []*domain.Batch
		errs    []error
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bs, err := env.svc.AutoBatch(ctx, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			created = append(created, bs...)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)

	require.NotEmpty(t, created)
	seen := make(map[int64]string)
	for _, b := range created {
		for _, id := range b.OrderIDs {
			prev, dup := seen[id]
			require.False(t, dup, "order %d in %s and %s", id, prev, b.ID)
			seen[id] = b.ID
			require.Equal(t, b.ID, *env.order(t, id).BatchID)
		}
	}
}

func TestAutoBatch_SmallPool(t *testing.T) {
	env := newTestEnv(t, nearbyOrders(1, 1, origin))

	created, err := env.svc.AutoBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestRunScheduledOptimization(t *testing.T) {
	ctx := context.Background()

	orders := nearbyOrders(1, 3, origin)
	lone := nearbyOrders(10, 1, origin)[0]
	lone.ZoneID = 2
	other := nearbyOrders(20, 2, origin)
	for i := range other {
		other[i].ZoneID = 3
	}

	ctrl := gomock.NewController(t)
	distributor := mockwk.NewMockTaskDistributor(ctrl)
	distributor.EXPECT().DistributeAutoBatch(gomock.Any(), int64(1)).Times(1).Return(nil)
	distributor.EXPECT().DistributeAutoBatch(gomock.Any(), int64(3)).Times(1).Return(nil)

	all := append(append(orders, lone), other...)
	env := newTestEnv(t, all, func(d *BatchServiceDeps) {
		d.Distributor = distributor
	})

	require.NoError(t, env.svc.RunScheduledOptimization(ctx))
}

func TestRunScheduledOptimization_BoundedFanOut(t *testing.T) {
	ctx := context.Background()

	var orders []domain.Order
	for zone := int64(1); zone <= 6; zone++ {
		pair := nearbyOrders(zone*10, 2, origin)
		for i := range pair {
			pair[i].ZoneID = zone
		}
		orders = append(orders, pair...)
	}

	var inFlight, peak atomic.Int32
	ctrl := gomock.NewController(t)
	distributor := mockwk.NewMockTaskDistributor(ctrl)
	distributor.EXPECT().DistributeAutoBatch(gomock.Any(), gomock.Any()).Times(6).
		DoAndReturn(func(ctx context.Context, zoneID int64) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		})

	env := newTestEnv(t, orders, func(d *BatchServiceDeps) {
		d.Settings.EnqueueConcurrency = 2
		d.Distributor = distributor
	})

	require.NoError(t, env.svc.RunScheduledOptimization(ctx))
	require.LessOrEqual(t, peak.Load(), int32(2))
	require.Positive(t, peak.Load())
}

func TestRunScheduledOptimization_Errors(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, nearbyOrders(1, 2, origin))
	require.Error(t, env.svc.RunScheduledOptimization(ctx))

	ctrl := gomock.NewController(t)
	distributor := mockwk.NewMockTaskDistributor(ctrl)
	queueDown := errors.New("queue down")
	distributor.EXPECT().DistributeAutoBatch(gomock.Any(), int64(1)).Return(queueDown)

	env = newTestEnv(t, nearbyOrders(1, 2, origin), func(d *BatchServiceDeps) {
		d.Distributor = distributor
	})
	require.ErrorIs(t, env.svc.RunScheduledOptimization(ctx), queueDown)
}

// Randomised create attempts: every accepted batch must satisfy the size,
// spread, window, savings and duration rules, and no order may end up in
// two batches.
func TestCreateBatch_AcceptedBatchesHoldInvariants(t *testing.T) {
	ctx := context.Background()
	settings := domain.DefaultBatchSettings()
	rng := rand.New(rand.NewPCG(2026, 3))
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	orders := make([]domain.Order, 0, 40)
	for i := 0; i < 40; i++ {
		o := newOrder(int64(i+1),
			geo.Offset(origin, rng.Float64()*4000-2000, rng.Float64()*4000-2000),
			geo.Offset(origin, rng.Float64()*6000, rng.Float64()*6000-3000),
		)
		if rng.IntN(2) == 0 {
			o.Window = window(day.Add(time.Duration(12+rng.IntN(6))*time.Hour), time.Hour)
		}
		orders = append(orders, o)
	}
	byID := make(map[int64]domain.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	env := newTestEnv(t, orders)
	accepted := 0

	for attempt := 0; attempt < 300; attempt++ {
		size := 2 + rng.IntN(4)
		ids := make([]int64, 0, size)
		for _, j := range rng.Perm(len(orders))[:size] {
			ids = append(ids, int64(j+1))
		}

		b, err := env.svc.CreateBatch(ctx, ids, "")
		if err != nil {
			require.True(t, domain.IsInfeasible(err) || errors.Is(err, domain.ErrValidation), "unexpected error: %v", err)
			continue
		}
		accepted++

		group := make([]domain.Order, 0, len(b.OrderIDs))
		pickups := make([]domain.Coordinates, 0, len(b.OrderIDs))
		deliveries := make([]domain.Coordinates, 0, len(b.OrderIDs))
		for _, id := range b.OrderIDs {
			o := byID[id]
			group = append(group, o)
			pickups = append(pickups, o.Pickup)
			deliveries = append(deliveries, o.Delivery)
		}

		require.GreaterOrEqual(t, len(group), settings.MinBatchSize)
		require.LessOrEqual(t, len(group), settings.MaxBatchSize)
		require.LessOrEqual(t, geo.MaxDistanceFrom(geo.Centroid(pickups), pickups), settings.MaxPickupRadius)
		require.LessOrEqual(t, geo.MaxDistanceFrom(geo.Centroid(deliveries), deliveries), settings.MaxDeliveryRadius)
		require.True(t, windowsOverlap(group))
		require.GreaterOrEqual(t, b.SavingsPercentage, settings.MinSavingsPercent)
		require.LessOrEqual(t, b.EstimatedDuration, settings.MaxDeliveryTime)
	}
	require.Positive(t, accepted)

	counts := make(map[int64]int)
	for _, id := range env.store.BatchIDs() {
		b, err := env.store.GetBatch(ctx, id)
		require.NoError(t, err)
		for _, oid := range b.OrderIDs {
			counts[oid]++
			require.Equal(t, id, *env.order(t, oid).BatchID)
		}
	}
	for id, n := range counts {
		require.Equal(t, 1, n, "order %d batched %d times", id, n)
	}
}
