package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/metrics"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/ports"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Suggester produces candidate batches from a pool of unbatched orders.
type Suggester interface {
	Suggestions(orders []domain.Order, maxBatchSize int) []Suggestion
}

// BatchServiceDeps lists the collaborators of BatchService.
// RouteCache, PositionFeed, Distributor and Metrics are optional.
type BatchServiceDeps struct {
	Settings     domain.BatchSettings
	Orders       ports.OrderRepository
	Batches      ports.BatchRepository
	RouteCache   ports.RouteCache
	PositionFeed ports.PositionFeed
	Distributor  ports.TaskDistributor
	Checker      *FeasibilityChecker
	Suggester    Suggester
	Router       *RouteGenerator
	Metrics      *metrics.Metrics
	Now          func() time.Time
	NewID        func() string
}

// OptimizeResult is the outcome of OptimizeBatch. When Dissolved is set the
// batch no longer exists and ReleasedOrderIDs lists its former orders, now
// back in the unbatched pool.
type OptimizeResult struct {
	Batch            *domain.Batch
	Route            *domain.Route
	Dissolved        bool
	ReleasedOrderIDs []int64
}

// SplitStrategy selects how SplitBatch partitions a batch.
type SplitStrategy string

const (
	SplitHalves     SplitStrategy = "halves"
	SplitGeographic SplitStrategy = "geographic"
	SplitTimeWindow SplitStrategy = "time_window"
)

// BatchService owns batch state transitions and the auto-batching sweep.
//
// Mutations of one batch are serialised in-process by batch id; claims on
// orders are made atomic by the BatchRepository.
type BatchService struct {
	settings  domain.BatchSettings
	orders    ports.OrderRepository
	batches   ports.BatchRepository
	routes    ports.RouteCache
	positions ports.PositionFeed
	tasks     ports.TaskDistributor
	checker   *FeasibilityChecker
	suggester Suggester
	router    *RouteGenerator
	metrics   *metrics.Metrics
	locks     *keyedMutex
	now       func() time.Time
	newID     func() string
}

func NewBatchService(deps BatchServiceDeps) (*BatchService, error) {
	if deps.Orders == nil || deps.Batches == nil {
		return nil, errors.New("new batch service: order and batch repositories are required")
	}
	if err := deps.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("new batch service: %w", err)
	}

	s := &BatchService{
		settings:  deps.Settings,
		orders:    deps.Orders,
		batches:   deps.Batches,
		routes:    deps.RouteCache,
		positions: deps.PositionFeed,
		tasks:     deps.Distributor,
		checker:   deps.Checker,
		suggester: deps.Suggester,
		router:    deps.Router,
		metrics:   deps.Metrics,
		locks:     newKeyedMutex(),
		now:       deps.Now,
		newID:     deps.NewID,
	}

	if s.checker == nil {
		s.checker = NewFeasibilityChecker(s.settings)
	}
	if s.suggester == nil {
		s.suggester = NewGroupingEngine(s.settings, s.checker)
	}
	if s.router == nil {
		s.router = NewRouteGenerator(s.settings)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}

	return s, nil
}

// CreateBatch validates that the orders are confirmed and unbatched, checks
// feasibility, persists the batch and caches its route.
func (s *BatchService) CreateBatch(ctx context.Context, orderIDs []int64, strategy string) (_ *domain.Batch, err error) {
	defer obs.Time(ctx, "batch.Create")(&err)

	rs := domain.RouteStrategy(strategy)
	if !rs.IsValid() {
		return nil, fmt.Errorf("create batch: %w: unknown route strategy %q", domain.ErrValidation, strategy)
	}

	orders, err := s.loadOrders(ctx, uniqueIDs(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	for _, o := range orders {
		if err := checkBatchable(o); err != nil {
			return nil, fmt.Errorf("create batch: %w", err)
		}
	}

	return s.createFromOrders(ctx, orders, rs)
}

// GetBatchSuggestions returns the top candidate batches for the unbatched
// pool of a zone (all zones when zoneID is nil).
func (s *BatchService) GetBatchSuggestions(ctx context.Context, zoneID *int64, maxBatchSize int) (_ []Suggestion, err error) {
	defer obs.Time(ctx, "batch.Suggestions")(&err)

	pool, err := s.orders.ListUnbatchedOrders(ctx, zoneID, s.settings.SuggestionPoolSize)
	if err != nil {
		return nil, fmt.Errorf("batch suggestions: list unbatched orders: %w", err)
	}

	suggestions := s.suggester.Suggestions(pool, maxBatchSize)
	SortSuggestions(suggestions)
	if len(suggestions) > s.settings.SuggestionLimit {
		suggestions = suggestions[:s.settings.SuggestionLimit]
	}
	return suggestions, nil
}

// OptimizeBatch removes and adds orders on a pending batch, re-checks it and
// regenerates its route. A batch left with too few orders is dissolved.
func (s *BatchService) OptimizeBatch(ctx context.Context, batchID string, addIDs, removeIDs []int64) (_ *OptimizeResult, err error) {
	defer obs.Time(ctx, "batch.Optimize")(&err)

	unlock := s.locks.Lock(batchLockKey(batchID))
	defer unlock()

	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("optimize batch: %w", err)
	}
	if batch.Status != domain.BatchStatusPending {
		return nil, fmt.Errorf("optimize batch: %w: batch %s is %s; only pending batches can be optimized",
			domain.ErrInvalidState, batch.ID, batch.Status)
	}

	removeIDs = uniqueIDs(removeIDs)
	for _, id := range removeIDs {
		if !batch.HasOrder(id) {
			return nil, fmt.Errorf("optimize batch: %w: order %d is not in batch %s", domain.ErrValidation, id, batch.ID)
		}
	}

	var added []int64
	for _, id := range uniqueIDs(addIDs) {
		if !batch.HasOrder(id) && !slices.Contains(removeIDs, id) {
			added = append(added, id)
		}
	}
	if len(added) > 0 {
		addOrders, err := s.loadOrders(ctx, added)
		if err != nil {
			return nil, fmt.Errorf("optimize batch: %w", err)
		}
		for _, o := range addOrders {
			if err := checkBatchable(o); err != nil {
				return nil, fmt.Errorf("optimize batch: %w", err)
			}
		}
	}

	next := make([]int64, 0, len(batch.OrderIDs)+len(added))
	for _, id := range batch.OrderIDs {
		if !slices.Contains(removeIDs, id) {
			next = append(next, id)
		}
	}
	next = append(next, added...)

	if len(next) < s.settings.MinBatchSize {
		if err := s.dissolve(ctx, batch.ID); err != nil {
			return nil, fmt.Errorf("optimize batch: %w", err)
		}
		log.Info().
			Str("batch_id", batch.ID).
			Int("remaining_orders", len(next)).
			Msg("batch dissolved after optimization")
		return &OptimizeResult{Dissolved: true, ReleasedOrderIDs: batch.OrderIDs}, nil
	}
	if len(next) > s.settings.MaxBatchSize {
		return nil, fmt.Errorf("optimize batch: %w: batch would have %d orders; maximum is %d",
			domain.ErrValidation, len(next), s.settings.MaxBatchSize)
	}

	orders, err := s.loadOrders(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("optimize batch: %w", err)
	}

	res := s.checker.Check(orders)
	if !res.Feasible {
		s.metrics.FeasibilityRejected(string(res.Code))
		return nil, &domain.InfeasibleError{Reason: res.Reason}
	}

	batch.OrderIDs = next
	batch.ApplyMetrics(res)
	batch.UpdatedAt = s.now()

	if err := s.batches.ReplaceBatchOrders(ctx, batch, added, removeIDs); err != nil {
		return nil, fmt.Errorf("optimize batch: %w", err)
	}

	route, err := s.refreshRoute(ctx, batch.ID, orders, domain.RouteStrategyAuto, nil)
	if err != nil {
		return nil, fmt.Errorf("optimize batch: %w", err)
	}

	return &OptimizeResult{Batch: batch, Route: route}, nil
}

// GenerateBatchRoutes returns the batch's route. With a driver id and a
// fresh position in the feed, the route starts at the vehicle; otherwise a
// cached route is reused when present. Completed and cancelled batches have
// no route.
func (s *BatchService) GenerateBatchRoutes(ctx context.Context, batchID string, driverID *int64) (_ *domain.Route, err error) {
	defer obs.Time(ctx, "batch.GenerateRoutes")(&err)

	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("generate batch routes: %w", err)
	}
	if batch.Status.IsTerminal() {
		return nil, fmt.Errorf("generate batch routes: %w: batch %s is %s", domain.ErrInvalidState, batch.ID, batch.Status)
	}

	start := s.driverStart(ctx, driverID)

	if start == nil && s.routes != nil {
		cached, err := s.routes.Get(ctx, batch.ID)
		if err != nil {
			log.Warn().Err(err).Str("batch_id", batch.ID).Msg("route cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	orders, err := s.loadOrders(ctx, batch.OrderIDs)
	if err != nil {
		return nil, fmt.Errorf("generate batch routes: %w", err)
	}

	route, err := s.refreshRoute(ctx, batch.ID, orders, domain.RouteStrategyAuto, start)
	if err != nil {
		return nil, fmt.Errorf("generate batch routes: %w", err)
	}
	return route, nil
}

// SplitBatch partitions a pending batch, dissolves it and creates one new
// batch per group of at least MinBatchSize orders. Groups that fail the
// feasibility check are skipped and their orders stay unbatched.
func (s *BatchService) SplitBatch(ctx context.Context, batchID string, strategy SplitStrategy) (_ []*domain.Batch, err error) {
	defer obs.Time(ctx, "batch.Split")(&err)

	switch strategy {
	case SplitHalves, SplitGeographic, SplitTimeWindow:
	default:
		return nil, fmt.Errorf("split batch: %w: unknown split strategy %q", domain.ErrValidation, strategy)
	}

	unlock := s.locks.Lock(batchLockKey(batchID))
	defer unlock()

	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("split batch: %w", err)
	}
	if batch.Status != domain.BatchStatusPending {
		return nil, fmt.Errorf("split batch: %w: batch %s is %s; only pending batches can be split",
			domain.ErrInvalidState, batch.ID, batch.Status)
	}

	orders, err := s.loadOrders(ctx, batch.OrderIDs)
	if err != nil {
		return nil, fmt.Errorf("split batch: %w", err)
	}

	groups := s.splitOrders(orders, strategy)
	if len(groups) < 2 {
		return nil, fmt.Errorf("split batch: %w: %s split of batch %s yields a single group",
			domain.ErrValidation, strategy, batch.ID)
	}

	var viable [][]domain.Order
	for _, g := range groups {
		if len(g) >= s.settings.MinBatchSize {
			viable = append(viable, g)
		}
	}
	if len(viable) == 0 {
		return nil, fmt.Errorf("split batch: %w: %s split of batch %s yields no group of %d or more orders",
			domain.ErrValidation, strategy, batch.ID, s.settings.MinBatchSize)
	}

	if err := s.dissolve(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("split batch: %w", err)
	}

	created := make([]*domain.Batch, 0, len(viable))
	for _, g := range viable {
		nb, err := s.createFromOrders(ctx, released(g), domain.RouteStrategyAuto)
		if err != nil {
			log.Warn().
				Err(err).
				Str("batch_id", batch.ID).
				Ints64("order_ids", domain.OrderIDs(g)).
				Msg("split group not batched")
			continue
		}
		created = append(created, nb)
	}

	log.Info().
		Str("batch_id", batch.ID).
		Str("strategy", string(strategy)).
		Int("groups", len(groups)).
		Int("created", len(created)).
		Msg("batch split")

	return created, nil
}

// MergeBatches pools the orders of pending batches into one new batch and
// dissolves the originals. The pooled set is checked before anything changes.
func (s *BatchService) MergeBatches(ctx context.Context, batchIDs []string) (_ *domain.Batch, err error) {
	defer obs.Time(ctx, "batch.Merge")(&err)

	ids := slices.Clone(batchIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) < 2 {
		return nil, fmt.Errorf("merge batches: %w: at least two distinct batches are required", domain.ErrValidation)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, batchLockKey(id))
	}
	unlock := s.locks.LockAll(keys)
	defer unlock()

	var pooled []int64
	for _, id := range ids {
		b, err := s.batches.GetBatch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("merge batches: %w", err)
		}
		if b.Status != domain.BatchStatusPending {
			return nil, fmt.Errorf("merge batches: %w: batch %s is %s; only pending batches can be merged",
				domain.ErrInvalidState, b.ID, b.Status)
		}
		pooled = append(pooled, b.OrderIDs...)
	}

	if len(pooled) > s.settings.MaxBatchSize {
		return nil, fmt.Errorf("merge batches: %w: merged batch would have %d orders; maximum is %d",
			domain.ErrValidation, len(pooled), s.settings.MaxBatchSize)
	}

	orders, err := s.loadOrders(ctx, pooled)
	if err != nil {
		return nil, fmt.Errorf("merge batches: %w", err)
	}

	res := s.checker.Check(orders)
	if !res.Feasible {
		s.metrics.FeasibilityRejected(string(res.Code))
		return nil, &domain.InfeasibleError{Reason: res.Reason}
	}

	pooledOrders := released(orders)
	merged := domain.NewBatch(s.newID(), pooledOrders, res, s.now())
	if err := s.batches.MergeBatches(ctx, ids, merged); err != nil {
		return nil, fmt.Errorf("merge batches: %w", err)
	}

	for _, id := range ids {
		s.metrics.BatchDissolved()
		s.dropRoute(ctx, id)
	}
	s.created(ctx, merged, pooledOrders, domain.RouteStrategyAuto)
	return merged, nil
}

// UpdateBatchStatus applies a status transition and cascades it to the orders.
func (s *BatchService) UpdateBatchStatus(ctx context.Context, batchID string, status domain.BatchStatus, driverID *int64) (err error) {
	defer obs.Time(ctx, "batch.UpdateStatus")(&err)

	if !status.IsValid() {
		return fmt.Errorf("update batch status: %w: unknown status %q", domain.ErrValidation, status)
	}

	unlock := s.locks.Lock(batchLockKey(batchID))
	defer unlock()

	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}

	if err := batch.TransitionTo(status, driverID, s.now()); err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}

	if err := s.batches.UpdateBatchStatus(ctx, batch); err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	s.metrics.StatusChanged(string(status))

	if status.IsTerminal() {
		s.dropRoute(ctx, batch.ID)
	}

	log.Info().
		Str("batch_id", batch.ID).
		Str("status", string(status)).
		Msg("batch status updated")
	return nil
}

// RunScheduledOptimization enqueues one auto-batch task per zone that holds
// enough unbatched confirmed orders.
func (s *BatchService) RunScheduledOptimization(ctx context.Context) (err error) {
	defer obs.Time(ctx, "batch.ScheduledOptimization")(&err)

	if s.tasks == nil {
		return errors.New("scheduled optimization: task distributor is not configured")
	}

	zones, err := s.orders.ListZonesWithUnbatchedOrders(ctx, s.settings.MinBatchSize)
	if err != nil {
		return fmt.Errorf("scheduled optimization: list zones: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.EnqueueConcurrency)
	for _, zone := range zones {
		g.Go(func() error {
			if err := s.tasks.DistributeAutoBatch(gctx, zone); err != nil {
				return fmt.Errorf("scheduled optimization: enqueue zone %d: %w", zone, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Int("zones", len(zones)).Msg("scheduled optimization enqueued")
	return nil
}

// AutoBatch materialises the best non-overlapping suggestions for a zone.
// Suggestions are taken in descending score order; any suggestion scoring at
// or below AutoBatchMinScore, or reusing an order already consumed, is skipped.
func (s *BatchService) AutoBatch(ctx context.Context, zoneID int64) (_ []*domain.Batch, err error) {
	defer obs.Time(ctx, "batch.AutoBatch")(&err)

	unlock := s.locks.Lock(fmt.Sprintf("zone:%d", zoneID))
	defer unlock()

	pool, err := s.orders.ListUnbatchedOrders(ctx, &zoneID, s.settings.SuggestionPoolSize)
	if err != nil {
		return nil, fmt.Errorf("auto batch: list unbatched orders: %w", err)
	}
	if len(pool) < s.settings.MinBatchSize {
		return nil, nil
	}

	byID := make(map[int64]domain.Order, len(pool))
	for _, o := range pool {
		byID[o.ID] = o
	}

	suggestions := s.suggester.Suggestions(pool, s.settings.MaxBatchSize)
	SortSuggestions(suggestions)

	consumed := make(map[int64]bool)
	var created []*domain.Batch

	for _, sg := range suggestions {
		if sg.Score <= s.settings.AutoBatchMinScore {
			s.metrics.AutoBatchSkipped("low_score")
			continue
		}

		orders, ok := pickOrders(byID, consumed, sg.OrderIDs)
		if !ok {
			s.metrics.AutoBatchSkipped("overlap")
			continue
		}

		b, err := s.createFromOrders(ctx, orders, domain.RouteStrategyAuto)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			s.metrics.AutoBatchSkipped("create_failed")
			log.Warn().
				Err(err).
				Int64("zone_id", zoneID).
				Ints64("order_ids", sg.OrderIDs).
				Msg("auto batch suggestion not materialized")
			continue
		}

		for _, id := range sg.OrderIDs {
			consumed[id] = true
		}
		created = append(created, b)
	}

	log.Info().
		Int64("zone_id", zoneID).
		Int("pool", len(pool)).
		Int("suggestions", len(suggestions)).
		Int("created", len(created)).
		Msg("auto batch finished")

	return created, nil
}

func (s *BatchService) createFromOrders(ctx context.Context, orders []domain.Order, strategy domain.RouteStrategy) (*domain.Batch, error) {
	res := s.checker.Check(orders)
	if !res.Feasible {
		s.metrics.FeasibilityRejected(string(res.Code))
		return nil, &domain.InfeasibleError{Reason: res.Reason}
	}

	batch := domain.NewBatch(s.newID(), orders, res, s.now())
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	s.created(ctx, batch, orders, strategy)
	return batch, nil
}

// created records a persisted batch and caches its initial route.
func (s *BatchService) created(ctx context.Context, batch *domain.Batch, orders []domain.Order, strategy domain.RouteStrategy) {
	s.metrics.BatchCreated()

	log.Info().
		Str("batch_id", batch.ID).
		Ints64("order_ids", batch.OrderIDs).
		Float64("savings_pct", batch.SavingsPercentage).
		Dur("estimated_duration", batch.EstimatedDuration).
		Msg("batch created")

	if _, err := s.refreshRoute(ctx, batch.ID, orders, strategy, nil); err != nil {
		log.Warn().Err(err).Str("batch_id", batch.ID).Msg("initial route generation failed")
	}
}

// refreshRoute generates a route and, when it starts at the first pickup,
// stores it in the cache. Cache failures are logged only.
func (s *BatchService) refreshRoute(ctx context.Context, batchID string, orders []domain.Order, strategy domain.RouteStrategy, start *domain.Coordinates) (*domain.Route, error) {
	began := time.Now()
	route, err := s.router.Generate(RouteRequest{
		BatchID:  batchID,
		Orders:   orders,
		Start:    start,
		DepartAt: s.now(),
		Strategy: strategy,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveRouteGeneration(time.Since(began))

	if !route.Feasible {
		log.Info().
			Str("batch_id", batchID).
			Strs("violations", route.Violations).
			Msg("generated route violates constraints")
	}

	// Routes from a live vehicle position are per-request and never shared.
	if s.routes != nil && start == nil {
		if err := s.routes.Set(ctx, route, s.settings.RouteCacheTTL); err != nil {
			log.Warn().Err(err).Str("batch_id", batchID).Msg("route cache write failed")
		}
	}
	return route, nil
}

func (s *BatchService) dissolve(ctx context.Context, batchID string) error {
	if err := s.batches.DissolveBatch(ctx, batchID); err != nil {
		return fmt.Errorf("dissolve batch %s: %w", batchID, err)
	}
	s.metrics.BatchDissolved()
	s.dropRoute(ctx, batchID)
	return nil
}

func (s *BatchService) dropRoute(ctx context.Context, batchID string) {
	if s.routes == nil {
		return
	}
	if err := s.routes.Delete(ctx, batchID); err != nil {
		log.Warn().Err(err).Str("batch_id", batchID).Msg("route cache delete failed")
	}
}

// driverStart returns the driver's live position when it is fresh enough.
func (s *BatchService) driverStart(ctx context.Context, driverID *int64) *domain.Coordinates {
	if driverID == nil || s.positions == nil {
		return nil
	}

	pos, err := s.positions.GetDriverPosition(ctx, *driverID)
	if err != nil {
		log.Warn().Err(err).Int64("driver_id", *driverID).Msg("driver position lookup failed")
		return nil
	}
	if pos == nil || !pos.Location.IsValid() {
		return nil
	}
	if s.now().Sub(pos.ReportedAt) > s.settings.PositionMaxAge {
		log.Debug().Int64("driver_id", *driverID).Time("reported_at", pos.ReportedAt).Msg("driver position is stale")
		return nil
	}

	loc := pos.Location
	return &loc
}

// loadOrders fetches orders and returns them in the order of ids.
func (s *BatchService) loadOrders(ctx context.Context, ids []int64) ([]domain.Order, error) {
	found, err := s.orders.GetOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	byID := make(map[int64]domain.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}

	out := make([]domain.Order, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, o)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w: unknown order ids %v", domain.ErrValidation, domain.ErrNotFound, missing)
	}
	return out, nil
}

func (s *BatchService) splitOrders(orders []domain.Order, strategy SplitStrategy) [][]domain.Order {
	switch strategy {
	case SplitGeographic:
		return clusterOrders(orders, 2, s.settings.KMeansSeed)
	case SplitTimeWindow:
		return bucketByWindow(orders)
	default:
		mid := (len(orders) + 1) / 2
		return [][]domain.Order{orders[:mid], orders[mid:]}
	}
}

func checkBatchable(o domain.Order) error {
	if o.BatchID != nil {
		return fmt.Errorf("%w: order %d already belongs to batch %s", domain.ErrValidation, o.ID, *o.BatchID)
	}
	if o.Status != domain.OrderStatusConfirmed {
		return fmt.Errorf("%w: order %d is %s, not confirmed", domain.ErrValidation, o.ID, o.Status)
	}
	return nil
}

// released returns copies of orders as they look after their batch is dissolved.
func released(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		o.BatchID = nil
		o.Status = domain.OrderStatusConfirmed
		out[i] = o
	}
	return out
}

func pickOrders(byID map[int64]domain.Order, consumed map[int64]bool, ids []int64) ([]domain.Order, bool) {
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o, ok := byID[id]
		if !ok || consumed[id] {
			return nil, false
		}
		orders = append(orders, o)
	}
	return orders, true
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func batchLockKey(id string) string { return "batch:" + id }
