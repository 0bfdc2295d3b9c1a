package services

import (
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/geo"
	"errors"
	"fmt"
	"time"
)

// RouteRequest describes the orders of one batch to be sequenced.
// Start is the live vehicle position when known; otherwise the route starts
// at the first order's pickup.
type RouteRequest struct {
	BatchID  string
	Orders   []domain.Order
	Start    *domain.Coordinates
	DepartAt time.Time
	Strategy domain.RouteStrategy
}

// RouteGenerator builds pickup/delivery stop sequences for confirmed batches.
type RouteGenerator struct {
	settings   domain.BatchSettings
	strategies []routeStrategy
}

func NewRouteGenerator(settings domain.BatchSettings) *RouteGenerator {
	return &RouteGenerator{
		settings: settings,
		strategies: []routeStrategy{
			clusterFirstRoute{radius: settings.RouteClusterRadius},
			nearestNeighborRoute{},
			savingsRoute{},
		},
	}
}

// Generate sequences the batch with the requested strategy (all of them for
// auto), keeps the shortest sequence, times it and validates it.
//
// Constraint violations do not produce an error: the route is returned with
// Feasible=false and the violations listed.
func (g *RouteGenerator) Generate(req RouteRequest) (*domain.Route, error) {
	if len(req.Orders) == 0 {
		return nil, errors.New("generate route: orders must not be empty")
	}
	if !req.Strategy.IsValid() {
		return nil, fmt.Errorf("generate route: %w: unknown route strategy %q", domain.ErrValidation, req.Strategy)
	}

	p := newRouteProblem(req.Orders, req.Start)

	var (
		bestSeq      []int
		bestDist     float64
		bestStrategy domain.RouteStrategy
	)
	for _, s := range g.strategies {
		if req.Strategy != "" && req.Strategy != domain.RouteStrategyAuto && req.Strategy != s.Name() {
			continue
		}

		seq := repairPrecedence(p, s.Sequence(p))
		dist := p.sequenceDistance(seq)
		// Strict comparison keeps the earlier strategy on ties.
		if bestSeq == nil || dist < bestDist {
			bestSeq, bestDist, bestStrategy = seq, dist, s.Name()
		}
	}

	nodes := make([]domain.RouteNode, 0, len(bestSeq)+1)
	nodes = append(nodes, domain.RouteNode{
		Kind:     domain.NodeKindStart,
		Location: p.start,
		Address:  "start",
	})
	for _, i := range bestSeq {
		nodes = append(nodes, p.nodes[i])
	}

	route := &domain.Route{
		BatchID:     req.BatchID,
		Strategy:    bestStrategy,
		Nodes:       nodes,
		GeneratedAt: req.DepartAt,
	}
	g.schedule(route, req.DepartAt)
	route.Violations = validateRoute(route, req.Orders)
	route.Feasible = len(route.Violations) == 0

	return route, nil
}

// schedule walks the route filling arrival and departure times:
// arrival[i] = departure[i-1] + travel, departure[i] = arrival[i] + service.
func (g *RouteGenerator) schedule(route *domain.Route, departAt time.Time) {
	var total float64
	for i := range route.Nodes {
		node := &route.Nodes[i]
		if i == 0 {
			node.EstimatedArrival = departAt
			node.EstimatedDeparture = departAt
			continue
		}

		prev := route.Nodes[i-1]
		leg := geo.Distance(prev.Location, node.Location)
		total += leg

		node.EstimatedArrival = prev.EstimatedDeparture.Add(geo.TravelTime(leg, g.settings.AverageSpeedKmh))
		node.EstimatedDeparture = node.EstimatedArrival.Add(node.ServiceDuration)
	}

	route.TotalDistanceMeters = total
	last := route.Nodes[len(route.Nodes)-1]
	route.TotalDuration = last.EstimatedDeparture.Sub(departAt)
}

// validateRoute reports delivery window misses and precedence breaks.
func validateRoute(route *domain.Route, orders []domain.Order) []string {
	byID := make(map[int64]domain.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	pickedUp := make(map[int64]int, len(orders))
	violations := []string{}

	for idx, node := range route.Nodes {
		if node.OrderID == nil {
			continue
		}
		id := *node.OrderID

		switch node.Kind {
		case domain.NodeKindPickup:
			pickedUp[id] = idx
		case domain.NodeKindDelivery:
			if p, ok := pickedUp[id]; !ok || p >= idx {
				violations = append(violations, fmt.Sprintf("Order %d delivered before pickup", id))
			}

			o := byID[id]
			if o.Window == nil || o.Window.Contains(node.EstimatedArrival) {
				continue
			}
			if node.EstimatedArrival.After(o.Window.End) {
				violations = append(violations, fmt.Sprintf(
					"Order %d delivery arrives at %s, after window end %s",
					id, node.EstimatedArrival.Format("15:04"), o.Window.End.Format("15:04")))
			} else {
				violations = append(violations, fmt.Sprintf(
					"Order %d delivery arrives at %s, before window start %s",
					id, node.EstimatedArrival.Format("15:04"), o.Window.Start.Format("15:04")))
			}
		}
	}

	return violations
}

// routeProblem indexes pickup nodes as 0..n-1 and the matching delivery
// nodes as n..2n-1, so delivery i belongs to pickup i-n.
type routeProblem struct {
	start domain.Coordinates
	nodes []domain.RouteNode
	n     int
}

func newRouteProblem(orders []domain.Order, start *domain.Coordinates) *routeProblem {
	n := len(orders)
	p := &routeProblem{n: n, nodes: make([]domain.RouteNode, 2*n)}

	for i, o := range orders {
		id := o.ID
		pickupAddr := o.PickupAddress
		if pickupAddr == "" {
			pickupAddr = o.MerchantName
		}

		p.nodes[i] = domain.RouteNode{
			Kind:            domain.NodeKindPickup,
			OrderID:         &id,
			Location:        o.Pickup,
			Address:         pickupAddr,
			ServiceDuration: domain.ServiceDurationFor(domain.NodeKindPickup),
		}
		p.nodes[n+i] = domain.RouteNode{
			Kind:            domain.NodeKindDelivery,
			OrderID:         &id,
			Location:        o.Delivery,
			Address:         o.DeliveryAddress,
			ServiceDuration: domain.ServiceDurationFor(domain.NodeKindDelivery),
		}
	}

	p.start = orders[0].Pickup
	if start != nil {
		p.start = *start
	}
	return p
}

func (p *routeProblem) isPickup(i int) bool { return i < p.n }

func (p *routeProblem) pickupOf(i int) int { return i - p.n }

func (p *routeProblem) loc(i int) domain.Coordinates { return p.nodes[i].Location }

func (p *routeProblem) dist(i, j int) float64 { return geo.Distance(p.loc(i), p.loc(j)) }

func (p *routeProblem) sequenceDistance(seq []int) float64 {
	var total float64
	cur := p.start
	for _, i := range seq {
		total += geo.Distance(cur, p.loc(i))
		cur = p.loc(i)
	}
	return total
}

// repairPrecedence moves any delivery that precedes its pickup to directly
// after that pickup, leaving everything else in place.
func repairPrecedence(p *routeProblem, seq []int) []int {
	out := make([]int, 0, len(seq))
	seen := make([]bool, 2*p.n)
	deferred := make(map[int]bool)

	for _, i := range seq {
		if !p.isPickup(i) && !seen[p.pickupOf(i)] {
			deferred[i] = true
			continue
		}
		out = append(out, i)
		seen[i] = true

		if p.isPickup(i) && deferred[i+p.n] {
			out = append(out, i+p.n)
			seen[i+p.n] = true
			delete(deferred, i+p.n)
		}
	}

	return out
}
