package domain

import "time"

type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindPickup   NodeKind = "pickup"
	NodeKindDelivery NodeKind = "delivery"
)

const (
	PickupServiceDuration   = 300 * time.Second
	DeliveryServiceDuration = 180 * time.Second
)

// RouteStrategy selects the sequencing heuristic used by the route generator.
type RouteStrategy string

const (
	RouteStrategyAuto            RouteStrategy = "auto"
	RouteStrategyClusterFirst    RouteStrategy = "cluster_first"
	RouteStrategyNearestNeighbor RouteStrategy = "nearest_neighbor"
	RouteStrategySavings         RouteStrategy = "savings"
)

func (s RouteStrategy) IsValid() bool {
	switch s {
	case "", RouteStrategyAuto, RouteStrategyClusterFirst, RouteStrategyNearestNeighbor, RouteStrategySavings:
		return true
	}
	return false
}

// Represents a single stop in a batch route.
// OrderID is nil for the start node. Arrival and departure are filled in
// once the sequence is fixed.
type RouteNode struct {
	Kind               NodeKind
	OrderID            *int64
	Location           Coordinates
	Address            string
	ServiceDuration    time.Duration
	EstimatedArrival   time.Time
	EstimatedDeparture time.Time
}

// ServiceDurationFor returns the fixed dwell time for a node kind.
func ServiceDurationFor(kind NodeKind) time.Duration {
	switch kind {
	case NodeKindPickup:
		return PickupServiceDuration
	case NodeKindDelivery:
		return DeliveryServiceDuration
	}
	return 0
}

// Represents the generated stop sequence for one batch.
// A Route is returned even when it violates constraints; Feasible and
// Violations describe the verdict.
type Route struct {
	BatchID             string
	Strategy            RouteStrategy
	Nodes               []RouteNode
	TotalDistanceMeters float64
	TotalDuration       time.Duration
	Feasible            bool
	Violations          []string
	GeneratedAt         time.Time
}
