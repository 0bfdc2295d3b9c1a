package services

import (
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/geo"
	"fmt"
	"math"
	"time"
)

// FeasibilityChecker decides whether a candidate set of orders forms a legal,
// worthwhile batch. It never fails: infeasibility is reported through the
// result's Reason.
type FeasibilityChecker struct {
	settings domain.BatchSettings
}

func NewFeasibilityChecker(settings domain.BatchSettings) *FeasibilityChecker {
	return &FeasibilityChecker{settings: settings}
}

// Check runs the spread, time-window, savings and duration checks in order
// and stops at the first failure.
func (c *FeasibilityChecker) Check(orders []domain.Order) domain.FeasibilityResult {
	s := c.settings
	n := len(orders)

	if n < s.MinBatchSize {
		return rejected(domain.RejectTooFewOrders, fmt.Sprintf(domain.ReasonTooFewOrders, s.MinBatchSize))
	}
	if n > s.MaxBatchSize {
		return rejected(domain.RejectTooManyOrders, fmt.Sprintf(domain.ReasonTooManyOrders, s.MaxBatchSize))
	}

	pickups := make([]domain.Coordinates, 0, n)
	deliveries := make([]domain.Coordinates, 0, n)
	for _, o := range orders {
		pickups = append(pickups, o.Pickup)
		deliveries = append(deliveries, o.Delivery)
	}

	pickupCenter := geo.Centroid(pickups)
	if geo.MaxDistanceFrom(pickupCenter, pickups) > s.MaxPickupRadius {
		return rejected(domain.RejectPickupSpread, domain.ReasonPickupSpread)
	}

	deliveryCenter := geo.Centroid(deliveries)
	if geo.MaxDistanceFrom(deliveryCenter, deliveries) > s.MaxDeliveryRadius {
		return rejected(domain.RejectDeliverySpread, domain.ReasonDeliverySpread)
	}

	if !windowsOverlap(orders) {
		return rejected(domain.RejectTimeWindow, domain.ReasonWindowsIncompatible)
	}

	depot := pickupCenter
	if s.Depot != nil {
		depot = *s.Depot
	}

	var individual float64
	for _, o := range orders {
		individual += geo.Distance(depot, o.Pickup) + geo.Distance(o.Pickup, o.Delivery)
	}

	points := make([]domain.Coordinates, 0, 2*n)
	points = append(points, pickups...)
	points = append(points, deliveries...)
	batchDistance := nearestNeighborTourLength(depot, points)

	var savings float64
	if individual > 0 {
		savings = (individual - batchDistance) / individual * 100
	}

	duration := geo.TravelTime(batchDistance, s.AverageSpeedKmh) +
		time.Duration(n)*s.PickupServiceTime +
		time.Duration(n)*s.DeliveryServiceTime

	res := domain.FeasibilityResult{
		TotalDistanceMeters: batchDistance,
		EstimatedDuration:   duration,
		SavingsPercentage:   savings,
	}

	if savings < s.MinSavingsPercent {
		res.Code = domain.RejectInsufficientSavings
		res.Reason = fmt.Sprintf(domain.ReasonInsufficientSavings, savings, s.MinSavingsPercent)
		return res
	}

	if duration > s.MaxDeliveryTime {
		res.Code = domain.RejectDurationExceeded
		res.Reason = fmt.Sprintf(domain.ReasonDurationExceeded, duration.Minutes(), s.MaxDeliveryTime.Minutes())
		return res
	}

	res.Feasible = true
	res.CustomerProximityScore = proximityScore(deliveries, s.MaxDeliveryRadius)
	return res
}

func rejected(code domain.RejectCode, reason string) domain.FeasibilityResult {
	return domain.FeasibilityResult{Code: code, Reason: reason}
}

// windowsOverlap reports whether all orders that carry a delivery window
// share a common instant.
func windowsOverlap(orders []domain.Order) bool {
	var (
		earliestEnd, latestStart time.Time
		seen                     int
	)

	for _, o := range orders {
		if o.Window == nil {
			continue
		}
		if seen == 0 || o.Window.End.Before(earliestEnd) {
			earliestEnd = o.Window.End
		}
		if seen == 0 || o.Window.Start.After(latestStart) {
			latestStart = o.Window.Start
		}
		seen++
	}

	if seen < 2 {
		return true
	}
	return !earliestEnd.Before(latestStart)
}

// nearestNeighborTourLength approximates a tour from start over all points by
// repeatedly moving to the closest unvisited point. Ties go to the lower index.
func nearestNeighborTourLength(start domain.Coordinates, points []domain.Coordinates) float64 {
	visited := make([]bool, len(points))
	current := start
	var total float64

	for range points {
		best := -1
		bestDist := math.Inf(1)
		for i, p := range points {
			if visited[i] {
				continue
			}
			if d := geo.Distance(current, p); d < bestDist {
				best, bestDist = i, d
			}
		}

		visited[best] = true
		total += bestDist
		current = points[best]
	}

	return total
}

// proximityScore is 1 for co-located deliveries and falls linearly to 0 as
// the average pairwise distance approaches radius.
func proximityScore(deliveries []domain.Coordinates, radius float64) float64 {
	var sum float64
	pairs := 0
	for i := 0; i < len(deliveries); i++ {
		for j := i + 1; j < len(deliveries); j++ {
			sum += geo.Distance(deliveries[i], deliveries[j])
			pairs++
		}
	}
	if pairs == 0 || radius <= 0 {
		return 0
	}

	return math.Max(0, 1-(sum/float64(pairs))/radius)
}
