package domain

import "time"

// Outcome of checking whether a set of orders forms a worthwhile batch.
// Reason is set only when Feasible is false.
type FeasibilityResult struct {
	Feasible               bool
	Code                   RejectCode
	Reason                 string
	TotalDistanceMeters    float64
	EstimatedDuration      time.Duration
	SavingsPercentage      float64
	CustomerProximityScore float64
}

// RejectCode classifies why a candidate batch was rejected.
type RejectCode string

const (
	RejectTooFewOrders        RejectCode = "too_few_orders"
	RejectTooManyOrders       RejectCode = "too_many_orders"
	RejectPickupSpread        RejectCode = "pickup_spread"
	RejectDeliverySpread      RejectCode = "delivery_spread"
	RejectTimeWindow          RejectCode = "time_window"
	RejectInsufficientSavings RejectCode = "insufficient_savings"
	RejectDurationExceeded    RejectCode = "duration_exceeded"
)

// Rejection reasons reported by the feasibility checker.
const (
	ReasonTooFewOrders        = "Batch requires at least %d orders"
	ReasonTooManyOrders       = "Batch exceeds maximum size of %d orders"
	ReasonPickupSpread        = "Pickup locations too spread out"
	ReasonDeliverySpread      = "Delivery locations too spread out"
	ReasonWindowsIncompatible = "Delivery time windows not compatible"
	ReasonInsufficientSavings = "Insufficient savings: %.1f%% (minimum %.1f%%)"
	ReasonDurationExceeded    = "Estimated duration %.0f min exceeds maximum %.0f min"
)
