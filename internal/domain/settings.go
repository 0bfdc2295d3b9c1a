package domain

import (
	"errors"
	"fmt"
	"time"
)

// BatchSettings holds every threshold used by the batching core.
// It is passed explicitly to each component so tests can vary it freely.
type BatchSettings struct {
	MinBatchSize        int
	MaxBatchSize        int
	MaxPickupRadius     float64 // metres
	MaxDeliveryRadius   float64 // metres
	MaxDeliveryTime     time.Duration
	MinSavingsPercent   float64
	AverageSpeedKmh     float64
	PickupServiceTime   time.Duration
	DeliveryServiceTime time.Duration

	// Depot is the reference point for individual trip estimates.
	// When nil the pickup centroid of the candidate batch is used.
	Depot *Coordinates

	SuggestionPoolSize int
	SuggestionLimit    int
	AutoBatchMinScore  float64
	RouteClusterRadius float64 // metres
	KMeansSeed         uint64
	RouteCacheTTL      time.Duration
	PositionMaxAge     time.Duration

	// EnqueueConcurrency bounds parallel auto-batch enqueues per sweep.
	EnqueueConcurrency int
}

func DefaultBatchSettings() BatchSettings {
	return BatchSettings{
		MinBatchSize:        2,
		MaxBatchSize:        5,
		MaxPickupRadius:     2000,
		MaxDeliveryRadius:   3000,
		MaxDeliveryTime:     60 * time.Minute,
		MinSavingsPercent:   15,
		AverageSpeedKmh:     30,
		PickupServiceTime:   5 * time.Minute,
		DeliveryServiceTime: 3 * time.Minute,
		SuggestionPoolSize:  50,
		SuggestionLimit:     10,
		AutoBatchMinScore:   0.7,
		RouteClusterRadius:  1000,
		KMeansSeed:          42,
		RouteCacheTTL:       10 * time.Minute,
		PositionMaxAge:      10 * time.Minute,
		EnqueueConcurrency:  4,
	}
}

func (s BatchSettings) Validate() error {
	if s.MinBatchSize < 2 {
		return fmt.Errorf("batch settings: min batch size must be at least 2, got %d", s.MinBatchSize)
	}
	if s.MaxBatchSize < s.MinBatchSize {
		return fmt.Errorf("batch settings: max batch size %d below min %d", s.MaxBatchSize, s.MinBatchSize)
	}
	if s.MaxPickupRadius <= 0 || s.MaxDeliveryRadius <= 0 {
		return errors.New("batch settings: radii must be positive")
	}
	if s.MaxDeliveryTime <= 0 {
		return errors.New("batch settings: max delivery time must be positive")
	}
	if s.AverageSpeedKmh <= 0 {
		return errors.New("batch settings: average speed must be positive")
	}
	if s.MinSavingsPercent < 0 || s.MinSavingsPercent >= 100 {
		return fmt.Errorf("batch settings: min savings percent out of range: %v", s.MinSavingsPercent)
	}
	if s.SuggestionPoolSize < s.MinBatchSize {
		return fmt.Errorf("batch settings: suggestion pool size %d below min batch size", s.SuggestionPoolSize)
	}
	if s.EnqueueConcurrency < 1 {
		return fmt.Errorf("batch settings: enqueue concurrency must be at least 1, got %d", s.EnqueueConcurrency)
	}
	if s.Depot != nil && !s.Depot.IsValid() {
		return errors.New("batch settings: depot coordinates out of range")
	}
	return nil
}
