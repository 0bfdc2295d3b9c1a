package domain

import (
	"fmt"
	"slices"
	"time"
)

type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusAssigned   BatchStatus = "assigned"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusAssigned, BatchStatusInProgress,
		BatchStatusCompleted, BatchStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Status moves forward one step at a time; cancellation is allowed from
// any non-terminal status.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case BatchStatusAssigned:
		return s == BatchStatusPending
	case BatchStatusInProgress:
		return s == BatchStatusAssigned
	case BatchStatusCompleted:
		return s == BatchStatusInProgress
	case BatchStatusCancelled:
		return true
	}
	return false
}

// Represents a group of orders fulfilled on one multi-stop trip.
// OrderIDs keeps insertion order; the visiting sequence lives in Route.
type Batch struct {
	ID                  string
	ZoneID              int64
	OrderIDs            []int64
	Status              BatchStatus
	TotalDistanceMeters float64
	EstimatedDuration   time.Duration
	SavingsPercentage   float64
	DriverID            *int64
	CreatedAt           time.Time
	AssignedAt          *time.Time
	CompletedAt         *time.Time
	UpdatedAt           time.Time
}

// NewBatch builds a pending batch from feasible orders and their metrics.
func NewBatch(id string, orders []Order, res FeasibilityResult, now time.Time) *Batch {
	b := &Batch{
		ID:        id,
		OrderIDs:  OrderIDs(orders),
		Status:    BatchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(orders) > 0 {
		b.ZoneID = orders[0].ZoneID
	}
	b.ApplyMetrics(res)
	return b
}

// ApplyMetrics copies aggregate metrics from a feasibility result.
func (b *Batch) ApplyMetrics(res FeasibilityResult) {
	b.TotalDistanceMeters = res.TotalDistanceMeters
	b.EstimatedDuration = res.EstimatedDuration
	b.SavingsPercentage = res.SavingsPercentage
}

// HasOrder reports whether the batch contains the order.
func (b *Batch) HasOrder(id int64) bool {
	return slices.Contains(b.OrderIDs, id)
}

// TransitionTo moves the batch to next, stamping the lifecycle timestamps.
func (b *Batch) TransitionTo(next BatchStatus, driverID *int64, at time.Time) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: unknown batch status %q", ErrValidation, next)
	}
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: batch %s cannot move from %s to %s", ErrInvalidState, b.ID, b.Status, next)
	}

	switch next {
	case BatchStatusAssigned:
		b.AssignedAt = &at
		if driverID != nil {
			d := *driverID
			b.DriverID = &d
		}
	case BatchStatusCompleted:
		b.CompletedAt = &at
	}

	b.Status = next
	b.UpdatedAt = at
	return nil
}

// OrderStatusFor returns the order status cascaded by a batch status, if any.
func OrderStatusFor(s BatchStatus) (OrderStatus, bool) {
	switch s {
	case BatchStatusAssigned:
		return OrderStatusAssigned, true
	case BatchStatusInProgress:
		return OrderStatusPickedUp, true
	case BatchStatusCompleted:
		return OrderStatusDelivered, true
	case BatchStatusCancelled:
		return OrderStatusConfirmed, true
	}
	return "", false
}
