package domain

import "time"

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusBatched   OrderStatus = "batched"
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// TimeWindow is the interval in which a delivery is expected to arrive.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies inside the window, bounds included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Represents a single delivery order as seen by the batching core.
// Pickup comes from the merchant record; everything except BatchID is
// treated as immutable once the order is batched.
type Order struct {
	ID              int64
	MerchantID      int64
	MerchantName    string
	ZoneID          int64
	Pickup          Coordinates
	PickupAddress   string
	Delivery        Coordinates
	DeliveryAddress string
	Window          *TimeWindow
	ItemCount       int
	Status          OrderStatus
	BatchID         *string
}

// IsBatchable reports whether the order may be claimed by a new batch.
func (o Order) IsBatchable() bool {
	return o.Status == OrderStatusConfirmed && o.BatchID == nil
}

// OrderIDs returns the ids of orders in their given order.
func OrderIDs(orders []Order) []int64 {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}
