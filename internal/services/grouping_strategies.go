package services

import (
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/geo"
	"fmt"
)

type groupingStrategy interface {
	Name() string
	Partition(orders []domain.Order, maxBatchSize int) [][]domain.Order
}

// proximityStrategy greedily seeds a group with each unused order and adds
// later orders whose pickup and delivery both lie close to the seed's.
type proximityStrategy struct {
	pickupRadius   float64
	deliveryRadius float64
}

func (proximityStrategy) Name() string { return "proximity" }

func (s proximityStrategy) Partition(orders []domain.Order, maxBatchSize int) [][]domain.Order {
	used := make([]bool, len(orders))
	var groups [][]domain.Order

	for i, seed := range orders {
		if used[i] {
			continue
		}

		group := []domain.Order{seed}
		members := []int{i}
		for j := i + 1; j < len(orders) && len(group) < maxBatchSize; j++ {
			if used[j] {
				continue
			}
			if geo.Distance(seed.Pickup, orders[j].Pickup) <= s.pickupRadius &&
				geo.Distance(seed.Delivery, orders[j].Delivery) <= s.deliveryRadius {
				group = append(group, orders[j])
				members = append(members, j)
			}
		}

		if len(group) < 2 {
			continue
		}
		for _, m := range members {
			used[m] = true
		}
		groups = append(groups, group)
	}

	return groups
}

// merchantStrategy groups orders sharing a pickup merchant.
type merchantStrategy struct{}

func (merchantStrategy) Name() string { return "merchant" }

func (merchantStrategy) Partition(orders []domain.Order, maxBatchSize int) [][]domain.Order {
	byMerchant := make(map[int64][]domain.Order)
	var merchants []int64
	for _, o := range orders {
		if _, ok := byMerchant[o.MerchantID]; !ok {
			merchants = append(merchants, o.MerchantID)
		}
		byMerchant[o.MerchantID] = append(byMerchant[o.MerchantID], o)
	}

	var groups [][]domain.Order
	for _, m := range merchants {
		groups = append(groups, chunkOrders(byMerchant[m], maxBatchSize)...)
	}
	return groups
}

// geographicStrategy clusters orders with k-means over pickup and delivery
// coordinates, k = ceil(n / maxBatchSize).
type geographicStrategy struct {
	seed uint64
}

func (geographicStrategy) Name() string { return "geographic" }

func (s geographicStrategy) Partition(orders []domain.Order, maxBatchSize int) [][]domain.Order {
	k := (len(orders) + maxBatchSize - 1) / maxBatchSize

	var groups [][]domain.Order
	for _, c := range clusterOrders(orders, k, s.seed) {
		groups = append(groups, chunkOrders(c, maxBatchSize)...)
	}
	return groups
}

// timeWindowStrategy buckets orders by delivery window and applies the
// proximity strategy inside each bucket.
type timeWindowStrategy struct {
	proximity proximityStrategy
}

func (timeWindowStrategy) Name() string { return "time_window" }

func (s timeWindowStrategy) Partition(orders []domain.Order, maxBatchSize int) [][]domain.Order {
	var groups [][]domain.Order
	for _, bucket := range bucketByWindow(orders) {
		groups = append(groups, s.proximity.Partition(bucket, maxBatchSize)...)
	}
	return groups
}

// bucketByWindow groups orders by their delivery window hour range; orders
// without a window share the "asap" bucket. Buckets keep first-seen order.
func bucketByWindow(orders []domain.Order) [][]domain.Order {
	buckets := make(map[string][]domain.Order)
	var keys []string
	for _, o := range orders {
		key := windowBucketKey(o)
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], o)
	}

	out := make([][]domain.Order, 0, len(keys))
	for _, k := range keys {
		out = append(out, buckets[k])
	}
	return out
}

func windowBucketKey(o domain.Order) string {
	if o.Window == nil {
		return "asap"
	}
	return fmt.Sprintf("%s-%02d", o.Window.Start.Format("2006-01-02T15"), o.Window.End.Hour())
}

// chunkOrders splits orders into runs of at most size, dropping runs
// shorter than two.
func chunkOrders(orders []domain.Order, size int) [][]domain.Order {
	var out [][]domain.Order
	for start := 0; start < len(orders); start += size {
		end := min(start+size, len(orders))
		if end-start >= 2 {
			out = append(out, orders[start:end])
		}
	}
	return out
}
