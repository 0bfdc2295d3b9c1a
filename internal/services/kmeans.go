package services

import (
	"delivery-batch-service/internal/domain"
	"math"
	"math/rand/v2"
)

const kMeansMaxIterations = 100

// kMeans partitions points into k clusters and returns each point's cluster
// index. Initialisation is k-means++ driven by a seeded PCG source, so the
// same input and seed always produce the same clustering.
func kMeans(points [][]float64, k int, seed uint64) []int {
	n := len(points)
	assign := make([]int, n)
	if n == 0 || k <= 1 {
		return assign
	}
	if k >= n {
		for i := range assign {
			assign[i] = i
		}
		return assign
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	centers := initCenters(points, k, rng)

	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < kMeansMaxIterations; iter++ {
		changed := false
		for i, p := range points {
			c := nearestCenter(p, centers)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		dim := len(points[0])
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d := range p {
				sums[c][d] += p[d]
			}
		}
		// Empty clusters keep their previous center.
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				centers[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return assign
}

func initCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	chosen := make([]bool, n)
	centers := make([][]float64, 0, k)

	first := rng.IntN(n)
	chosen[first] = true
	centers = append(centers, clonePoint(points[first]))

	dist := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, p := range points {
			d := squaredDistance(p, centers[nearestCenter(p, centers)])
			dist[i] = d
			total += d
		}

		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r <= 0 && d > 0 {
					next = i
					break
				}
			}
		}
		// Duplicate points or rounding left nothing picked: take the first unused point.
		if next < 0 || chosen[next] {
			for i := range points {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		chosen[next] = true
		centers = append(centers, clonePoint(points[next]))
	}

	return centers
}

func nearestCenter(p []float64, centers [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, center := range centers {
		if d := squaredDistance(p, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func clonePoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}

// clusterOrders groups orders by k-means over (pickup lat/lon, delivery lat/lon).
// Clusters come back in cluster-index order with input order preserved inside.
func clusterOrders(orders []domain.Order, k int, seed uint64) [][]domain.Order {
	features := make([][]float64, 0, len(orders))
	for _, o := range orders {
		features = append(features, []float64{o.Pickup.Lat, o.Pickup.Lon, o.Delivery.Lat, o.Delivery.Lon})
	}

	assign := kMeans(features, k, seed)

	maxCluster := 0
	for _, c := range assign {
		maxCluster = max(maxCluster, c)
	}

	clusters := make([][]domain.Order, maxCluster+1)
	for i, c := range assign {
		clusters[c] = append(clusters[c], orders[i])
	}

	out := make([][]domain.Order, 0, len(clusters))
	for _, c := range clusters {
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}
