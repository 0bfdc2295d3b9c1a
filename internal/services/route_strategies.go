package services

import (
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/geo"
	"math"
	"sort"
)

type routeStrategy interface {
	Name() domain.RouteStrategy
	// Sequence returns a permutation of the problem's node indexes.
	Sequence(p *routeProblem) []int
}

// nearestFrom returns the candidate closest to from, or -1 when there is
// none. Ties go to the lower index so sequences are deterministic.
func nearestFrom(p *routeProblem, from domain.Coordinates, candidates []int, ok func(int) bool) int {
	best := -1
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if !ok(c) {
			continue
		}
		d := geo.Distance(from, p.loc(c))
		if d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	return best
}

func indexRange(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// clusterFirstRoute groups pickups lying within radius of a cluster's first
// pickup, visits the clusters in formation order and then drops off
// deliveries nearest-first from the last pickup.
type clusterFirstRoute struct {
	radius float64
}

func (clusterFirstRoute) Name() domain.RouteStrategy { return domain.RouteStrategyClusterFirst }

func (s clusterFirstRoute) Sequence(p *routeProblem) []int {
	var clusters [][]int
	for i := 0; i < p.n; i++ {
		placed := false
		for c := range clusters {
			if p.dist(clusters[c][0], i) <= s.radius {
				clusters[c] = append(clusters[c], i)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []int{i})
		}
	}

	seq := make([]int, 0, 2*p.n)
	visited := make([]bool, 2*p.n)
	unvisited := func(i int) bool { return !visited[i] }
	cur := p.start

	visit := func(candidates []int) {
		for range candidates {
			next := nearestFrom(p, cur, candidates, unvisited)
			visited[next] = true
			seq = append(seq, next)
			cur = p.loc(next)
		}
	}

	for _, c := range clusters {
		visit(c)
	}
	visit(indexRange(p.n, 2*p.n))

	return seq
}

// nearestNeighborRoute always moves to the closest eligible node; a delivery
// becomes eligible once its pickup has been visited.
type nearestNeighborRoute struct{}

func (nearestNeighborRoute) Name() domain.RouteStrategy {
	return domain.RouteStrategyNearestNeighbor
}

func (nearestNeighborRoute) Sequence(p *routeProblem) []int {
	all := indexRange(0, 2*p.n)
	pickups := indexRange(0, p.n)
	visited := make([]bool, 2*p.n)
	seq := make([]int, 0, 2*p.n)
	cur := p.start

	eligible := func(i int) bool {
		if visited[i] {
			return false
		}
		return p.isPickup(i) || visited[p.pickupOf(i)]
	}

	for len(seq) < 2*p.n {
		next := nearestFrom(p, cur, all, eligible)
		if next < 0 {
			// Nothing eligible: force the nearest remaining pickup.
			next = nearestFrom(p, cur, pickups, func(i int) bool { return !visited[i] })
		}
		visited[next] = true
		seq = append(seq, next)
		cur = p.loc(next)
	}

	return seq
}

// savingsRoute adapts Clarke-Wright savings to a single precedence-constrained
// route grown at its tail. The depot is the first pickup.
type savingsRoute struct{}

func (savingsRoute) Name() domain.RouteStrategy { return domain.RouteStrategySavings }

type savingsPair struct {
	i, j    int
	savings float64
}

func (savingsRoute) Sequence(p *routeProblem) []int {
	total := 2 * p.n
	depot := p.loc(0)

	pairs := make([]savingsPair, 0, total*(total-1)/2)
	for i := 0; i < total; i++ {
		for j := i + 1; j < total; j++ {
			s := geo.Distance(p.loc(i), depot) + geo.Distance(p.loc(j), depot) - p.dist(i, j)
			pairs = append(pairs, savingsPair{i: i, j: j, savings: s})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].savings > pairs[b].savings })

	inRoute := make([]bool, total)
	route := make([]int, 0, total)

	eligible := func(x int) bool {
		return !inRoute[x] && (p.isPickup(x) || inRoute[p.pickupOf(x)])
	}
	add := func(x int) {
		inRoute[x] = true
		route = append(route, x)
	}

	for _, pr := range pairs {
		if len(route) == 0 {
			switch {
			case eligible(pr.i) && (p.isPickup(pr.j) || p.pickupOf(pr.j) == pr.i):
				add(pr.i)
				add(pr.j)
			case eligible(pr.j) && (p.isPickup(pr.i) || p.pickupOf(pr.i) == pr.j):
				add(pr.j)
				add(pr.i)
			}
			continue
		}

		tail := route[len(route)-1]
		switch {
		case tail == pr.i && eligible(pr.j):
			add(pr.j)
		case tail == pr.j && eligible(pr.i):
			add(pr.i)
		}
	}

	for i := 0; i < total; i++ {
		if !inRoute[i] {
			add(i)
		}
	}

	return route
}
