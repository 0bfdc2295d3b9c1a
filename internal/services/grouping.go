package services

import (
	"delivery-batch-service/internal/domain"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Suggestion is one candidate batch produced by the grouping engine.
type Suggestion struct {
	OrderIDs          []int64
	Score             float64
	EstimatedSavings  float64
	EstimatedDuration time.Duration
	Strategy          string
	Reason            string
}

// Partition is the scored output of one grouping strategy.
// Score is the order-weighted average group score over feasible groups.
type Partition struct {
	Strategy string
	Score    float64
	Groups   []Suggestion
}

// GroupingEngine partitions a pool of unbatched orders into candidate
// batches using several competing heuristics and keeps the best partition.
type GroupingEngine struct {
	settings   domain.BatchSettings
	checker    *FeasibilityChecker
	strategies []groupingStrategy
}

func NewGroupingEngine(settings domain.BatchSettings, checker *FeasibilityChecker) *GroupingEngine {
	proximity := proximityStrategy{
		pickupRadius:   settings.MaxPickupRadius / 2,
		deliveryRadius: settings.MaxDeliveryRadius / 2,
	}

	return &GroupingEngine{
		settings: settings,
		checker:  checker,
		// Evaluation order doubles as the tie-break: earlier strategies win.
		strategies: []groupingStrategy{
			proximity,
			merchantStrategy{},
			geographicStrategy{seed: settings.KMeansSeed},
			timeWindowStrategy{proximity: proximity},
		},
	}
}

// Best runs every strategy and returns the highest-scoring partition.
// An empty pool or a pool with no feasible group yields a zero-score partition.
func (e *GroupingEngine) Best(orders []domain.Order, maxBatchSize int) Partition {
	partitions := e.evaluate(orders, maxBatchSize)
	if len(partitions) == 0 {
		return Partition{}
	}
	return partitions[bestPartition(partitions)]
}

// Suggestions returns feasible candidate batches from every strategy, the
// winning partition's groups first, deduplicated by order set and sorted by
// score. Suggestions from different strategies may share orders.
func (e *GroupingEngine) Suggestions(orders []domain.Order, maxBatchSize int) []Suggestion {
	partitions := e.evaluate(orders, maxBatchSize)
	if len(partitions) == 0 {
		return nil
	}

	best := bestPartition(partitions)
	ordered := make([]Partition, 0, len(partitions))
	ordered = append(ordered, partitions[best])
	for i, p := range partitions {
		if i != best {
			ordered = append(ordered, p)
		}
	}

	seen := make(map[string]struct{})
	var out []Suggestion
	for _, p := range ordered {
		for _, g := range p.Groups {
			key := orderSetKey(g.OrderIDs)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, g)
		}
	}

	SortSuggestions(out)
	return out
}

// SortSuggestions orders suggestions by score descending. Equal scores keep
// their relative order.
func SortSuggestions(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}

func (e *GroupingEngine) evaluate(orders []domain.Order, maxBatchSize int) []Partition {
	if len(orders) < e.settings.MinBatchSize {
		return nil
	}
	if maxBatchSize < e.settings.MinBatchSize || maxBatchSize > e.settings.MaxBatchSize {
		maxBatchSize = e.settings.MaxBatchSize
	}

	partitions := make([]Partition, 0, len(e.strategies))
	for _, s := range e.strategies {
		groups := s.Partition(orders, maxBatchSize)
		partitions = append(partitions, e.score(s.Name(), groups))
	}
	return partitions
}

func (e *GroupingEngine) score(strategy string, groups [][]domain.Order) Partition {
	p := Partition{Strategy: strategy}

	var total float64
	placed := 0
	for _, g := range groups {
		if len(g) < e.settings.MinBatchSize {
			continue
		}

		res := e.checker.Check(g)
		if !res.Feasible {
			continue
		}

		gs := groupScore(res, len(g))
		total += gs * float64(len(g))
		placed += len(g)

		p.Groups = append(p.Groups, Suggestion{
			OrderIDs:          domain.OrderIDs(g),
			Score:             gs,
			EstimatedSavings:  res.SavingsPercentage,
			EstimatedDuration: res.EstimatedDuration,
			Strategy:          strategy,
			Reason: fmt.Sprintf("%s grouping of %d orders saves %.1f%% distance",
				strategy, len(g), res.SavingsPercentage),
		})
	}

	if placed > 0 {
		p.Score = total / float64(placed)
	}
	return p
}

// groupScore weights savings, batch size (normalised to five orders) and
// delivery proximity.
func groupScore(res domain.FeasibilityResult, size int) float64 {
	return 0.5*(res.SavingsPercentage/100) +
		0.3*(float64(size)/5) +
		0.2*res.CustomerProximityScore
}

func bestPartition(partitions []Partition) int {
	best := 0
	for i := 1; i < len(partitions); i++ {
		if partitions[i].Score > partitions[best].Score {
			best = i
		}
	}
	return best
}

func orderSetKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
