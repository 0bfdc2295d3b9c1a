package dto

import (
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/services"
	"time"
)

type CreateBatchRequest struct {
	OrderIDs []int64 `json:"order_ids"`
	Strategy string  `json:"strategy"`
}

type OptimizeBatchRequest struct {
	AddOrderIDs    []int64 `json:"add_order_ids"`
	RemoveOrderIDs []int64 `json:"remove_order_ids"`
}

type GenerateRouteRequest struct {
	DriverID *int64 `json:"driver_id"`
}

type SplitBatchRequest struct {
	Strategy string `json:"strategy"`
}

type MergeBatchesRequest struct {
	BatchIDs []string `json:"batch_ids"`
}

type UpdateStatusRequest struct {
	Status   string `json:"status"`
	DriverID *int64 `json:"driver_id"`
}

type BatchResponse struct {
	BatchID                  string     `json:"batch_id"`
	ZoneID                   int64      `json:"zone_id"`
	OrderIDs                 []int64    `json:"order_ids"`
	Status                   string     `json:"status"`
	TotalDistanceMeters      float64    `json:"total_distance_meters"`
	EstimatedDurationSeconds int64      `json:"estimated_duration_seconds"`
	SavingsPercentage        float64    `json:"savings_percentage"`
	DriverID                 *int64     `json:"driver_id"`
	CreatedAt                time.Time  `json:"created_at"`
	AssignedAt               *time.Time `json:"assigned_at"`
	CompletedAt              *time.Time `json:"completed_at"`
}

type ListBatchesResponse struct {
	Batches []BatchResponse `json:"batches"`
}

type RouteNodeResponse struct {
	Kind               string             `json:"kind"`
	OrderID            *int64             `json:"order_id"`
	Location           domain.Coordinates `json:"location"`
	Address            string             `json:"address,omitempty"`
	ServiceSeconds     int64              `json:"service_seconds"`
	EstimatedArrival   time.Time          `json:"estimated_arrival"`
	EstimatedDeparture time.Time          `json:"estimated_departure"`
}

type RouteResponse struct {
	BatchID              string              `json:"batch_id"`
	Strategy             string              `json:"strategy"`
	Nodes                []RouteNodeResponse `json:"nodes"`
	TotalDistanceMeters  float64             `json:"total_distance_meters"`
	TotalDurationSeconds int64               `json:"total_duration_seconds"`
	Feasible             bool                `json:"feasible"`
	Violations           []string            `json:"violations"`
	GeneratedAt          time.Time           `json:"generated_at"`
}

type OptimizeBatchResponse struct {
	Batch            *BatchResponse `json:"batch"`
	Route            *RouteResponse `json:"route"`
	Dissolved        bool           `json:"dissolved"`
	ReleasedOrderIDs []int64        `json:"released_order_ids"`
}

type SuggestionResponse struct {
	OrderIDs                 []int64 `json:"order_ids"`
	Score                    float64 `json:"score"`
	EstimatedSavings         float64 `json:"estimated_savings"`
	EstimatedDurationSeconds int64   `json:"estimated_duration_seconds"`
	Strategy                 string  `json:"strategy"`
	Reason                   string  `json:"reason"`
}

type ListSuggestionsResponse struct {
	Suggestions []SuggestionResponse `json:"suggestions"`
}

func NewBatchResponse(b *domain.Batch) BatchResponse {
	return BatchResponse{
		BatchID:                  b.ID,
		ZoneID:                   b.ZoneID,
		OrderIDs:                 b.OrderIDs,
		Status:                   b.Status.String(),
		TotalDistanceMeters:      b.TotalDistanceMeters,
		EstimatedDurationSeconds: int64(b.EstimatedDuration.Seconds()),
		SavingsPercentage:        b.SavingsPercentage,
		DriverID:                 b.DriverID,
		CreatedAt:                b.CreatedAt,
		AssignedAt:               b.AssignedAt,
		CompletedAt:              b.CompletedAt,
	}
}

func NewListBatchesResponse(batches []*domain.Batch) ListBatchesResponse {
	res := ListBatchesResponse{Batches: make([]BatchResponse, 0, len(batches))}
	for _, b := range batches {
		res.Batches = append(res.Batches, NewBatchResponse(b))
	}
	return res
}

func NewRouteResponse(r *domain.Route) RouteResponse {
	nodes := make([]RouteNodeResponse, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		nodes = append(nodes, RouteNodeResponse{
			Kind:               string(n.Kind),
			OrderID:            n.OrderID,
			Location:           n.Location,
			Address:            n.Address,
			ServiceSeconds:     int64(n.ServiceDuration.Seconds()),
			EstimatedArrival:   n.EstimatedArrival,
			EstimatedDeparture: n.EstimatedDeparture,
		})
	}

	violations := r.Violations
	if violations == nil {
		violations = []string{}
	}

	return RouteResponse{
		BatchID:              r.BatchID,
		Strategy:             string(r.Strategy),
		Nodes:                nodes,
		TotalDistanceMeters:  r.TotalDistanceMeters,
		TotalDurationSeconds: int64(r.TotalDuration.Seconds()),
		Feasible:             r.Feasible,
		Violations:           violations,
		GeneratedAt:          r.GeneratedAt,
	}
}

func NewOptimizeBatchResponse(res *services.OptimizeResult) OptimizeBatchResponse {
	out := OptimizeBatchResponse{
		Dissolved:        res.Dissolved,
		ReleasedOrderIDs: res.ReleasedOrderIDs,
	}
	if out.ReleasedOrderIDs == nil {
		out.ReleasedOrderIDs = []int64{}
	}
	if res.Batch != nil {
		b := NewBatchResponse(res.Batch)
		out.Batch = &b
	}
	if res.Route != nil {
		r := NewRouteResponse(res.Route)
		out.Route = &r
	}
	return out
}

func NewListSuggestionsResponse(suggestions []services.Suggestion) ListSuggestionsResponse {
	res := ListSuggestionsResponse{Suggestions: make([]SuggestionResponse, 0, len(suggestions))}
	for _, s := range suggestions {
		res.Suggestions = append(res.Suggestions, SuggestionResponse{
			OrderIDs:                 s.OrderIDs,
			Score:                    s.Score,
			EstimatedSavings:         s.EstimatedSavings,
			EstimatedDurationSeconds: int64(s.EstimatedDuration.Seconds()),
			Strategy:                 s.Strategy,
			Reason:                   s.Reason,
		})
	}
	return res
}
