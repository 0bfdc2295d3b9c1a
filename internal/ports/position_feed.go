package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
	"time"
)

// Last known position reported by a driver.
type DriverPosition struct {
	DriverID   int64
	Location   domain.Coordinates
	ReportedAt time.Time
}

// Port: read access to the live driver position feed.
// Unknown drivers return (nil, nil).
type PositionFeed interface {
	GetDriverPosition(ctx context.Context, driverID int64) (*DriverPosition, error)
}
