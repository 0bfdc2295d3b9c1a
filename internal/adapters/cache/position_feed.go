package cache

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DriverPositionKeyPrefix = "driver:position:"

// Reads the last reported driver positions written to Redis by the tracking
// service, one JSON value per driver.
type RedisPositionFeed struct {
	client redis.UniversalClient
}

func NewRedisPositionFeed(client redis.UniversalClient) *RedisPositionFeed {
	return &RedisPositionFeed{client: client}
}

type reportedPosition struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ReportedAt time.Time `json:"reported_at"`
}

func DriverPositionKey(driverID int64) string {
	return DriverPositionKeyPrefix + strconv.FormatInt(driverID, 10)
}

func (f *RedisPositionFeed) GetDriverPosition(ctx context.Context, driverID int64) (*ports.DriverPosition, error) {
	data, err := f.client.Get(ctx, DriverPositionKey(driverID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get driver position %d: %w", driverID, err)
	}

	var rp reportedPosition
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, fmt.Errorf("get driver position %d: unmarshal: %w", driverID, err)
	}

	return &ports.DriverPosition{
		DriverID:   driverID,
		Location:   domain.Coordinates{Lat: rp.Lat, Lon: rp.Lon},
		ReportedAt: rp.ReportedAt,
	}, nil
}
