package config

import (
	"delivery-batch-service/internal/domain"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// Values come from the environment, optionally pre-populated from a .env file.
type Config struct {
	Environment          string `mapstructure:"ENVIRONMENT"`
	LogLevel             string `mapstructure:"LOG_LEVEL"`
	HTTPServerAddress    string `mapstructure:"HTTP_SERVER_ADDRESS"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisAddress         string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int    `mapstructure:"REDIS_DB"`
	SeedPath             string `mapstructure:"SEED_PATH"`
	OptimizationSchedule string `mapstructure:"OPTIMIZATION_SCHEDULE"`
	WorkerConcurrency    int    `mapstructure:"WORKER_CONCURRENCY"`

	BatchMinSize             int           `mapstructure:"BATCH_MIN_SIZE"`
	BatchMaxSize             int           `mapstructure:"BATCH_MAX_SIZE"`
	BatchMaxPickupRadiusM    float64       `mapstructure:"BATCH_MAX_PICKUP_RADIUS_M"`
	BatchMaxDeliveryRadiusM  float64       `mapstructure:"BATCH_MAX_DELIVERY_RADIUS_M"`
	BatchMaxDeliveryTime     time.Duration `mapstructure:"BATCH_MAX_DELIVERY_TIME"`
	BatchMinSavingsPercent   float64       `mapstructure:"BATCH_MIN_SAVINGS_PERCENT"`
	BatchAverageSpeedKmh     float64       `mapstructure:"BATCH_AVERAGE_SPEED_KMH"`
	BatchPickupServiceTime   time.Duration `mapstructure:"BATCH_PICKUP_SERVICE_TIME"`
	BatchDeliveryServiceTime time.Duration `mapstructure:"BATCH_DELIVERY_SERVICE_TIME"`
	BatchDepot               string        `mapstructure:"BATCH_DEPOT"` // "lat,lon"; empty uses the pickup centroid
	BatchSuggestionPoolSize  int           `mapstructure:"BATCH_SUGGESTION_POOL_SIZE"`
	BatchSuggestionLimit     int           `mapstructure:"BATCH_SUGGESTION_LIMIT"`
	BatchAutoMinScore        float64       `mapstructure:"BATCH_AUTO_MIN_SCORE"`
	BatchRouteClusterRadiusM float64       `mapstructure:"BATCH_ROUTE_CLUSTER_RADIUS_M"`
	BatchKMeansSeed          uint64        `mapstructure:"BATCH_KMEANS_SEED"`
	BatchRouteCacheTTL       time.Duration `mapstructure:"BATCH_ROUTE_CACHE_TTL"`
	BatchPositionMaxAge      time.Duration `mapstructure:"BATCH_POSITION_MAX_AGE"`
	BatchEnqueueConcurrency  int           `mapstructure:"BATCH_ENQUEUE_CONCURRENCY"`
}

func defaults() map[string]any {
	d := domain.DefaultBatchSettings()
	return map[string]any{
		"ENVIRONMENT":           "development",
		"LOG_LEVEL":             "info",
		"HTTP_SERVER_ADDRESS":   "0.0.0.0:8080",
		"DATABASE_URL":          "",
		"REDIS_ADDRESS":         "localhost:6379",
		"REDIS_PASSWORD":        "",
		"REDIS_DB":              0,
		"SEED_PATH":             "data/seeds/orders.json",
		"OPTIMIZATION_SCHEDULE": "@every 5m",
		"WORKER_CONCURRENCY":    10,

		"BATCH_MIN_SIZE":               d.MinBatchSize,
		"BATCH_MAX_SIZE":               d.MaxBatchSize,
		"BATCH_MAX_PICKUP_RADIUS_M":    d.MaxPickupRadius,
		"BATCH_MAX_DELIVERY_RADIUS_M":  d.MaxDeliveryRadius,
		"BATCH_MAX_DELIVERY_TIME":      d.MaxDeliveryTime,
		"BATCH_MIN_SAVINGS_PERCENT":    d.MinSavingsPercent,
		"BATCH_AVERAGE_SPEED_KMH":      d.AverageSpeedKmh,
		"BATCH_PICKUP_SERVICE_TIME":    d.PickupServiceTime,
		"BATCH_DELIVERY_SERVICE_TIME":  d.DeliveryServiceTime,
		"BATCH_DEPOT":                  "",
		"BATCH_SUGGESTION_POOL_SIZE":   d.SuggestionPoolSize,
		"BATCH_SUGGESTION_LIMIT":       d.SuggestionLimit,
		"BATCH_AUTO_MIN_SCORE":         d.AutoBatchMinScore,
		"BATCH_ROUTE_CLUSTER_RADIUS_M": d.RouteClusterRadius,
		"BATCH_KMEANS_SEED":            d.KMeansSeed,
		"BATCH_ROUTE_CACHE_TTL":        d.RouteCacheTTL,
		"BATCH_POSITION_MAX_AGE":       d.PositionMaxAge,
		"BATCH_ENQUEUE_CONCURRENCY":    d.EnqueueConcurrency,
	}
}

// LoadConfig reads configuration from environment variables.
// A .env file in dir is loaded first when present; real environment variables win.
func LoadConfig(dir string) (config Config, err error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("load config: read .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("load config: %w", err)
	}

	config.RedisPassword = trimOptionalQuotes(config.RedisPassword)
	config.DatabaseURL = trimOptionalQuotes(config.DatabaseURL)
	return config, nil
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// BatchSettings builds the batching thresholds and validates them.
func (c Config) BatchSettings() (domain.BatchSettings, error) {
	s := domain.BatchSettings{
		MinBatchSize:        c.BatchMinSize,
		MaxBatchSize:        c.BatchMaxSize,
		MaxPickupRadius:     c.BatchMaxPickupRadiusM,
		MaxDeliveryRadius:   c.BatchMaxDeliveryRadiusM,
		MaxDeliveryTime:     c.BatchMaxDeliveryTime,
		MinSavingsPercent:   c.BatchMinSavingsPercent,
		AverageSpeedKmh:     c.BatchAverageSpeedKmh,
		PickupServiceTime:   c.BatchPickupServiceTime,
		DeliveryServiceTime: c.BatchDeliveryServiceTime,
		SuggestionPoolSize:  c.BatchSuggestionPoolSize,
		SuggestionLimit:     c.BatchSuggestionLimit,
		AutoBatchMinScore:   c.BatchAutoMinScore,
		RouteClusterRadius:  c.BatchRouteClusterRadiusM,
		KMeansSeed:          c.BatchKMeansSeed,
		RouteCacheTTL:       c.BatchRouteCacheTTL,
		PositionMaxAge:      c.BatchPositionMaxAge,
		EnqueueConcurrency:  c.BatchEnqueueConcurrency,
	}

	if strings.TrimSpace(c.BatchDepot) != "" {
		depot, err := parseCoordinates(c.BatchDepot)
		if err != nil {
			return domain.BatchSettings{}, fmt.Errorf("batch settings: BATCH_DEPOT: %w", err)
		}
		s.Depot = &depot
	}

	if err := s.Validate(); err != nil {
		return domain.BatchSettings{}, err
	}
	return s, nil
}

func parseCoordinates(raw string) (domain.Coordinates, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return domain.Coordinates{}, fmt.Errorf("want \"lat,lon\", got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("longitude: %w", err)
	}
	return domain.Coordinates{Lat: lat, Lon: lon}, nil
}

func trimOptionalQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
