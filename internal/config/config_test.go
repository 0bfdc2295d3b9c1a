package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("OPTIMIZATION_SCHEDULE", "")
	os.Unsetenv("ENVIRONMENT")
	os.Unsetenv("OPTIMIZATION_SCHEDULE")

	config, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "development", config.Environment)
	require.True(t, config.IsDevelopment())
	require.Equal(t, "@every 5m", config.OptimizationSchedule)

	settings, err := config.BatchSettings()
	require.NoError(t, err)
	require.Equal(t, 5, settings.MaxBatchSize)
	require.Equal(t, 60*time.Minute, settings.MaxDeliveryTime)
	require.Nil(t, settings.Depot)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_PASSWORD", `"s3cret"`)
	t.Setenv("BATCH_MAX_SIZE", "7")
	t.Setenv("BATCH_MAX_DELIVERY_TIME", "45m")
	t.Setenv("BATCH_DEPOT", "40.7128, -74.0060")

	config, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.False(t, config.IsDevelopment())
	require.Equal(t, 3, config.RedisDB)
	require.Equal(t, "s3cret", config.RedisPassword)

	settings, err := config.BatchSettings()
	require.NoError(t, err)
	require.Equal(t, 7, settings.MaxBatchSize)
	require.Equal(t, 45*time.Minute, settings.MaxDeliveryTime)
	require.NotNil(t, settings.Depot)
	require.InDelta(t, 40.7128, settings.Depot.Lat, 1e-9)
	require.InDelta(t, -74.0060, settings.Depot.Lon, 1e-9)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEED_PATH=fixtures/dotenv.json\n"), 0o600))
	t.Setenv("SEED_PATH", "")
	os.Unsetenv("SEED_PATH")

	config, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "fixtures/dotenv.json", config.SeedPath)
}

func TestBatchSettingsRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "MaxBelowMin", key: "BATCH_MAX_SIZE", val: "1"},
		{name: "NegativeRadius", key: "BATCH_MAX_PICKUP_RADIUS_M", val: "-5"},
		{name: "MalformedDepot", key: "BATCH_DEPOT", val: "40.7"},
		{name: "DepotOutOfRange", key: "BATCH_DEPOT", val: "91,0"},
		{name: "ZeroEnqueueConcurrency", key: "BATCH_ENQUEUE_CONCURRENCY", val: "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)

			config, err := LoadConfig(t.TempDir())
			require.NoError(t, err)

			_, err = config.BatchSettings()
			require.Error(t, err)
		})
	}
}
