package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveMap-App/internal/domain/model"
)

func TestLoad(t *testing.T) {
	t.Run("デフォルト値", func(t *testing.T) {
		t.Setenv("NEARBY_BACKEND", "")
		t.Setenv("TELEMETRY_BACKEND", "")
		t.Setenv("NEARBY_RADIUS_KM", "")
		t.Setenv("LOCATION_PERMISSION", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendREST, cfg.NearbyBackend)
		assert.Equal(t, 10, cfg.NearbyRadiusKm)
		assert.Equal(t, 50, cfg.NearbyLimit)
		assert.Equal(t, time.Second, cfg.ReconnectBaseDelay)
		assert.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
		assert.True(t, cfg.LocationPermission)
		assert.Equal(t, model.WatchOptions{MinDistanceMeters: 50, Interval: 10 * time.Second, FastestInterval: 5 * time.Second}, cfg.WatchOptions())
	})

	t.Run("環境変数で上書き", func(t *testing.T) {
		t.Setenv("NEARBY_RADIUS_KM", "5")
		t.Setenv("RECONNECT_MAX_DELAY", "1m")
		t.Setenv("LOCATION_PERMISSION", "denied")
		t.Setenv("LOCATION_MIN_DISTANCE_M", "20")
		t.Setenv("LOCATION_INTERVAL", "30s")
		t.Setenv("LOCATION_FASTEST_INTERVAL", "15s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, model.WatchOptions{MinDistanceMeters: 20, Interval: 30 * time.Second, FastestInterval: 15 * time.Second}, cfg.WatchOptions())
		assert.Equal(t, 5, cfg.NearbyRadiusKm)
		assert.Equal(t, time.Minute, cfg.ReconnectMaxDelay)
		assert.False(t, cfg.LocationPermission)
	})

	t.Run("不正な値", func(t *testing.T) {
		t.Setenv("NEARBY_LIMIT", "many")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("最短間隔が通常間隔より長い", func(t *testing.T) {
		t.Setenv("LOCATION_INTERVAL", "5s")
		t.Setenv("LOCATION_FASTEST_INTERVAL", "10s")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := Config{
		NearbyBackend: BackendREST, TelemetryBackend: BackendREST, NearbyRadiusKm: 10, NearbyLimit: 50,
		LocationMinDistanceM: 50, LocationInterval: 10 * time.Second, LocationFastestInterval: 5 * time.Second,
	}
	require.NoError(t, base.Validate())

	noInterval := base
	noInterval.LocationInterval = 0
	assert.Error(t, noInterval.Validate())

	supabase := base
	supabase.NearbyBackend = BackendSupabase
	assert.Error(t, supabase.Validate())
	supabase.SupabaseURL = "https://example.supabase.co"
	supabase.SupabaseAnonKey = "anon"
	assert.NoError(t, supabase.Validate())

	postgres := base
	postgres.NearbyBackend = BackendPostgres
	assert.Error(t, postgres.Validate())
	postgres.DatabaseURL = "postgres://localhost/livemap"
	assert.NoError(t, postgres.Validate())

	firestore := base
	firestore.TelemetryBackend = BackendFirestore
	assert.Error(t, firestore.Validate())

	unknown := base
	unknown.NearbyBackend = "redis"
	assert.Error(t, unknown.Validate())
}
