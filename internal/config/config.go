package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"LiveMap-App/internal/domain/model"
)

// 近隣検索・位置送信のバックエンド
const (
	BackendREST      = "rest"
	BackendSupabase  = "supabase"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendNone      = "none"
)

// デフォルトのシミュレーションルート（四条通を東へ）
const defaultSimulatedRoute = "LINESTRING(135.7590 35.0037, 135.7690 35.0037, 135.7745 35.0037, 135.7788 35.0037)"

// Config アプリケーション設定
type Config struct {
	Port    string
	GinMode string

	// バックエンドAPI・リアルタイムチャネル
	APIBaseURL  string
	RealtimeURL string
	AuthToken   string

	NearbyBackend    string
	TelemetryBackend string

	// Supabase / PostgreSQL / Firestore
	SupabaseURL           string
	SupabaseAnonKey       string
	SupabaseDBPassword    string
	DatabaseURL           string
	FirestoreProjectID    string
	GoogleCredentialsFile string

	// 近隣検索
	NearbyRadiusKm int
	NearbyLimit    int
	FetchTimeout   time.Duration

	// 再接続
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// 位置情報の購読条件
	LocationMinDistanceM    float64
	LocationInterval        time.Duration
	LocationFastestInterval time.Duration

	// 位置情報（シミュレーション端末）
	SimulatedRoute     string
	SimulatedSpeedMps  float64
	LocationPermission bool
}

// Load は .env と環境変数から設定を読み込む
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ .envファイルが見つかりません。システム環境変数を使用します")
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		GinMode:               getEnv("GIN_MODE", "release"),
		APIBaseURL:            getEnv("API_BASE_URL", "http://localhost:3000"),
		RealtimeURL:           getEnv("REALTIME_URL", "ws://localhost:3000/ws"),
		AuthToken:             os.Getenv("AUTH_TOKEN"),
		NearbyBackend:         getEnv("NEARBY_BACKEND", BackendREST),
		TelemetryBackend:      getEnv("TELEMETRY_BACKEND", BackendREST),
		SupabaseURL:           os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:       os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseDBPassword:    os.Getenv("SUPABASE_DB_PASSWORD"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		FirestoreProjectID:    getEnv("FIRESTORE_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
		GoogleCredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		SimulatedRoute:        getEnv("SIMULATED_ROUTE", defaultSimulatedRoute),
	}

	var err error
	if cfg.NearbyRadiusKm, err = getInt("NEARBY_RADIUS_KM", 10); err != nil {
		return nil, err
	}
	if cfg.NearbyLimit, err = getInt("NEARBY_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getDuration("NEARBY_FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectBaseDelay, err = getDuration("RECONNECT_BASE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectMaxDelay, err = getDuration("RECONNECT_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LocationMinDistanceM, err = getFloat("LOCATION_MIN_DISTANCE_M", 50); err != nil {
		return nil, err
	}
	if cfg.LocationInterval, err = getDuration("LOCATION_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LocationFastestInterval, err = getDuration("LOCATION_FASTEST_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SimulatedSpeedMps, err = getFloat("SIMULATED_SPEED_MPS", 1.4); err != nil {
		return nil, err
	}
	cfg.LocationPermission = getEnv("LOCATION_PERMISSION", "granted") != "denied"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate はバックエンドごとに必要な設定が揃っているか確認する
func (c *Config) Validate() error {
	switch c.NearbyBackend {
	case BackendREST:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("NEARBY_BACKEND=supabase にはSUPABASE_URLとSUPABASE_ANON_KEYが必要です")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" && (c.SupabaseURL == "" || c.SupabaseDBPassword == "") {
			return fmt.Errorf("NEARBY_BACKEND=postgres にはDATABASE_URL、またはSUPABASE_URLとSUPABASE_DB_PASSWORDが必要です")
		}
	default:
		return fmt.Errorf("不明なNEARBY_BACKEND: %s", c.NearbyBackend)
	}

	switch c.TelemetryBackend {
	case BackendREST, BackendNone:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("TELEMETRY_BACKEND=supabase にはSUPABASE_URLとSUPABASE_ANON_KEYが必要です")
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("TELEMETRY_BACKEND=firestore にはFIRESTORE_PROJECT_IDが必要です")
		}
	default:
		return fmt.Errorf("不明なTELEMETRY_BACKEND: %s", c.TelemetryBackend)
	}

	if c.NearbyRadiusKm < 1 {
		return fmt.Errorf("NEARBY_RADIUS_KM は1以上にしてください: %d", c.NearbyRadiusKm)
	}
	if c.NearbyLimit < 1 {
		return fmt.Errorf("NEARBY_LIMIT は1以上にしてください: %d", c.NearbyLimit)
	}
	if c.LocationMinDistanceM < 0 {
		return fmt.Errorf("LOCATION_MIN_DISTANCE_M は0以上にしてください: %v", c.LocationMinDistanceM)
	}
	if c.LocationInterval <= 0 || c.LocationFastestInterval <= 0 {
		return fmt.Errorf("LOCATION_INTERVAL と LOCATION_FASTEST_INTERVAL は正の値にしてください")
	}
	if c.LocationFastestInterval > c.LocationInterval {
		return fmt.Errorf("LOCATION_FASTEST_INTERVAL (%s) は LOCATION_INTERVAL (%s) 以下にしてください", c.LocationFastestInterval, c.LocationInterval)
	}
	return nil
}

// WatchOptions は位置情報の購読条件を返す
func (c *Config) WatchOptions() model.WatchOptions {
	return model.WatchOptions{
		MinDistanceMeters: c.LocationMinDistanceM,
		Interval:          c.LocationInterval,
		FastestInterval:   c.LocationFastestInterval,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s の値が不正です: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s の値が不正です: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s の値が不正です: %w", key, err)
	}
	return d, nil
}
