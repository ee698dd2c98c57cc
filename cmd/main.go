package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"LiveMap-App/internal/config"
	"LiveMap-App/internal/domain/repository"
	"LiveMap-App/internal/handler"
	"LiveMap-App/internal/infrastructure/api"
	"LiveMap-App/internal/infrastructure/auth"
	"LiveMap-App/internal/infrastructure/database"
	"LiveMap-App/internal/infrastructure/device"
	"LiveMap-App/internal/infrastructure/firestore"
	"LiveMap-App/internal/middleware"
	"LiveMap-App/internal/realtime"
	repoImpl "LiveMap-App/internal/repository"
	"LiveMap-App/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 認証情報
	tokens, err := auth.NewTokenProvider(cfg.AuthToken)
	if err != nil {
		log.Printf("⚠️ AUTH_TOKEN を使用できません（ログインAPIで設定してください）: %v", err)
		tokens, _ = auth.NewTokenProvider("")
	}

	apiClient := api.NewNearbyAPIClient(cfg.APIBaseURL, tokens)

	nearbyRepo, closeNearby, err := buildNearbyRepository(ctx, cfg, apiClient)
	if err != nil {
		log.Fatalf("近隣検索リポジトリの初期化に失敗: %v", err)
	}
	defer closeNearby()

	telemetryRepo, closeTelemetry, err := buildTelemetryRepository(ctx, cfg, apiClient, tokens)
	if err != nil {
		log.Fatalf("テレメトリリポジトリの初期化に失敗: %v", err)
	}
	defer closeTelemetry()

	// 位置情報ソース（シミュレーション端末）
	source, err := device.NewSimulatedSource(cfg.SimulatedRoute, cfg.SimulatedSpeedMps, cfg.LocationPermission)
	if err != nil {
		log.Fatalf("位置情報ソースの初期化に失敗: %v", err)
	}

	// リアルタイムチャネル
	conn := realtime.NewConnectionManager(realtime.NewWebSocketDialer(cfg.RealtimeURL), tokens, realtime.ManagerConfig{
		Backoff: realtime.BackoffPolicy{Base: cfg.ReconnectBaseDelay, Max: cfg.ReconnectMaxDelay},
	})
	go watchConnection(ctx, conn)

	liveMap := usecase.NewLiveMapUseCase(conn, tokens, nearbyRepo, telemetryRepo, source, usecase.LiveMapConfig{
		RadiusKm:     cfg.NearbyRadiusKm,
		Limit:        cfg.NearbyLimit,
		FetchTimeout: cfg.FetchTimeout,
		WatchOptions: cfg.WatchOptions(),
	})

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		liveMap.Run(ctx)
	}()

	// ローカル操作API
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(nil, "/api/health"))
	handler.NewLiveMapHandler(liveMap).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 LiveMap-App server starting on :%s (nearby=%s, telemetry=%s)", cfg.Port, cfg.NearbyBackend, cfg.TelemetryBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("サーバーの起動に失敗: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("🛑 シャットダウン中...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ サーバーのシャットダウンに失敗: %v", err)
	}
	<-sessionDone
}

// buildNearbyRepository は NEARBY_BACKEND に応じた近隣検索の実装を返す
func buildNearbyRepository(ctx context.Context, cfg *config.Config, apiClient *api.NearbyAPIClient) (repository.NearbyEntitiesRepository, func(), error) {
	switch cfg.NearbyBackend {
	case config.BackendSupabase:
		client, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("✅ Supabaseで近隣検索します")
		return repoImpl.NewSupabaseNearbyRepository(client), func() {}, nil

	case config.BackendPostgres:
		client, err := database.NewPostgreSQLClient(ctx, cfg.DatabaseURL, cfg.SupabaseURL, cfg.SupabaseDBPassword)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("✅ PostGISで近隣検索します")
		return repoImpl.NewPostgresNearbyRepository(client), func() { client.Close() }, nil

	default:
		return apiClient, func() {}, nil
	}
}

// buildTelemetryRepository は TELEMETRY_BACKEND に応じた位置送信の実装を返す。none なら nil
func buildTelemetryRepository(ctx context.Context, cfg *config.Config, apiClient *api.NearbyAPIClient, creds repository.CredentialSource) (repository.LocationTelemetryRepository, func(), error) {
	switch cfg.TelemetryBackend {
	case config.BackendNone:
		return nil, func() {}, nil

	case config.BackendSupabase:
		client, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, nil, err
		}
		return repoImpl.NewSupabaseLocationTelemetryRepository(client, creds), func() {}, nil

	case config.BackendFirestore:
		client, err := firestore.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return repoImpl.NewFirestoreLocationTelemetryRepository(client.GetClient(), creds), func() { client.Close() }, nil

	default:
		return apiClient, func() {}, nil
	}
}

// watchConnection は接続状態の変化をログに出す
func watchConnection(ctx context.Context, conn *realtime.ConnectionManager) {
	updates, cancel := conn.Watch()
	defer cancel()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case status := <-updates:
			if string(status.State) == last {
				continue
			}
			last = string(status.State)
			if status.LastError != "" {
				log.Printf("📡 接続状態: %s (再接続 %d回目, %s)", status.State, status.ReconnectAttempts, status.LastError)
			} else {
				log.Printf("📡 接続状態: %s", status.State)
			}
		}
	}
}
