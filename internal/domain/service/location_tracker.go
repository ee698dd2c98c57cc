package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"LiveMap-App/internal/domain/helper"
	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
)

// LocationSource は端末の位置情報機能
type LocationSource interface {
	RequestPermission(ctx context.Context) (model.PermissionStatus, error)
	// Watch はサンプルを配信するチャネルを返す。ctxのキャンセルで停止し、チャネルは閉じられる
	Watch(ctx context.Context, opts model.WatchOptions) (<-chan model.LocationSample, error)
}

// EventEmitter はリアルタイムチャネルへの送信口
type EventEmitter interface {
	SendEvent(name string, payload any) error
}

// NearbyRequester は周辺検索の発行口
type NearbyRequester interface {
	RequestNearby(ctx context.Context, center model.LatLng, radiusKm int) uint64
}

// TrackerState は位置追跡の状態
type TrackerState string

const (
	TrackerIdle     TrackerState = "idle"
	TrackerTracking TrackerState = "tracking"
	TrackerDenied   TrackerState = "permission_denied"
	TrackerStopped  TrackerState = "stopped"
)

// TrackerConfig はLocationTrackerの設定
type TrackerConfig struct {
	Options          model.WatchOptions
	RadiusKm         int
	TelemetryTimeout time.Duration
	// OnLocation は採用したサンプルを現在地として反映する
	OnLocation func(model.LocationSample)
	Logger     *log.Logger
}

// DefaultWatchOptions は50m・10秒（最短5秒）の購読設定
func DefaultWatchOptions() model.WatchOptions {
	return model.WatchOptions{
		MinDistanceMeters: 50,
		Interval:          10 * time.Second,
		FastestInterval:   5 * time.Second,
	}
}

// LocationTracker は端末の位置を購読し、間引いたうえで状態更新・送信・周辺検索を行う
type LocationTracker struct {
	source    LocationSource
	emitter   EventEmitter
	nearby    NearbyRequester
	telemetry repository.LocationTelemetryRepository

	opts             model.WatchOptions
	radiusKm         int
	telemetryTimeout time.Duration
	onLocation       func(model.LocationSample)
	logger           *log.Logger

	mu       sync.Mutex
	state    TrackerState
	last     *model.LocationSample
	accepted int
	rejected int
}

// NewLocationTracker は新しいLocationTrackerを作成。telemetry はnilでもよい
func NewLocationTracker(source LocationSource, emitter EventEmitter, nearby NearbyRequester, telemetry repository.LocationTelemetryRepository, cfg TrackerConfig) *LocationTracker {
	if cfg.Options == (model.WatchOptions{}) {
		cfg.Options = DefaultWatchOptions()
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = model.DefaultNearbyRadiusKm
	}
	if cfg.TelemetryTimeout <= 0 {
		cfg.TelemetryTimeout = 10 * time.Second
	}
	if cfg.OnLocation == nil {
		cfg.OnLocation = func(model.LocationSample) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &LocationTracker{
		source:           source,
		emitter:          emitter,
		nearby:           nearby,
		telemetry:        telemetry,
		opts:             cfg.Options,
		radiusKm:         cfg.RadiusKm,
		telemetryTimeout: cfg.TelemetryTimeout,
		onLocation:       cfg.OnLocation,
		logger:           cfg.Logger,
		state:            TrackerIdle,
	}
}

// Run はパーミッションを確認して購読を開始し、ctxがキャンセルされるまでサンプルを処理する
// パーミッションが拒否された場合は model.ErrPermissionDenied を返して終了する（再試行しない）
func (t *LocationTracker) Run(ctx context.Context) error {
	status, err := t.source.RequestPermission(ctx)
	if err != nil {
		t.setState(TrackerDenied)
		return fmt.Errorf("位置情報パーミッションの要求に失敗: %w", err)
	}
	if status != model.PermissionGranted {
		t.setState(TrackerDenied)
		t.logger.Printf("🚫 位置情報のパーミッションが拒否されました。現在地なしで動作します")
		return model.ErrPermissionDenied
	}

	samples, err := t.source.Watch(ctx, t.opts)
	if err != nil {
		t.setState(TrackerStopped)
		return fmt.Errorf("位置情報の購読開始に失敗: %w", err)
	}

	t.setState(TrackerTracking)
	t.logger.Printf("📍 位置情報の追跡を開始 (%.0fm / %v)", t.opts.MinDistanceMeters, t.opts.Interval)

	for {
		select {
		case <-ctx.Done():
			t.setState(TrackerStopped)
			return nil
		case sample, ok := <-samples:
			if !ok {
				t.setState(TrackerStopped)
				return nil
			}
			t.handleSample(ctx, sample)
		}
	}
}

// State は現在の追跡状態
func (t *LocationTracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Counts は採用・棄却したサンプル数
func (t *LocationTracker) Counts() (accepted, rejected int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accepted, t.rejected
}

func (t *LocationTracker) setState(s TrackerState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// accept は最短間隔と最小移動距離でサンプルを間引く
func (t *LocationTracker) accept(sample model.LocationSample) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil {
		elapsed := sample.Timestamp.Sub(t.last.Timestamp)
		if elapsed < t.opts.FastestInterval {
			t.rejected++
			return false
		}
		if helper.DistanceMeters(t.last.ToLatLng(), sample.ToLatLng()) < t.opts.MinDistanceMeters {
			t.rejected++
			return false
		}
	}

	s := sample
	t.last = &s
	t.accepted++
	return true
}

func (t *LocationTracker) handleSample(ctx context.Context, sample model.LocationSample) {
	if !t.accept(sample) {
		return
	}

	// 1. 現在地の更新（接続状態に関係なく行う）
	t.onLocation(sample)

	// 2. チャネルへの送信（失敗しても再送しない。次のサンプルで上書きされる）
	payload := model.LocationUpdatePayload{Lat: sample.Latitude, Lng: sample.Longitude}
	if err := t.emitter.SendEvent(model.EventLocationUpdate, payload); err != nil {
		t.logger.Printf("location:update を送信せず: %v", err)
	}

	// 3. 周辺検索
	t.nearby.RequestNearby(ctx, sample.ToLatLng(), t.radiusKm)

	// 4. テレメトリ送信（ベストエフォート）
	if t.telemetry != nil {
		go func(loc model.Location) {
			pushCtx, cancel := context.WithTimeout(ctx, t.telemetryTimeout)
			defer cancel()
			if err := t.telemetry.PushLocation(pushCtx, loc); err != nil {
				t.logger.Printf("⚠️ 位置情報テレメトリの送信に失敗: %v", err)
			}
		}(sample.ToLocation())
	}
}
