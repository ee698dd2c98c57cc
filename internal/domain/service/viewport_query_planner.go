package service

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"LiveMap-App/internal/domain/helper"
	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
)

// RadiusKm は表示領域の緯度幅から検索半径(km)を求める
// 1度=111kmの平坦な近似で、高緯度での経度方向の縮みは補正しない
func RadiusKm(latitudeDelta float64) int {
	return int(math.Round(latitudeDelta * model.KmPerDegreeLatitude))
}

// NearbyResultSink は採用された検索結果の反映先
type NearbyResultSink interface {
	ApplyNearbyResult(query model.NearbyQuery, entities []model.NearbyEntity)
	ApplyNearbyError(query model.NearbyQuery, err error)
}

// PlannerConfig はViewportQueryPlannerの設定
type PlannerConfig struct {
	Limit        int
	FetchTimeout time.Duration
	// SelfID は結果から除外する自分自身のID
	SelfID func() string
	// Deliver は結果の反映処理をセッションのイベントループ上で実行する
	Deliver func(func())
	Logger  *log.Logger
}

// ViewportQueryPlanner は表示領域の変化を範囲付きの周辺検索に変換する
//
// 発行した検索には単調増加する世代番号を振り、応答が届いた時点で最新の世代でなければ破棄する。
// 検索の直列化やキャンセルは行わない。
type ViewportQueryPlanner struct {
	repo         repository.NearbyEntitiesRepository
	sink         NearbyResultSink
	limit        int
	fetchTimeout time.Duration
	selfID       func() string
	deliver      func(func())
	logger       *log.Logger

	mu         sync.Mutex
	generation uint64
	lastIssued *model.NearbyQuery
	lastFailed bool
	pending    *model.Viewport
	discarded  int
}

// NewViewportQueryPlanner は新しいViewportQueryPlannerを作成
func NewViewportQueryPlanner(repo repository.NearbyEntitiesRepository, sink NearbyResultSink, cfg PlannerConfig) *ViewportQueryPlanner {
	if cfg.Limit <= 0 {
		cfg.Limit = model.DefaultNearbyLimit
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.SelfID == nil {
		cfg.SelfID = func() string { return "" }
	}
	if cfg.Deliver == nil {
		cfg.Deliver = func(f func()) { f() }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &ViewportQueryPlanner{
		repo:         repo,
		sink:         sink,
		limit:        cfg.Limit,
		fetchTimeout: cfg.FetchTimeout,
		selfID:       cfg.SelfID,
		deliver:      cfg.Deliver,
		logger:       cfg.Logger,
	}
}

// ViewportChanged はパン・ズーム中の途中フレームを記録するだけで検索はしない
func (p *ViewportQueryPlanner) ViewportChanged(v model.Viewport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = &v
}

// ViewportSettled は操作終了時の表示領域で検索を発行する
// 直前に発行した検索と同じ条件で、それが失敗していなければ発行しない
func (p *ViewportQueryPlanner) ViewportSettled(ctx context.Context, v model.Viewport) (uint64, bool) {
	query := p.QueryFor(v.Center, RadiusKm(v.LatitudeDelta))

	p.mu.Lock()
	p.pending = nil
	if p.lastIssued != nil && *p.lastIssued == query && !p.lastFailed {
		gen := p.generation
		p.mu.Unlock()
		return gen, false
	}
	p.mu.Unlock()

	return p.issue(ctx, query), true
}

// RequestNearby は中心と半径を指定して検索を発行する（位置情報の更新時に使用）
func (p *ViewportQueryPlanner) RequestNearby(ctx context.Context, center model.LatLng, radiusKm int) uint64 {
	return p.issue(ctx, p.QueryFor(center, radiusKm))
}

// QueryFor は検索条件を組み立てる
func (p *ViewportQueryPlanner) QueryFor(center model.LatLng, radiusKm int) model.NearbyQuery {
	if radiusKm < 1 {
		radiusKm = 1
	}
	return model.NearbyQuery{
		Latitude:  center.Lat,
		Longitude: center.Lng,
		RadiusKm:  radiusKm,
		Limit:     p.limit,
	}
}

// LatestGeneration は最後に発行した検索の世代番号
func (p *ViewportQueryPlanner) LatestGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Interacting はパン・ズーム操作中（確定前のフレームがある）か
func (p *ViewportQueryPlanner) Interacting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Discarded は破棄した古い応答の件数
func (p *ViewportQueryPlanner) Discarded() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discarded
}

// Invalidate は発行済みの検索をすべて古い世代として扱い、以後の応答を破棄させる
func (p *ViewportQueryPlanner) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.lastIssued = nil
	p.lastFailed = false
	p.pending = nil
}

func (p *ViewportQueryPlanner) issue(ctx context.Context, query model.NearbyQuery) uint64 {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	q := query
	p.lastIssued = &q
	p.lastFailed = false
	p.mu.Unlock()

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()

		entities, err := p.repo.FindNearby(fetchCtx, query)
		p.deliver(func() {
			p.complete(gen, query, entities, err)
		})
	}()

	return gen
}

func (p *ViewportQueryPlanner) complete(gen uint64, query model.NearbyQuery, entities []model.NearbyEntity, err error) {
	p.mu.Lock()
	if gen != p.generation {
		p.discarded++
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.lastFailed = true
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Printf("⚠️ 周辺検索に失敗（前回の結果を保持）: %v", err)
		p.sink.ApplyNearbyError(query, err)
		return
	}

	p.sink.ApplyNearbyResult(query, helper.ExcludeByID(entities, p.selfID()))
}
