package service

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveMap-App/internal/domain/model"
)

type fetchResult struct {
	entities []model.NearbyEntity
	err      error
}

// gatedRepository は呼び出しごとにテスト側が応答のタイミングを制御できるリポジトリ
type gatedRepository struct {
	mu      sync.Mutex
	queries []model.NearbyQuery
	gates   []chan fetchResult
	called  chan struct{}
}

func newGatedRepository() *gatedRepository {
	return &gatedRepository{called: make(chan struct{}, 16)}
}

func (r *gatedRepository) FindNearby(ctx context.Context, query model.NearbyQuery) ([]model.NearbyEntity, error) {
	gate := make(chan fetchResult, 1)
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.gates = append(r.gates, gate)
	r.mu.Unlock()
	r.called <- struct{}{}

	select {
	case res := <-gate:
		return res.entities, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *gatedRepository) waitCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.called:
		case <-time.After(time.Second):
			t.Fatalf("fetch %d が呼ばれませんでした", i)
		}
	}
}

func (r *gatedRepository) resolve(i int, res fetchResult) {
	r.mu.Lock()
	gate := r.gates[i]
	r.mu.Unlock()
	gate <- res
}

type recordingSink struct {
	mu      sync.Mutex
	store   *EntityStore
	errors  []error
	applied chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{store: NewEntityStore(), applied: make(chan struct{}, 16)}
}

func (s *recordingSink) ApplyNearbyResult(query model.NearbyQuery, entities []model.NearbyEntity) {
	s.store.ReplaceAll(entities)
}

func (s *recordingSink) ApplyNearbyError(query model.NearbyQuery, err error) {
	s.errors = append(s.errors, err)
}

// deliver は結果反映を直列化する（セッションのイベントループの代わり）
func (s *recordingSink) deliver(f func()) {
	s.mu.Lock()
	f()
	s.mu.Unlock()
	s.applied <- struct{}{}
}

func (s *recordingSink) waitDelivered(t *testing.T) {
	t.Helper()
	select {
	case <-s.applied:
	case <-time.After(time.Second):
		t.Fatal("結果が反映されませんでした")
	}
}

func (s *recordingSink) snapshot() []model.NearbyEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

func newTestPlanner(repo *gatedRepository, sink *recordingSink, selfID string) *ViewportQueryPlanner {
	return NewViewportQueryPlanner(repo, sink, PlannerConfig{
		Limit:   20,
		SelfID:  func() string { return selfID },
		Deliver: sink.deliver,
		Logger:  log.New(io.Discard, "", 0),
	})
}

func TestRadiusKm(t *testing.T) {
	assert.Equal(t, 10, RadiusKm(0.0922))
	assert.Equal(t, 111, RadiusKm(1.0))
	assert.Equal(t, 0, RadiusKm(0))
	assert.Equal(t, 1, RadiusKm(0.01))
}

func TestViewportQueryPlanner_StaleResponseIsDiscarded(t *testing.T) {
	repo := newGatedRepository()
	sink := newRecordingSink()
	planner := newTestPlanner(repo, sink, "")
	ctx := context.Background()

	genA, issued := planner.ViewportSettled(ctx, model.Viewport{Center: model.LatLng{Lat: 35.0, Lng: 135.7}, LatitudeDelta: 0.0922})
	require.True(t, issued)
	genB, issued := planner.ViewportSettled(ctx, model.Viewport{Center: model.LatLng{Lat: 35.1, Lng: 135.8}, LatitudeDelta: 0.0922})
	require.True(t, issued)
	assert.Greater(t, genB, genA)
	repo.waitCalls(t, 2)

	entitiesA := []model.NearbyEntity{{ID: "a", PrimaryCategory: model.CategoryPeople}}
	entitiesB := []model.NearbyEntity{{ID: "b", PrimaryCategory: model.CategoryEvents}}

	// Bが先に返り、Aが後から返る
	repo.resolve(1, fetchResult{entities: entitiesB})
	sink.waitDelivered(t)
	repo.resolve(0, fetchResult{entities: entitiesA})
	sink.waitDelivered(t)

	assert.Equal(t, entitiesB, sink.snapshot())
	assert.Equal(t, 1, planner.Discarded())
}

func TestViewportQueryPlanner_Invalidate(t *testing.T) {
	repo := newGatedRepository()
	sink := newRecordingSink()
	planner := newTestPlanner(repo, sink, "")
	ctx := context.Background()

	viewport := model.Viewport{Center: model.LatLng{Lat: 35.0, Lng: 135.7}, LatitudeDelta: 0.0922}
	gen, issued := planner.ViewportSettled(ctx, viewport)
	require.True(t, issued)
	repo.waitCalls(t, 1)

	planner.Invalidate()
	assert.Greater(t, planner.LatestGeneration(), gen)

	repo.resolve(0, fetchResult{entities: []model.NearbyEntity{{ID: "a", PrimaryCategory: model.CategoryPeople}}})
	sink.waitDelivered(t)
	assert.Empty(t, sink.snapshot())
	assert.Equal(t, 1, planner.Discarded())

	// 直前の条件を忘れるので同じ表示領域でも再検索する
	_, issued = planner.ViewportSettled(ctx, viewport)
	assert.True(t, issued)
	repo.waitCalls(t, 1)
	repo.resolve(1, fetchResult{})
	sink.waitDelivered(t)
}

func TestViewportQueryPlanner_Query(t *testing.T) {
	repo := newGatedRepository()
	sink := newRecordingSink()
	planner := newTestPlanner(repo, sink, "me")
	ctx := context.Background()

	viewport := model.Viewport{Center: model.LatLng{Lat: 35.0, Lng: 135.7}, LatitudeDelta: 0.0922, LongitudeDelta: 0.0421}

	t.Run("途中フレームでは検索しない", func(t *testing.T) {
		planner.ViewportChanged(viewport)
		planner.ViewportChanged(viewport)
		assert.True(t, planner.Interacting())
		assert.Equal(t, uint64(0), planner.LatestGeneration())
	})

	t.Run("確定時に中心と半径で検索", func(t *testing.T) {
		_, issued := planner.ViewportSettled(ctx, viewport)
		require.True(t, issued)
		assert.False(t, planner.Interacting())
		repo.waitCalls(t, 1)

		repo.mu.Lock()
		q := repo.queries[0]
		repo.mu.Unlock()
		assert.Equal(t, model.NearbyQuery{Latitude: 35.0, Longitude: 135.7, RadiusKm: 10, Limit: 20}, q)

		repo.resolve(0, fetchResult{entities: []model.NearbyEntity{{ID: "me"}, {ID: "other"}}})
		sink.waitDelivered(t)
		snap := sink.snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, "other", snap[0].ID)
	})

	t.Run("同じ条件の再確定は検索しない", func(t *testing.T) {
		_, issued := planner.ViewportSettled(ctx, viewport)
		assert.False(t, issued)
	})

	t.Run("失敗しても前回の結果を保持し、同じ条件で再検索できる", func(t *testing.T) {
		moved := viewport
		moved.Center.Lat = 35.2
		_, issued := planner.ViewportSettled(ctx, moved)
		require.True(t, issued)
		repo.waitCalls(t, 1)
		repo.resolve(1, fetchResult{err: errors.New("timeout")})
		sink.waitDelivered(t)

		assert.Len(t, sink.snapshot(), 1)
		sink.mu.Lock()
		assert.Len(t, sink.errors, 1)
		sink.mu.Unlock()

		_, issued = planner.ViewportSettled(ctx, moved)
		assert.True(t, issued)
		repo.waitCalls(t, 1)
		repo.resolve(2, fetchResult{})
		sink.waitDelivered(t)
	})

	t.Run("位置更新からの検索は常に発行", func(t *testing.T) {
		before := planner.LatestGeneration()
		gen := planner.RequestNearby(ctx, viewport.Center, 0)
		assert.Equal(t, before+1, gen)
		repo.waitCalls(t, 1)

		repo.mu.Lock()
		q := repo.queries[len(repo.queries)-1]
		repo.mu.Unlock()
		assert.Equal(t, 1, q.RadiusKm)
		repo.resolve(3, fetchResult{})
		sink.waitDelivered(t)
	})
}
