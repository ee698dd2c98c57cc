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

type fakeLocationSource struct {
	status  model.PermissionStatus
	samples chan model.LocationSample
	watched bool
}

func (s *fakeLocationSource) RequestPermission(ctx context.Context) (model.PermissionStatus, error) {
	return s.status, nil
}

func (s *fakeLocationSource) Watch(ctx context.Context, opts model.WatchOptions) (<-chan model.LocationSample, error) {
	s.watched = true
	return s.samples, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	err    error
	events []string
}

func (e *fakeEmitter) SendEvent(name string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, name)
	return nil
}

type fakeNearby struct {
	mu      sync.Mutex
	centers []model.LatLng
	radii   []int
}

func (n *fakeNearby) RequestNearby(ctx context.Context, center model.LatLng, radiusKm int) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.centers = append(n.centers, center)
	n.radii = append(n.radii, radiusKm)
	return uint64(len(n.centers))
}

type fakeTelemetry struct {
	pushed chan model.Location
}

func (f *fakeTelemetry) PushLocation(ctx context.Context, location model.Location) error {
	f.pushed <- location
	return errors.New("telemetry down")
}

func TestLocationTracker_PermissionDenied(t *testing.T) {
	source := &fakeLocationSource{status: model.PermissionDenied}
	tracker := NewLocationTracker(source, &fakeEmitter{}, &fakeNearby{}, nil, TrackerConfig{Logger: log.New(io.Discard, "", 0)})

	done := make(chan error, 1)
	go func() { done <- tracker.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, model.ErrPermissionDenied)
	case <-time.After(time.Second):
		t.Fatal("拒否時にRunが終了しませんでした")
	}
	assert.False(t, source.watched)
	assert.Equal(t, TrackerDenied, tracker.State())
}

func TestLocationTracker_Samples(t *testing.T) {
	source := &fakeLocationSource{status: model.PermissionGranted, samples: make(chan model.LocationSample)}
	emitter := &fakeEmitter{err: model.ErrNotConnected}
	nearby := &fakeNearby{}
	telemetry := &fakeTelemetry{pushed: make(chan model.Location, 8)}

	var mu sync.Mutex
	var current []model.LocationSample
	tracker := NewLocationTracker(source, emitter, nearby, telemetry, TrackerConfig{
		RadiusKm: 10,
		OnLocation: func(s model.LocationSample) {
			mu.Lock()
			current = append(current, s)
			mu.Unlock()
		},
		Logger: log.New(io.Discard, "", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	// 緯度0.001度 ≒ 111m
	samples := []model.LocationSample{
		{Latitude: 35.0000, Longitude: 135.7, Timestamp: t0},                       // 採用（最初）
		{Latitude: 35.0010, Longitude: 135.7, Timestamp: t0.Add(2 * time.Second)},  // 棄却（最短間隔未満）
		{Latitude: 35.0001, Longitude: 135.7, Timestamp: t0.Add(6 * time.Second)},  // 棄却（移動距離不足）
		{Latitude: 35.0010, Longitude: 135.7, Timestamp: t0.Add(12 * time.Second)}, // 採用
	}
	for _, s := range samples {
		source.samples <- s
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Runが終了しませんでした")
	}

	accepted, rejected := tracker.Counts()
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 2, rejected)
	assert.Equal(t, TrackerStopped, tracker.State())

	// 切断中でも現在地は更新される
	mu.Lock()
	require.Len(t, current, 2)
	assert.Equal(t, samples[3], current[1])
	mu.Unlock()

	nearby.mu.Lock()
	assert.Equal(t, []int{10, 10}, nearby.radii)
	assert.Equal(t, samples[3].ToLatLng(), nearby.centers[1])
	nearby.mu.Unlock()

	// 送信失敗はキューされない
	emitter.mu.Lock()
	assert.Empty(t, emitter.events)
	emitter.mu.Unlock()

	for i := 0; i < 2; i++ {
		select {
		case <-telemetry.pushed:
		case <-time.After(time.Second):
			t.Fatal("テレメトリが送信されませんでした")
		}
	}
}

func TestLocationTracker_EmitsWhenConnected(t *testing.T) {
	source := &fakeLocationSource{status: model.PermissionGranted, samples: make(chan model.LocationSample, 1)}
	emitter := &fakeEmitter{}
	tracker := NewLocationTracker(source, emitter, &fakeNearby{}, nil, TrackerConfig{Logger: log.New(io.Discard, "", 0)})

	source.samples <- model.LocationSample{Latitude: 35, Longitude: 135, Timestamp: time.Now()}
	close(source.samples)

	require.NoError(t, tracker.Run(context.Background()))
	assert.Equal(t, []string{model.EventLocationUpdate}, emitter.events)
}
