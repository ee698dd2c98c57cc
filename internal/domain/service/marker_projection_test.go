package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveMap-App/internal/domain/model"
)

func testEntities() []model.NearbyEntity {
	updated := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return []model.NearbyEntity{
		{
			ID:              "user-1",
			Kind:            model.EntityKindUser,
			DisplayName:     "Aoi",
			Coordinates:     model.LatLng{Lat: 35.0045, Lng: 135.7687},
			PrimaryCategory: model.CategoryPeople,
			IsOnline:        true,
			LastUpdated:     updated,
		},
		{
			ID:                "user-2",
			Kind:              model.EntityKindUser,
			DisplayName:       "Ren",
			Coordinates:       model.LatLng{Lat: 35.0101, Lng: 135.7590},
			PrimaryCategory:   model.CategoryPeople,
			SecondaryCategory: model.CategoryTrades,
			LastUpdated:       updated,
		},
		{
			ID:              "event-1",
			Kind:            model.EntityKindEvent,
			DisplayName:     "Night market",
			Coordinates:     model.LatLng{Lat: 34.9950, Lng: 135.7800},
			PrimaryCategory: model.CategoryEvents,
			LastUpdated:     updated,
		},
	}
}

func TestProjectMarkers(t *testing.T) {
	t.Run("同じ入力には同じ出力", func(t *testing.T) {
		entities := testEntities()
		filters := model.DefaultFilterSet()

		first := ProjectMarkers(entities, filters)
		second := ProjectMarkers(entities, filters)
		assert.Equal(t, first, second)
		assert.Len(t, first, 4)
	})

	t.Run("入力の順序に依存しない", func(t *testing.T) {
		entities := testEntities()
		reversed := []model.NearbyEntity{entities[2], entities[1], entities[0]}
		assert.Equal(t, ProjectMarkers(entities, model.DefaultFilterSet()), ProjectMarkers(reversed, model.DefaultFilterSet()))
	})

	t.Run("入力を変更しない", func(t *testing.T) {
		entities := testEntities()
		_ = ProjectMarkers(entities, model.FilterSet{People: true})
		assert.Equal(t, testEntities(), entities)
	})

	t.Run("プライマリのみのカテゴリが無効ならマーカーなし", func(t *testing.T) {
		markers := ProjectMarkers(testEntities(), model.FilterSet{People: true, Trades: true})
		for _, m := range markers {
			assert.NotEqual(t, "event-1", m.EntityID)
		}
	})

	t.Run("2カテゴリとも有効ならマーカーは2つ", func(t *testing.T) {
		markers := ProjectMarkers(testEntities()[1:2], model.DefaultFilterSet())
		require.Len(t, markers, 2)

		primary, secondary := markers[0], markers[1]
		assert.Equal(t, "user-2", primary.ID)
		assert.False(t, primary.IsSecondary)
		assert.Equal(t, 1.0, primary.Opacity)
		assert.Equal(t, model.CategoryPeople, primary.Category)

		assert.Equal(t, "user-2-secondary", secondary.ID)
		assert.True(t, secondary.IsSecondary)
		assert.Equal(t, 0.5, secondary.Opacity)
		assert.Equal(t, model.CategoryTrades, secondary.Category)
		assert.Equal(t, model.GetCategoryColor(model.CategoryTrades), secondary.Color)

		assert.Equal(t, primary.Coordinates, secondary.Coordinates)
		assert.Equal(t, primary.EntityID, secondary.EntityID)
	})

	t.Run("セカンダリのみ有効ならセカンダリマーカーだけ", func(t *testing.T) {
		markers := ProjectMarkers(testEntities()[1:2], model.FilterSet{Trades: true})
		require.Len(t, markers, 1)
		assert.True(t, markers[0].IsSecondary)
	})

	t.Run("全カテゴリ無効なら空", func(t *testing.T) {
		assert.Empty(t, ProjectMarkers(testEntities(), model.FilterSet{}))
	})
}

func TestMarkerProjector(t *testing.T) {
	projector := NewMarkerProjector()
	entities := testEntities()
	filters := model.DefaultFilterSet()

	first := projector.Project(1, entities, filters)
	second := projector.Project(1, entities, filters)
	assert.Equal(t, first, second)

	hits, misses := projector.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	// フィルタ変更で再計算
	filtered := projector.Project(1, entities, model.FilterSet{Events: true})
	assert.Len(t, filtered, 1)

	// リビジョン変更で再計算
	_ = projector.Project(2, entities[:1], model.FilterSet{Events: true})
	hits, misses = projector.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 3, misses)
}
