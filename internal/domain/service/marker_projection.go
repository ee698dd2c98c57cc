package service

import (
	"sort"
	"sync"

	"LiveMap-App/internal/domain/model"
)

// ProjectMarkers は周辺エンティティとフィルタから描画用マーカーを生成する純粋関数
//
// プライマリカテゴリが有効ならプライマリマーカーを、セカンダリカテゴリを持ち
// かつ有効ならセカンダリマーカー（同座標・半透明）を追加で生成する。
// 出力はマーカーID順に並べるため、同じ入力には常に同じ出力を返す。
func ProjectMarkers(entities []model.NearbyEntity, filters model.FilterSet) []model.Marker {
	markers := make([]model.Marker, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		if filters.Enabled(e.PrimaryCategory) {
			markers = append(markers, newMarker(e, e.PrimaryCategory, false))
		}
		if e.HasSecondary() && filters.Enabled(e.SecondaryCategory) {
			markers = append(markers, newMarker(e, e.SecondaryCategory, true))
		}
	}

	sort.Slice(markers, func(i, j int) bool {
		return markers[i].ID < markers[j].ID
	})
	return markers
}

func newMarker(e *model.NearbyEntity, category model.Category, secondary bool) model.Marker {
	m := model.Marker{
		ID:          e.ID,
		EntityID:    e.ID,
		Kind:        e.Kind,
		Title:       e.DisplayName,
		Coordinates: e.Coordinates,
		Category:    category,
		Color:       model.GetCategoryColor(category),
		Opacity:     model.PrimaryMarkerOpacity,
		IsOnline:    e.IsOnline,
	}
	if secondary {
		m.ID = e.ID + model.SecondaryMarkerSuffix
		m.Opacity = model.SecondaryMarkerOpacity
		m.IsSecondary = true
	}
	return m
}

// MarkerProjector は ProjectMarkers の結果をエンティティ集合のリビジョンとフィルタでキャッシュする
type MarkerProjector struct {
	mu       sync.Mutex
	valid    bool
	revision uint64
	filters  model.FilterSet
	markers  []model.Marker
	hits     int
	misses   int
}

// NewMarkerProjector は新しいMarkerProjectorを作成
func NewMarkerProjector() *MarkerProjector {
	return &MarkerProjector{}
}

// Project はキャッシュが有効ならそれを、無効なら再計算した結果を返す
// 返すスライスは呼び出し側で変更しないこと
func (p *MarkerProjector) Project(revision uint64, entities []model.NearbyEntity, filters model.FilterSet) []model.Marker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.valid && p.revision == revision && p.filters == filters {
		p.hits++
		return p.markers
	}

	p.misses++
	p.markers = ProjectMarkers(entities, filters)
	p.revision = revision
	p.filters = filters
	p.valid = true
	return p.markers
}

// Stats はキャッシュのヒット数・ミス数を返す
func (p *MarkerProjector) Stats() (hits, misses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}
