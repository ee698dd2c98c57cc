package service

import (
	"sort"
	"time"

	"LiveMap-App/internal/domain/helper"
	"LiveMap-App/internal/domain/model"
)

// EntityStore は周辺エンティティの正となる集合（IDをキーに重複なし）
//
// セッションのイベントループからのみ操作される前提でロックは持たない。
// 変更のたびにリビジョンが増え、マーカー投影のキャッシュキーになる。
type EntityStore struct {
	entities map[string]model.NearbyEntity
	revision uint64
}

// NewEntityStore は空のEntityStoreを作成
func NewEntityStore() *EntityStore {
	return &EntityStore{
		entities: make(map[string]model.NearbyEntity),
	}
}

// Revision は現在のリビジョンを返す
func (s *EntityStore) Revision() uint64 {
	return s.revision
}

// Len はエンティティ数を返す
func (s *EntityStore) Len() int {
	return len(s.entities)
}

// Get はIDでエンティティを取得する
func (s *EntityStore) Get(id string) (model.NearbyEntity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// ReplaceAll は取得結果でエンティティ集合を丸ごと置き換える
func (s *EntityStore) ReplaceAll(entities []model.NearbyEntity) {
	next := make(map[string]model.NearbyEntity, len(entities))
	for _, e := range helper.DedupeByID(entities) {
		if e.ID == "" {
			continue
		}
		next[e.ID] = e
	}
	s.entities = next
	s.revision++
}

// SetOnline はオンライン状態を更新する。変化がなければ何もしない
func (s *EntityStore) SetOnline(id string, online bool) bool {
	e, ok := s.entities[id]
	if !ok || e.IsOnline == online {
		return false
	}
	e.IsOnline = online
	s.entities[id] = e
	s.revision++
	return true
}

// ApplyLocationDelta は位置の差分を適用する
// 保持している更新時刻より新しいものだけを適用するため、重複配信や順序の逆転に対して冪等
// 時刻のない差分は座標が変わる場合だけ適用し、更新時刻は据え置く
func (s *EntityStore) ApplyLocationDelta(id string, coords model.LatLng, updatedAt time.Time, viewer *model.LatLng) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	if updatedAt.IsZero() {
		if coords == e.Coordinates {
			return false
		}
	} else {
		if !updatedAt.After(e.LastUpdated) {
			return false
		}
		e.LastUpdated = updatedAt
	}
	e.Coordinates = coords
	if viewer != nil {
		e.DistanceKm = helper.RoundKm(helper.HaversineDistance(*viewer, coords))
	}
	s.entities[id] = e
	s.revision++
	return true
}

// Snapshot はID順に並べたエンティティのコピーを返す
func (s *EntityStore) Snapshot() []model.NearbyEntity {
	result := make([]model.NearbyEntity, 0, len(s.entities))
	for _, e := range s.entities {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}
