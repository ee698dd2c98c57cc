package model

import "time"

// EntityKind 周辺エンティティの種類
type EntityKind string

const (
	EntityKindUser  EntityKind = "user"
	EntityKindEvent EntityKind = "event"
)

// NearbyEntity 周辺に存在するユーザーまたはイベント
type NearbyEntity struct {
	ID                string     `json:"id"`
	Kind              EntityKind `json:"kind"`
	DisplayName       string     `json:"display_name"`
	Coordinates       LatLng     `json:"coordinates"`
	DistanceKm        float64    `json:"distance_km"`
	VerificationScore float64    `json:"verification_score"`
	IsOnline          bool       `json:"is_online"`
	PrimaryCategory   Category   `json:"primary_category"`
	SecondaryCategory Category   `json:"secondary_category,omitempty"` // 空文字はセカンダリなし
	LastUpdated       time.Time  `json:"last_updated"`
}

// HasSecondary セカンダリカテゴリを持つか
func (e *NearbyEntity) HasSecondary() bool {
	return e.SecondaryCategory != ""
}

// NearbyQuery 周辺エンティティ検索の条件
type NearbyQuery struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  int     `json:"radius_km"`
	Limit     int     `json:"limit"`
}

// Center クエリ中心をLatLngで返す
func (q NearbyQuery) Center() LatLng {
	return LatLng{Lat: q.Latitude, Lng: q.Longitude}
}

// RadiusMeters 半径をメートルで返す
func (q NearbyQuery) RadiusMeters() int {
	return q.RadiusKm * 1000
}

// Viewport 地図の表示領域（中心とズームに比例した範囲）
type Viewport struct {
	Center         LatLng  `json:"center"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// DefaultCategoryFor カテゴリ不明のエンティティに割り当てるカテゴリ
func DefaultCategoryFor(kind EntityKind) Category {
	if kind == EntityKindEvent {
		return CategoryEvents
	}
	return CategoryPeople
}
