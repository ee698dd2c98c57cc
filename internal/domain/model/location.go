package model

import "time"

// LatLng 緯度経度を表す基本的な型（マーカー座標やクエリ中心で使用）
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location REST APIやテレメトリ送信で使う位置情報
type Location struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

// ToLatLng Location を LatLng に変換
func (l Location) ToLatLng() LatLng {
	return LatLng{Lat: l.Latitude, Lng: l.Longitude}
}

// ToGeometry Location を PostGIS GEOMETRY 型に変換
func (l Location) ToGeometry() *Geometry {
	return &Geometry{
		Type:        "Point",
		Coordinates: []float64{l.Longitude, l.Latitude},
	}
}

// Geometry PostGIS GEOMETRY型（GeoJSON）に対応する構造体
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
}

// ToLatLng GeoJSONのPointをLatLngに変換
func (g *Geometry) ToLatLng() LatLng {
	if g != nil && len(g.Coordinates) >= 2 {
		return LatLng{
			Lat: g.Coordinates[1], // latitude
			Lng: g.Coordinates[0], // longitude
		}
	}
	return LatLng{}
}

// LocationSample 端末の位置情報サンプル（最新の1件のみ保持する）
type LocationSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"` // メートル
	Timestamp time.Time `json:"timestamp"`
}

// ToLatLng サンプルの座標をLatLngで返す
func (s LocationSample) ToLatLng() LatLng {
	return LatLng{Lat: s.Latitude, Lng: s.Longitude}
}

// ToLocation テレメトリ送信用のLocationに変換
func (s LocationSample) ToLocation() Location {
	return Location{Latitude: s.Latitude, Longitude: s.Longitude}
}

// PermissionStatus 位置情報パーミッションの状態
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

// WatchOptions 位置情報購読時のフィルタ設定
type WatchOptions struct {
	MinDistanceMeters float64
	Interval          time.Duration
	FastestInterval   time.Duration
}
