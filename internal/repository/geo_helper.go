package repository

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"LiveMap-App/internal/domain/model"
)

// GeoPoint PostGIS POINT 型の JSON 表現
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// LocationToGeoPoint model.Location を PostGIS POINT 形式に変換
func LocationToGeoPoint(location model.Location) *GeoPoint {
	point := orb.Point{location.Longitude, location.Latitude}

	return &GeoPoint{
		Type:        "Point",
		Coordinates: []float64{point.Lon(), point.Lat()},
	}
}

// GeoPointToLatLng PostGIS POINT を model.LatLng に変換
func GeoPointToLatLng(geoPoint *GeoPoint) (model.LatLng, bool) {
	if geoPoint == nil || len(geoPoint.Coordinates) < 2 {
		return model.LatLng{}, false
	}

	point := orb.Point{geoPoint.Coordinates[0], geoPoint.Coordinates[1]}
	return model.LatLng{Lat: point.Lat(), Lng: point.Lon()}, true
}

// BoundToGeomFilter は境界ボックスを PostGIS の ST_GeomFromText 式に変換する
func BoundToGeomFilter(bound orb.Bound) string {
	wktString := wkt.MarshalString(bound.ToPolygon())
	return fmt.Sprintf("ST_GeomFromText('%s', 4326)", wktString)
}

// entityKindOrDefault はDBの文字列をEntityKindに変換する
func entityKindOrDefault(kind string) model.EntityKind {
	if kind == string(model.EntityKindEvent) {
		return model.EntityKindEvent
	}
	return model.EntityKindUser
}

// categoriesFromDB はプライマリ・セカンダリカテゴリを正規化する
func categoriesFromDB(kind model.EntityKind, primary, secondary string) (model.Category, model.Category) {
	p, ok := model.ParseCategory(primary)
	if !ok {
		p = model.DefaultCategoryFor(kind)
	}
	s, _ := model.ParseCategory(secondary)
	if s == p {
		s = ""
	}
	return p, s
}
