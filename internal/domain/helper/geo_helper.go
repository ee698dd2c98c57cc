package helper

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	"LiveMap-App/internal/domain/model"
)

const (
	earthRadiusKm     = 6371.0
	earthRadiusMeters = 6371000.0
)

// HaversineDistance は2地点間の大円距離を計算する (km)
func HaversineDistance(p1, p2 model.LatLng) float64 {
	a := s2.LatLngFromDegrees(p1.Lat, p1.Lng)
	b := s2.LatLngFromDegrees(p2.Lat, p2.Lng)
	return a.Distance(b).Radians() * earthRadiusKm
}

// DistanceMeters は2地点間の距離を計算する (m)
func DistanceMeters(p1, p2 model.LatLng) float64 {
	a := s2.LatLngFromDegrees(p1.Lat, p1.Lng)
	b := s2.LatLngFromDegrees(p2.Lat, p2.Lng)
	return a.Distance(b).Radians() * earthRadiusMeters
}

// RoundKm は距離を小数点以下2桁に丸める
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}

// ToOrbPoint LatLng を orb.Point（経度, 緯度の順）に変換
func ToOrbPoint(p model.LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// QueryBound は検索クエリの中心と半径から境界ボックスを作成する
// 緯度方向は1度=111kmの近似、経度方向は緯度によるcos補正を行う
func QueryBound(query model.NearbyQuery) orb.Bound {
	center := ToOrbPoint(query.Center())
	latPad := float64(query.RadiusKm) / model.KmPerDegreeLatitude

	cosLat := math.Cos(query.Latitude * math.Pi / 180)
	lngPad := latPad
	if cosLat > 0.01 {
		lngPad = latPad / cosLat
	}

	return orb.Bound{
		Min: orb.Point{center.Lon() - lngPad, center.Lat() - latPad},
		Max: orb.Point{center.Lon() + lngPad, center.Lat() + latPad},
	}
}

// ExcludeByID は指定IDのエンティティを除外する（自分自身を結果から除くため）
func ExcludeByID(entities []model.NearbyEntity, id string) []model.NearbyEntity {
	if id == "" {
		return entities
	}
	filtered := make([]model.NearbyEntity, 0, len(entities))
	for _, e := range entities {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// DedupeByID は同一IDのエンティティを1件にまとめる（後勝ち）
func DedupeByID(entities []model.NearbyEntity) []model.NearbyEntity {
	index := make(map[string]int, len(entities))
	result := make([]model.NearbyEntity, 0, len(entities))
	for _, e := range entities {
		if i, ok := index[e.ID]; ok {
			result[i] = e
			continue
		}
		index[e.ID] = len(result)
		result = append(result, e)
	}
	return result
}
