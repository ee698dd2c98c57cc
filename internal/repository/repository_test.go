package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveMap-App/internal/domain/model"
)

func TestGeoPointConversion(t *testing.T) {
	gp := LocationToGeoPoint(model.Location{Latitude: 35.0116, Longitude: 135.7681})
	assert.Equal(t, "Point", gp.Type)
	assert.Equal(t, []float64{135.7681, 35.0116}, gp.Coordinates)

	ll, ok := GeoPointToLatLng(gp)
	require.True(t, ok)
	assert.Equal(t, model.LatLng{Lat: 35.0116, Lng: 135.7681}, ll)

	_, ok = GeoPointToLatLng(&GeoPoint{Type: "Point"})
	assert.False(t, ok)
	_, ok = GeoPointToLatLng(nil)
	assert.False(t, ok)
}

func TestBoundToGeomFilter(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{135, 35}, Max: orb.Point{136, 36}}
	got := BoundToGeomFilter(bound)
	assert.Equal(t, "ST_GeomFromText('POLYGON((135 35,136 35,136 36,135 36,135 35))', 4326)", got)
}

func TestNearbyEntityResult_ToNearbyEntity(t *testing.T) {
	updated := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	result := NearbyEntityResult{
		ID:                "u1",
		Kind:              "user",
		DisplayName:       "Aoi",
		Location:          `{"type":"Point","coordinates":[135.7681,35.0116]}`,
		VerificationScore: sql.NullFloat64{Float64: 0.8, Valid: true},
		IsOnline:          true,
		PrimaryCategory:   "people",
		SecondaryCategory: sql.NullString{String: "people", Valid: true},
		UpdatedAt:         updated,
		DistanceMeters:    1234,
	}

	entity, err := result.ToNearbyEntity()
	require.NoError(t, err)
	assert.Equal(t, model.LatLng{Lat: 35.0116, Lng: 135.7681}, entity.Coordinates)
	assert.Equal(t, 1.23, entity.DistanceKm)
	assert.Equal(t, model.CategoryPeople, entity.PrimaryCategory)
	assert.False(t, entity.HasSecondary(), "プライマリと同じセカンダリは持たない")
	assert.Equal(t, updated, entity.LastUpdated)

	result.Location = "not json"
	_, err = result.ToNearbyEntity()
	assert.Error(t, err)
}

func TestRowsToNearbyEntities(t *testing.T) {
	center := model.NearbyQuery{Latitude: 35.0116, Longitude: 135.7681, RadiusKm: 2, Limit: 2}
	// far: 約10km, mid: 約1.3km, near: 約0.1km, near2: 約0.2km
	rows := []nearbyEntityRow{
		{ID: "far", Location: &GeoPoint{Type: "Point", Coordinates: []float64{135.7681, 35.1}}},
		{ID: "mid", Kind: "event", Location: &GeoPoint{Type: "Point", Coordinates: []float64{135.7788, 35.0037}}, PrimaryCategory: "bogus"},
		{ID: "near", Location: &GeoPoint{Type: "Point", Coordinates: []float64{135.7690, 35.0120}}, PrimaryCategory: "people", SecondaryCategory: "trades"},
		{ID: "nolocation"},
		{ID: "near2", Location: &GeoPoint{Type: "Point", Coordinates: []float64{135.7700, 35.0120}}},
	}

	entities := rowsToNearbyEntities(rows, center)
	require.Len(t, entities, 2)
	assert.Equal(t, "near", entities[0].ID)
	assert.Equal(t, model.CategoryTrades, entities[0].SecondaryCategory)
	assert.Equal(t, "near2", entities[1].ID)

	center.Limit = 10
	entities = rowsToNearbyEntities(rows, center)
	require.Len(t, entities, 3)
	assert.Equal(t, "mid", entities[2].ID)
	assert.Equal(t, model.EntityKindEvent, entities[2].Kind)
	assert.Equal(t, model.CategoryEvents, entities[2].PrimaryCategory)
}

func TestToFirestoreUserLocation(t *testing.T) {
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, time.FixedZone("JST", 9*60*60))
	doc := ToFirestoreUserLocation("me", model.Location{Latitude: 35.0116, Longitude: 135.7681}, now)

	assert.Equal(t, "me", doc.UserID)
	assert.Equal(t, 35.0116, doc.Location.Latitude)
	assert.Equal(t, 135.7681, doc.Location.Longitude)
	assert.Equal(t, time.UTC, doc.UpdatedAt.Location())
	assert.True(t, now.Equal(doc.UpdatedAt))
}
