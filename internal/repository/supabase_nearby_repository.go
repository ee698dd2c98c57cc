package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"LiveMap-App/internal/domain/helper"
	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
	"LiveMap-App/internal/infrastructure/database"
)

type SupabaseNearbyRepository struct {
	client *database.SupabaseClient
}

func NewSupabaseNearbyRepository(client *database.SupabaseClient) repository.NearbyEntitiesRepository {
	return &SupabaseNearbyRepository{
		client: client,
	}
}

// nearbyEntityRow nearby_entities テーブルの行
type nearbyEntityRow struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	DisplayName       string    `json:"display_name"`
	Location          *GeoPoint `json:"location"`
	VerificationScore float64   `json:"verification_score"`
	IsOnline          bool      `json:"is_online"`
	PrimaryCategory   string    `json:"primary_category"`
	SecondaryCategory string    `json:"secondary_category"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FindNearby は境界ボックスで絞り込んだあと、中心からの距離で半径内に限定して近い順に返す
func (r *SupabaseNearbyRepository) FindNearby(ctx context.Context, q model.NearbyQuery) ([]model.NearbyEntity, error) {
	bound := helper.QueryBound(q)

	data, count, err := r.client.GetClient().From("nearby_entities").
		Select("id,kind,display_name,location,verification_score,is_online,primary_category,secondary_category,updated_at", "exact", false).
		Filter("location", "st_intersects", BoundToGeomFilter(bound)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("境界ボックス検索エラー: %w", err)
	}
	_ = count

	var rows []nearbyEntityRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("周辺エンティティのJSONアンマーシャル失敗: %w", err)
	}

	return rowsToNearbyEntities(rows, q), nil
}

// rowsToNearbyEntities は半径外の行を除き、距離を付けて近い順に最大Limit件を返す
func rowsToNearbyEntities(rows []nearbyEntityRow, q model.NearbyQuery) []model.NearbyEntity {
	center := q.Center()
	radiusKm := float64(q.RadiusKm)

	entities := make([]model.NearbyEntity, 0, len(rows))
	for _, row := range rows {
		coords, ok := GeoPointToLatLng(row.Location)
		if !ok {
			continue
		}
		distance := helper.HaversineDistance(center, coords)
		if distance > radiusKm {
			continue
		}

		kind := entityKindOrDefault(row.Kind)
		primary, secondary := categoriesFromDB(kind, row.PrimaryCategory, row.SecondaryCategory)
		entities = append(entities, model.NearbyEntity{
			ID:                row.ID,
			Kind:              kind,
			DisplayName:       row.DisplayName,
			Coordinates:       coords,
			DistanceKm:        helper.RoundKm(distance),
			VerificationScore: row.VerificationScore,
			IsOnline:          row.IsOnline,
			PrimaryCategory:   primary,
			SecondaryCategory: secondary,
			LastUpdated:       row.UpdatedAt,
		})
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].DistanceKm < entities[j].DistanceKm
	})
	if q.Limit > 0 && len(entities) > q.Limit {
		entities = entities[:q.Limit]
	}
	return entities
}
