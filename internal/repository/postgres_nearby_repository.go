package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"LiveMap-App/internal/domain/helper"
	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
	"LiveMap-App/internal/infrastructure/database"
)

type PostgresNearbyRepository struct {
	client *database.PostgreSQLClient
}

func NewPostgresNearbyRepository(client *database.PostgreSQLClient) repository.NearbyEntitiesRepository {
	return &PostgresNearbyRepository{
		client: client,
	}
}

// NearbyEntityResult PostGISクエリの結果を受け取るための構造体
type NearbyEntityResult struct {
	ID                string
	Kind              string
	DisplayName       string
	Location          string
	VerificationScore sql.NullFloat64
	IsOnline          bool
	PrimaryCategory   string
	SecondaryCategory sql.NullString
	UpdatedAt         time.Time
	DistanceMeters    float64
}

// ToNearbyEntity NearbyEntityResultをmodel.NearbyEntityに変換
func (r *NearbyEntityResult) ToNearbyEntity() (model.NearbyEntity, error) {
	var location GeoPoint
	if err := json.Unmarshal([]byte(r.Location), &location); err != nil {
		return model.NearbyEntity{}, fmt.Errorf("location JSONパースエラー: %w", err)
	}
	coords, ok := GeoPointToLatLng(&location)
	if !ok {
		return model.NearbyEntity{}, fmt.Errorf("entity %s の座標が不正です", r.ID)
	}

	kind := entityKindOrDefault(r.Kind)
	primary, secondary := categoriesFromDB(kind, r.PrimaryCategory, r.SecondaryCategory.String)

	return model.NearbyEntity{
		ID:                r.ID,
		Kind:              kind,
		DisplayName:       r.DisplayName,
		Coordinates:       coords,
		DistanceKm:        helper.RoundKm(r.DistanceMeters / 1000),
		VerificationScore: r.VerificationScore.Float64,
		IsOnline:          r.IsOnline,
		PrimaryCategory:   primary,
		SecondaryCategory: secondary,
		LastUpdated:       r.UpdatedAt,
	}, nil
}

// FindNearby はPostGISのST_DWithinで半径内のエンティティを近い順に取得する
func (r *PostgresNearbyRepository) FindNearby(ctx context.Context, q model.NearbyQuery) ([]model.NearbyEntity, error) {
	query := `
		SELECT
			e.id, e.kind, e.display_name,
			ST_AsGeoJSON(e.location)::jsonb as location,
			e.verification_score, e.is_online,
			e.primary_category, e.secondary_category, e.updated_at,
			ST_Distance(
				ST_GeogFromText('POINT(' || $2 || ' ' || $1 || ')'),
				e.location::geography
			) as distance_meters
		FROM nearby_entities e
		WHERE ST_DWithin(
			ST_GeogFromText('POINT(' || $2 || ' ' || $1 || ')'),
			e.location::geography,
			$3
		)
		ORDER BY distance_meters
		LIMIT $4
	`

	rows, err := r.client.DB.QueryContext(ctx, query, q.Latitude, q.Longitude, q.RadiusMeters(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("周辺エンティティ検索失敗: %w", err)
	}
	defer rows.Close()

	var entities []model.NearbyEntity
	for rows.Next() {
		var result NearbyEntityResult
		err := rows.Scan(&result.ID, &result.Kind, &result.DisplayName, &result.Location,
			&result.VerificationScore, &result.IsOnline,
			&result.PrimaryCategory, &result.SecondaryCategory, &result.UpdatedAt,
			&result.DistanceMeters)
		if err != nil {
			return nil, fmt.Errorf("周辺エンティティのスキャンエラー: %w", err)
		}

		entity, err := result.ToNearbyEntity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("周辺エンティティの読み込みエラー: %w", err)
	}

	return entities, nil
}
