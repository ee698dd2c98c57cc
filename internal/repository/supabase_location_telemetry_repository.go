package repository

import (
	"context"
	"fmt"
	"time"

	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
	"LiveMap-App/internal/infrastructure/database"
)

type SupabaseLocationTelemetryRepository struct {
	client *database.SupabaseClient
	creds  repository.CredentialSource
}

func NewSupabaseLocationTelemetryRepository(client *database.SupabaseClient, creds repository.CredentialSource) repository.LocationTelemetryRepository {
	return &SupabaseLocationTelemetryRepository{
		client: client,
		creds:  creds,
	}
}

// userLocationRow user_locations テーブルの行（user_idで一意）
type userLocationRow struct {
	UserID    string    `json:"user_id"`
	Location  *GeoPoint `json:"location"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PushLocation は自分の現在地を user_locations にupsertする
func (r *SupabaseLocationTelemetryRepository) PushLocation(ctx context.Context, location model.Location) error {
	userID := r.creds.UserID()
	if userID == "" {
		return model.ErrNoCredential
	}

	row := userLocationRow{
		UserID:    userID,
		Location:  LocationToGeoPoint(location),
		UpdatedAt: time.Now().UTC(),
	}

	_, _, err := r.client.GetClient().From("user_locations").Insert(row, true, "user_id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("位置情報の保存失敗: %w", err)
	}
	return nil
}
