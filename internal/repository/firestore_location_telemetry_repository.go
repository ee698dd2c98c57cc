package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/genproto/googleapis/type/latlng"

	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
)

// FirestoreLocationTelemetryRepository Firestoreの user_locations/{userID} に現在地を保存する
type FirestoreLocationTelemetryRepository struct {
	client *firestore.Client
	creds  repository.CredentialSource
}

// NewFirestoreLocationTelemetryRepository 新しいFirestoreLocationTelemetryRepositoryインスタンスを作成
func NewFirestoreLocationTelemetryRepository(client *firestore.Client, creds repository.CredentialSource) *FirestoreLocationTelemetryRepository {
	return &FirestoreLocationTelemetryRepository{
		client: client,
		creds:  creds,
	}
}

// FirestoreUserLocation Firestoreに保存するドキュメント
type FirestoreUserLocation struct {
	UserID    string         `firestore:"user_id"`
	Location  *latlng.LatLng `firestore:"location"`
	UpdatedAt time.Time      `firestore:"updated_at"`
}

// ToFirestoreUserLocation model.Location をドキュメントに変換
func ToFirestoreUserLocation(userID string, location model.Location, now time.Time) FirestoreUserLocation {
	return FirestoreUserLocation{
		UserID:    userID,
		Location:  &latlng.LatLng{Latitude: location.Latitude, Longitude: location.Longitude},
		UpdatedAt: now.UTC(),
	}
}

// PushLocation は自分のドキュメントを上書きする
func (r *FirestoreLocationTelemetryRepository) PushLocation(ctx context.Context, location model.Location) error {
	userID := r.creds.UserID()
	if userID == "" {
		return model.ErrNoCredential
	}

	doc := ToFirestoreUserLocation(userID, location, time.Now())
	if _, err := r.client.Collection("user_locations").Doc(userID).Set(ctx, doc); err != nil {
		return fmt.Errorf("位置情報の保存に失敗しました: %w", err)
	}
	return nil
}
