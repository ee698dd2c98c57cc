package repository

import (
	"context"

	"LiveMap-App/internal/domain/model"
)

// LocationTelemetryRepository は現在地をサーバーへ送信するリポジトリ
type LocationTelemetryRepository interface {
	PushLocation(ctx context.Context, location model.Location) error
}
