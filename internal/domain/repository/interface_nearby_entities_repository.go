package repository

import (
	"context"

	"LiveMap-App/internal/domain/model"
)

// NearbyEntitiesRepository は範囲指定で周辺エンティティを取得するリポジトリ
type NearbyEntitiesRepository interface {
	// FindNearby は中心・半径・件数上限で周辺エンティティを取得する（順序は保証しない）
	FindNearby(ctx context.Context, query model.NearbyQuery) ([]model.NearbyEntity, error)
}
