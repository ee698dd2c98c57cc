package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
)

// NearbyAPIClient はバックエンドのREST APIを使った近隣検索・位置送信の実装
type NearbyAPIClient struct {
	baseURL    string
	creds      repository.CredentialSource
	httpClient *http.Client
}

// NewNearbyAPIClient は新しいクライアントを生成する
func NewNearbyAPIClient(baseURL string, creds repository.CredentialSource) *NearbyAPIClient {
	return &NearbyAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var (
	_ repository.NearbyEntitiesRepository    = (*NearbyAPIClient)(nil)
	_ repository.LocationTelemetryRepository = (*NearbyAPIClient)(nil)
)

// FindNearby は GET /api/users/nearby を呼び出して近隣エンティティを取得する
func (c *NearbyAPIClient) FindNearby(ctx context.Context, query model.NearbyQuery) ([]model.NearbyEntity, error) {
	// 1. APIリクエストURLを構築
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(query.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(query.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(query.RadiusKm))
	params.Set("limit", strconv.Itoa(query.Limit))
	reqURL := c.baseURL + "/api/users/nearby?" + params.Encode()

	// 2. HTTPリクエストを作成・実行
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	var resp nearbyResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	// 3. ドメインモデルに変換して返す
	entities := make([]model.NearbyEntity, 0, len(resp.Users))
	for _, u := range resp.Users {
		entities = append(entities, u.toDomain())
	}
	return entities, nil
}

// PushLocation は POST /api/users/location で現在地を送信する
func (c *NearbyAPIClient) PushLocation(ctx context.Context, location model.Location) error {
	body, err := json.Marshal(location)
	if err != nil {
		return fmt.Errorf("位置情報のJSONマーシャル失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/users/location", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// do は認証ヘッダーを付けてリクエストを実行し、2xx以外を *model.APIError に変換する
func (c *NearbyAPIClient) do(req *http.Request, out any) error {
	token, err := c.creds.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("JSONのパースに失敗: %w", err)
	}
	return nil
}

func newAPIError(resp *http.Response) *model.APIError {
	apiErr := &model.APIError{StatusCode: resp.StatusCode, Message: resp.Status}

	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			apiErr.Message = body.Message
		case body.Error != "":
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// --- API構造体 ---

type nearbyResponse struct {
	Users []nearbyUserDTO `json:"users"`
}

type nearbyUserDTO struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	Name              string    `json:"name"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Distance          float64   `json:"distance"`
	VerificationScore float64   `json:"verificationScore"`
	IsOnline          bool      `json:"isOnline"`
	PrimaryCategory   string    `json:"primaryCategory"`
	SecondaryCategory string    `json:"secondaryCategory"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

func (u nearbyUserDTO) toDomain() model.NearbyEntity {
	kind := model.EntityKindUser
	if u.Kind == string(model.EntityKindEvent) {
		kind = model.EntityKindEvent
	}
	primary, ok := model.ParseCategory(u.PrimaryCategory)
	if !ok {
		primary = model.DefaultCategoryFor(kind)
	}
	secondary, _ := model.ParseCategory(u.SecondaryCategory)
	if secondary == primary {
		secondary = ""
	}

	return model.NearbyEntity{
		ID:                u.ID,
		Kind:              kind,
		DisplayName:       u.Name,
		Coordinates:       model.LatLng{Lat: u.Latitude, Lng: u.Longitude},
		DistanceKm:        u.Distance,
		VerificationScore: u.VerificationScore,
		IsOnline:          u.IsOnline,
		PrimaryCategory:   primary,
		SecondaryCategory: secondary,
		LastUpdated:       u.LastUpdated,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
