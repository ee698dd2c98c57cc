package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/usecase"
)

// LiveMapHandler ライブマップのローカル操作APIのHTTPハンドラー
type LiveMapHandler struct {
	liveMapUseCase usecase.LiveMapUseCase
}

// NewLiveMapHandler LiveMapHandlerの新しいインスタンスを作成
func NewLiveMapHandler(uc usecase.LiveMapUseCase) *LiveMapHandler {
	return &LiveMapHandler{
		liveMapUseCase: uc,
	}
}

// RegisterRoutes /api 以下にルートを登録する
func (h *LiveMapHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/status", h.GetStatus)
		api.GET("/entities", h.GetEntities)
		api.GET("/markers", h.GetMarkers)
		api.GET("/filters", h.GetFilters)
		api.PUT("/filters", h.PutFilters)
		api.POST("/filters/:category/toggle", h.ToggleFilter)
		api.POST("/viewport", h.PostViewport)
		api.POST("/overlay", h.PostOverlay)
		api.GET("/messages", h.GetMessages)
		api.POST("/messages", h.PostMessage)
		api.GET("/waves", h.GetWaves)
		api.POST("/waves", h.PostWave)
		api.POST("/session/login", h.Login)
		api.POST("/session/logout", h.Logout)
	}
}

// --- リクエスト構造体 ---

// ViewportRequest POST /api/viewport のリクエスト
// settled=false はパン・ズーム中の途中フレーム
type ViewportRequest struct {
	Latitude       float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude      float64 `json:"longitude" binding:"min=-180,max=180"`
	LatitudeDelta  float64 `json:"latitude_delta" binding:"gt=0"`
	LongitudeDelta float64 `json:"longitude_delta"`
	Settled        *bool   `json:"settled"`
}

// OverlayRequest POST /api/overlay のリクエスト
type OverlayRequest struct {
	Anchor model.OverlayAnchor  `json:"anchor"`
	Layout *model.OverlayLayout `json:"layout,omitempty"`
}

// SendMessageRequest POST /api/messages のリクエスト
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
	Type        string `json:"type"`
}

// SendWaveRequest POST /api/waves のリクエスト
type SendWaveRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

// LoginRequest POST /api/session/login のリクエスト
type LoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// Health GET /api/health
func (h *LiveMapHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "LiveMap-App"})
}

// GetStatus GET /api/status - 接続・位置・検索の状態
func (h *LiveMapHandler) GetStatus(c *gin.Context) {
	status, err := h.liveMapUseCase.Status()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetEntities GET /api/entities - 周辺エンティティ一覧
func (h *LiveMapHandler) GetEntities(c *gin.Context) {
	entities, err := h.liveMapUseCase.Entities()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": nonNil(entities)})
}

// GetMarkers GET /api/markers - フィルター適用済みの描画用マーカー
func (h *LiveMapHandler) GetMarkers(c *gin.Context) {
	markers, err := h.liveMapUseCase.Markers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markers": nonNil(markers)})
}

// GetFilters GET /api/filters
func (h *LiveMapHandler) GetFilters(c *gin.Context) {
	filters, err := h.liveMapUseCase.Filters()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, filters)
}

// PutFilters PUT /api/filters - フィルターを丸ごと置き換える
func (h *LiveMapHandler) PutFilters(c *gin.Context) {
	var filters model.FilterSet
	if err := c.ShouldBindJSON(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}
	if err := h.liveMapUseCase.SetFilters(filters); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, filters)
}

// ToggleFilter POST /api/filters/:category/toggle
func (h *LiveMapHandler) ToggleFilter(c *gin.Context) {
	category, ok := model.ParseCategory(c.Param("category"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_parameter",
			"message": "category must be one of: people, events, trades",
		})
		return
	}

	filters, err := h.liveMapUseCase.ToggleFilter(category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, filters)
}

// PostViewport POST /api/viewport - 表示領域の変化・確定
func (h *LiveMapHandler) PostViewport(c *gin.Context) {
	var req ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}

	viewport := model.Viewport{
		Center:         model.LatLng{Lat: req.Latitude, Lng: req.Longitude},
		LatitudeDelta:  req.LatitudeDelta,
		LongitudeDelta: req.LongitudeDelta,
	}

	if req.Settled != nil && !*req.Settled {
		if err := h.liveMapUseCase.ViewportChanged(viewport); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"issued": false})
		return
	}

	result, err := h.liveMapUseCase.ViewportSettled(viewport)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// PostOverlay POST /api/overlay - マーカータップ位置からメニュー位置を計算
func (h *LiveMapHandler) PostOverlay(c *gin.Context) {
	var req OverlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.liveMapUseCase.PositionOverlay(req.Anchor, req.Layout))
}

// GetMessages GET /api/messages
func (h *LiveMapHandler) GetMessages(c *gin.Context) {
	messages, err := h.liveMapUseCase.Messages()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

// PostMessage POST /api/messages - メッセージ送信
func (h *LiveMapHandler) PostMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}

	msg, err := h.liveMapUseCase.SendMessage(req.RecipientID, req.Content, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetWaves GET /api/waves
func (h *LiveMapHandler) GetWaves(c *gin.Context) {
	waves, err := h.liveMapUseCase.Waves()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"waves": nonNil(waves)})
}

// PostWave POST /api/waves - 手を振る
func (h *LiveMapHandler) PostWave(c *gin.Context) {
	var req SendWaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}
	if err := h.liveMapUseCase.SendWave(req.RecipientID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// Login POST /api/session/login
func (h *LiveMapHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}
	if err := h.liveMapUseCase.Login(req.Token); err != nil {
		if errors.Is(err, usecase.ErrSessionStopped) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_token",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_in": true})
}

// Logout POST /api/session/logout
func (h *LiveMapHandler) Logout(c *gin.Context) {
	if err := h.liveMapUseCase.Logout(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_in": false})
}

// respondError はドメインのエラーをHTTPステータスに対応付けて返す
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "not_connected",
			"message": "リアルタイムチャネルに接続されていません",
		})
	case errors.Is(err, model.ErrSendQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "send_queue_full",
			"message": "送信キューが満杯です。しばらくしてから再試行してください",
		})
	case errors.Is(err, usecase.ErrSessionStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "session_stopped",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

// nonNil はnilスライスを空配列としてJSONに出すため
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
