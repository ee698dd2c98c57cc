package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
	"LiveMap-App/internal/domain/service"
	"LiveMap-App/internal/realtime"
)

// ErrSessionStopped セッションのイベントループが停止している
var ErrSessionStopped = errors.New("live map session is stopped")

// ConnectionController はリアルタイムチャネルの操作口（realtime.ConnectionManager が実装）
type ConnectionController interface {
	Connect() error
	Disconnect()
	SendEvent(name string, payload any) error
	Status() model.ConnectionStatus
	RegisterHandler(h realtime.FrameHandler) func()
}

// SessionCredentials はログイン・ログアウトで書き換えられる認証情報
type SessionCredentials interface {
	repository.CredentialSource
	SetToken(token string) error
	Clear()
}

type LiveMapUseCase interface {
	// Run はイベントループを実行する。ctxがキャンセルされるまで戻らない
	Run(ctx context.Context) error

	Login(token string) error
	Logout() error

	Status() (*SessionStatus, error)
	Entities() ([]model.NearbyEntity, error)
	Markers() ([]model.Marker, error)
	Filters() (model.FilterSet, error)
	SetFilters(filters model.FilterSet) error
	ToggleFilter(category model.Category) (model.FilterSet, error)

	ViewportChanged(v model.Viewport) error
	ViewportSettled(v model.Viewport) (*ViewportResult, error)
	PositionOverlay(anchor model.OverlayAnchor, layout *model.OverlayLayout) model.OverlayPosition

	SendMessage(recipientID, content, messageType string) (*model.ChatMessage, error)
	SendWave(recipientID string) error
	Messages() ([]model.ChatMessage, error)
	Waves() ([]model.Wave, error)
}

// LiveMapConfig はセッションの設定
type LiveMapConfig struct {
	RadiusKm      int
	Limit         int
	FetchTimeout  time.Duration
	WatchOptions  model.WatchOptions
	OverlayLayout model.OverlayLayout
	QueueSize     int
	Logger        *log.Logger
}

// SessionStatus はセッション全体の状態
type SessionStatus struct {
	Connection         model.ConnectionStatus `json:"connection"`
	UserID             string                 `json:"user_id,omitempty"`
	Tracker            string                 `json:"tracker"`
	Location           *model.LocationSample  `json:"location,omitempty"`
	EntityCount        int                    `json:"entity_count"`
	Filters            model.FilterSet        `json:"filters"`
	LastQuery          *model.NearbyQuery     `json:"last_query,omitempty"`
	LastFetchError     string                 `json:"last_fetch_error,omitempty"`
	LastServerError    string                 `json:"last_server_error,omitempty"`
	LatestGeneration   uint64                 `json:"latest_generation"`
	DiscardedResponses int                    `json:"discarded_responses"`
	Events             service.RouterStats    `json:"events"`
	ProjectionHits     int                    `json:"projection_hits"`
	ProjectionMisses   int                    `json:"projection_misses"`
}

// ViewportResult は表示領域確定時の検索結果
type ViewportResult struct {
	Query      model.NearbyQuery `json:"query"`
	Generation uint64            `json:"generation"`
	Issued     bool              `json:"issued"`
}

// liveMapUseCaseImpl はLiveMapUseCaseの実装
//
// 状態の変更（受信イベント、検索結果、位置更新、フィルター操作、UIからの参照）はすべて
// 1つのゴルーチンで動くイベントループ上で行う。他のゴルーチンは post / call で処理を依頼する。
type liveMapUseCaseImpl struct {
	conn    ConnectionController
	creds   SessionCredentials
	planner *service.ViewportQueryPlanner
	tracker *service.LocationTracker
	logger  *log.Logger

	ops  chan func()
	done chan struct{}

	// 以下はイベントループだけが触る
	runCtx          context.Context
	store           *service.EntityStore
	chat            *service.ChatState
	router          *service.EventRouter
	projector       *service.MarkerProjector
	filters         model.FilterSet
	location        *model.LocationSample
	lastQuery       *model.NearbyQuery
	lastFetchErr    string
	lastServerErr   string
	unregister      func()
	epoch           uint64
	overlayDefaults model.OverlayLayout
}

// NewLiveMapUseCase は新しいLiveMapUseCaseインスタンスを作成
// telemetry は nil でもよい
func NewLiveMapUseCase(
	conn ConnectionController,
	creds SessionCredentials,
	nearbyRepo repository.NearbyEntitiesRepository,
	telemetry repository.LocationTelemetryRepository,
	source service.LocationSource,
	cfg LiveMapConfig,
) LiveMapUseCase {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.OverlayLayout == (model.OverlayLayout{}) {
		cfg.OverlayLayout = model.DefaultOverlayLayout()
	}

	u := &liveMapUseCaseImpl{
		conn:            conn,
		creds:           creds,
		logger:          cfg.Logger,
		ops:             make(chan func(), cfg.QueueSize),
		done:            make(chan struct{}),
		runCtx:          context.Background(),
		store:           service.NewEntityStore(),
		chat:            service.NewChatState(),
		projector:       service.NewMarkerProjector(),
		filters:         model.DefaultFilterSet(),
		overlayDefaults: cfg.OverlayLayout,
	}

	u.router = service.NewEventRouter(u.store, u.chat, u.viewer, u.onServerError, cfg.Logger)

	u.planner = service.NewViewportQueryPlanner(nearbyRepo, u, service.PlannerConfig{
		Limit:        cfg.Limit,
		FetchTimeout: cfg.FetchTimeout,
		SelfID:       creds.UserID,
		Deliver:      u.post,
		Logger:       cfg.Logger,
	})

	u.tracker = service.NewLocationTracker(source, conn, u.planner, telemetry, service.TrackerConfig{
		Options:    cfg.WatchOptions,
		RadiusKm:   cfg.RadiusKm,
		OnLocation: u.onLocation,
		Logger:     cfg.Logger,
	})

	return u
}

// Run はイベントループを実行する
func (u *liveMapUseCaseImpl) Run(ctx context.Context) error {
	u.runCtx = ctx

	go func() {
		if err := u.tracker.Run(ctx); err != nil {
			u.logger.Printf("⚠️ 位置情報の追跡を停止: %v", err)
		}
	}()

	// 起動時に認証情報があれば接続する
	if _, err := u.creds.Token(); err == nil {
		u.connect()
	}

	u.logger.Printf("🗺️ ライブマップセッションを開始")
	for {
		select {
		case <-ctx.Done():
			u.shutdown()
			close(u.done)
			return nil
		case op := <-u.ops:
			op()
		}
	}
}

func (u *liveMapUseCaseImpl) shutdown() {
	u.conn.Disconnect()
	u.unregister = nil
	u.epoch++
	u.logger.Printf("🛑 ライブマップセッションを終了")
}

// post は処理をイベントループに積む（結果は待たない）。ループ停止後は捨てる
func (u *liveMapUseCaseImpl) post(fn func()) {
	select {
	case u.ops <- fn:
	case <-u.done:
	}
}

// call は処理をイベントループで実行し、完了まで待つ
func (u *liveMapUseCaseImpl) call(fn func()) error {
	reply := make(chan struct{})
	select {
	case u.ops <- func() {
		fn()
		close(reply)
	}:
	case <-u.done:
		return ErrSessionStopped
	}

	select {
	case <-reply:
		return nil
	case <-u.done:
		return ErrSessionStopped
	}
}

// connect はフレームハンドラーを登録してから接続を開始する（ループ上で呼ぶ）
func (u *liveMapUseCaseImpl) connect() error {
	if u.unregister == nil {
		epoch := u.epoch
		u.unregister = u.conn.RegisterHandler(func(frame []byte) {
			u.onFrame(epoch, frame)
		})
	}
	return u.conn.Connect()
}

// onFrame は受信フレームをイベントループに渡す。受信順はそのまま保たれる
// 切断より前に登録したハンドラーから届いたフレームはループ上で捨てる
func (u *liveMapUseCaseImpl) onFrame(epoch uint64, frame []byte) {
	u.post(func() {
		if epoch != u.epoch {
			return
		}
		name, evt, err := realtime.DecodeInboundEvent(frame)
		if err != nil {
			u.router.Drop(name, err)
			return
		}
		u.router.Dispatch(evt)
	})
}

func (u *liveMapUseCaseImpl) onLocation(sample model.LocationSample) {
	u.post(func() {
		s := sample
		u.location = &s
	})
}

// viewer はルーターから（ループ上で）呼ばれる
func (u *liveMapUseCaseImpl) viewer() *model.LatLng {
	if u.location == nil {
		return nil
	}
	ll := u.location.ToLatLng()
	return &ll
}

func (u *liveMapUseCaseImpl) onServerError(message string) {
	u.lastServerErr = message
	u.logger.Printf("⚠️ サーバーからのエラー: %s", message)
}

// ApplyNearbyResult は最新の検索結果でエンティティを置き換える（ループ上で呼ばれる）
func (u *liveMapUseCaseImpl) ApplyNearbyResult(query model.NearbyQuery, entities []model.NearbyEntity) {
	u.store.ReplaceAll(entities)
	q := query
	u.lastQuery = &q
	u.lastFetchErr = ""
	u.logger.Printf("📍 周辺エンティティを更新: %d件 (半径%dkm)", u.store.Len(), query.RadiusKm)
}

// ApplyNearbyError はエラーメッセージだけを記録し、エンティティは保持する（ループ上で呼ばれる）
func (u *liveMapUseCaseImpl) ApplyNearbyError(query model.NearbyQuery, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		u.lastFetchErr = apiErr.Message
		return
	}
	u.lastFetchErr = err.Error()
}

// Login はトークンを設定して接続する
func (u *liveMapUseCaseImpl) Login(token string) error {
	if err := u.creds.SetToken(token); err != nil {
		return err
	}
	var connErr error
	if err := u.call(func() { connErr = u.connect() }); err != nil {
		return err
	}
	if connErr != nil {
		return connErr
	}
	u.logger.Printf("🔑 ログイン: %s", u.creds.UserID())
	return nil
}

// Logout は切断してからトークンを破棄し、ユーザーに紐づく状態を消す
func (u *liveMapUseCaseImpl) Logout() error {
	err := u.call(func() {
		u.conn.Disconnect()
		u.unregister = nil
		u.epoch++
		u.creds.Clear()
		u.planner.Invalidate()
		u.store.ReplaceAll(nil)
		u.chat.Reset()
		u.lastQuery = nil
		u.lastFetchErr = ""
		u.lastServerErr = ""
	})
	if err != nil {
		return err
	}
	u.logger.Printf("👋 ログアウトしました")
	return nil
}

func (u *liveMapUseCaseImpl) Status() (*SessionStatus, error) {
	var status *SessionStatus
	err := u.call(func() {
		hits, misses := u.projector.Stats()
		status = &SessionStatus{
			Connection:         u.conn.Status(),
			UserID:             u.creds.UserID(),
			Tracker:            string(u.tracker.State()),
			Location:           u.location,
			EntityCount:        u.store.Len(),
			Filters:            u.filters,
			LastQuery:          u.lastQuery,
			LastFetchError:     u.lastFetchErr,
			LastServerError:    u.lastServerErr,
			LatestGeneration:   u.planner.LatestGeneration(),
			DiscardedResponses: u.planner.Discarded(),
			Events:             u.router.Stats(),
			ProjectionHits:     hits,
			ProjectionMisses:   misses,
		}
	})
	return status, err
}

func (u *liveMapUseCaseImpl) Entities() ([]model.NearbyEntity, error) {
	var entities []model.NearbyEntity
	err := u.call(func() {
		entities = u.store.Snapshot()
	})
	return entities, err
}

// Markers は現在のエンティティとフィルターから描画用マーカーを作る
func (u *liveMapUseCaseImpl) Markers() ([]model.Marker, error) {
	var markers []model.Marker
	err := u.call(func() {
		markers = u.projector.Project(u.store.Revision(), u.store.Snapshot(), u.filters)
	})
	return markers, err
}

func (u *liveMapUseCaseImpl) Filters() (model.FilterSet, error) {
	var filters model.FilterSet
	err := u.call(func() {
		filters = u.filters
	})
	return filters, err
}

func (u *liveMapUseCaseImpl) SetFilters(filters model.FilterSet) error {
	return u.call(func() {
		u.filters = filters
	})
}

func (u *liveMapUseCaseImpl) ToggleFilter(category model.Category) (model.FilterSet, error) {
	var (
		filters model.FilterSet
		ok      bool
	)
	err := u.call(func() {
		u.filters, ok = u.filters.Toggle(category)
		filters = u.filters
	})
	if err != nil {
		return filters, err
	}
	if !ok {
		return filters, fmt.Errorf("不明なカテゴリ: %s", category)
	}
	return filters, nil
}

func (u *liveMapUseCaseImpl) ViewportChanged(v model.Viewport) error {
	return u.call(func() {
		u.planner.ViewportChanged(v)
	})
}

// ViewportSettled は操作終了時の表示領域で周辺検索を発行する。結果は非同期に反映される
func (u *liveMapUseCaseImpl) ViewportSettled(v model.Viewport) (*ViewportResult, error) {
	var result *ViewportResult
	err := u.call(func() {
		gen, issued := u.planner.ViewportSettled(u.runCtx, v)
		result = &ViewportResult{
			Query:      u.planner.QueryFor(v.Center, service.RadiusKm(v.LatitudeDelta)),
			Generation: gen,
			Issued:     issued,
		}
	})
	return result, err
}

// PositionOverlay は layout が nil なら既定のレイアウトで配置を計算する
func (u *liveMapUseCaseImpl) PositionOverlay(anchor model.OverlayAnchor, layout *model.OverlayLayout) model.OverlayPosition {
	l := u.overlayDefaults
	if layout != nil {
		l = *layout
	}
	return service.PositionOverlay(anchor, l)
}

// SendMessage はメッセージを送信し、送信したメッセージを自分のチャット履歴にも追加する
func (u *liveMapUseCaseImpl) SendMessage(recipientID, content, messageType string) (*model.ChatMessage, error) {
	if messageType == "" {
		messageType = "text"
	}
	payload := model.MessageSendPayload{
		RecipientID:     recipientID,
		Content:         content,
		Type:            messageType,
		ClientMessageID: uuid.New().String(),
	}
	if err := u.conn.SendEvent(model.EventMessageSend, payload); err != nil {
		return nil, err
	}

	msg := model.ChatMessage{
		ID:          payload.ClientMessageID,
		SenderID:    u.creds.UserID(),
		RecipientID: recipientID,
		Content:     content,
		Type:        messageType,
		SentAt:      time.Now(),
	}
	if err := u.call(func() { u.chat.AddMessage(msg) }); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (u *liveMapUseCaseImpl) SendWave(recipientID string) error {
	return u.conn.SendEvent(model.EventWaveSend, model.WaveSendPayload{RecipientID: recipientID})
}

func (u *liveMapUseCaseImpl) Messages() ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := u.call(func() {
		messages = u.chat.Messages()
	})
	return messages, err
}

func (u *liveMapUseCaseImpl) Waves() ([]model.Wave, error) {
	var waves []model.Wave
	err := u.call(func() {
		waves = u.chat.Waves()
	})
	return waves, err
}
