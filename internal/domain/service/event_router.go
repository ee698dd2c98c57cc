package service

import (
	"errors"
	"fmt"
	"log"

	"LiveMap-App/internal/domain/model"
)

// RouterStats はルーターの処理件数
type RouterStats struct {
	Dispatched int `json:"dispatched"`
	Applied    int `json:"applied"`
	Duplicates int `json:"duplicates"`
	Dropped    int `json:"dropped"`
	Failed     int `json:"failed"`
}

// EventRouter は受信イベントを種類ごとのハンドラーに振り分けて状態に反映する
//
// 各ハンドラーは重複配信に対して冪等。ハンドラーの失敗やpanicはここで捕捉してログに残し、
// チャネルの状態には影響させない。
type EventRouter struct {
	entities      *EntityStore
	chat          *ChatState
	viewer        func() *model.LatLng
	onServerError func(message string)
	logger        *log.Logger
	stats         RouterStats
}

// NewEventRouter は新しいEventRouterを作成
// viewer は距離再計算に使う現在地（未取得ならnil）を返す
func NewEventRouter(entities *EntityStore, chat *ChatState, viewer func() *model.LatLng, onServerError func(string), logger *log.Logger) *EventRouter {
	if logger == nil {
		logger = log.Default()
	}
	if viewer == nil {
		viewer = func() *model.LatLng { return nil }
	}
	if onServerError == nil {
		onServerError = func(string) {}
	}
	return &EventRouter{
		entities:      entities,
		chat:          chat,
		viewer:        viewer,
		onServerError: onServerError,
		logger:        logger,
	}
}

var _ model.InboundEventVisitor = (*EventRouter)(nil)

// errDuplicate は重複配信で何も変わらなかったことを表す
var errDuplicate = errors.New("duplicate delivery")

// Dispatch はイベントを処理する。panicしない
func (r *EventRouter) Dispatch(evt model.InboundEvent) (err error) {
	r.stats.Dispatched++

	defer func() {
		if rec := recover(); rec != nil {
			r.stats.Failed++
			err = fmt.Errorf("イベント処理中にpanicが発生: %v", rec)
			r.logger.Printf("❌ %v", err)
		}
	}()

	if evt == nil {
		r.stats.Dropped++
		return fmt.Errorf("nilイベント")
	}

	err = evt.Accept(r)
	switch {
	case err == nil:
		r.stats.Applied++
	case errors.Is(err, errDuplicate):
		r.stats.Duplicates++
		err = nil
	default:
		r.stats.Failed++
		r.logger.Printf("⚠️ イベント %s の処理に失敗: %v", evt.EventName(), err)
	}
	return err
}

// Drop はデコードできなかった受信フレームを記録して破棄する
func (r *EventRouter) Drop(name string, cause error) {
	r.stats.Dropped++
	if errors.Is(cause, model.ErrUnknownEvent) {
		r.logger.Printf("⚠️ 未知のイベントを破棄: %q", name)
		return
	}
	r.logger.Printf("⚠️ 不正なイベントを破棄: %q: %v", name, cause)
}

// Stats は処理件数を返す
func (r *EventRouter) Stats() RouterStats {
	return r.stats
}

// VisitMessageReceived message:receive
func (r *EventRouter) VisitMessageReceived(e model.MessageReceived) error {
	if !r.chat.AddMessage(e.Message) {
		return errDuplicate
	}
	return nil
}

// VisitNearbyLocationUpdated nearby:update
func (r *EventRouter) VisitNearbyLocationUpdated(e model.NearbyLocationUpdated) error {
	if e.EntityID == "" {
		return fmt.Errorf("エンティティIDがありません")
	}
	if !r.entities.ApplyLocationDelta(e.EntityID, e.Coordinates, e.UpdatedAt, r.viewer()) {
		// 未知のエンティティ、または古い・重複した差分
		return errDuplicate
	}
	return nil
}

// VisitPresenceChanged user:online / user:offline
func (r *EventRouter) VisitPresenceChanged(e model.PresenceChanged) error {
	if e.UserID == "" {
		return fmt.Errorf("ユーザーIDがありません")
	}
	if !r.entities.SetOnline(e.UserID, e.Online) {
		return errDuplicate
	}
	return nil
}

// VisitWaveReceived wave:receive
func (r *EventRouter) VisitWaveReceived(e model.WaveReceived) error {
	if !r.chat.AddWave(e.Wave) {
		return errDuplicate
	}
	r.logger.Printf("👋 %s から手を振られました", e.Wave.FromName)
	return nil
}

// VisitServerError error
func (r *EventRouter) VisitServerError(e model.ServerError) error {
	r.logger.Printf("⚠️ サーバーエラーイベント: %s", e.Message)
	r.onServerError(e.Message)
	return nil
}
