package model

import "time"

// InboundEvent サーバーから受信するイベント
// 種類を追加した場合は InboundEventVisitor にもメソッドを追加すること
type InboundEvent interface {
	EventName() string
	Accept(v InboundEventVisitor) error
}

// InboundEventVisitor 受信イベントの種類ごとの処理
type InboundEventVisitor interface {
	VisitMessageReceived(e MessageReceived) error
	VisitNearbyLocationUpdated(e NearbyLocationUpdated) error
	VisitPresenceChanged(e PresenceChanged) error
	VisitWaveReceived(e WaveReceived) error
	VisitServerError(e ServerError) error
}

// ChatMessage チャットメッセージ
type ChatMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	SentAt      time.Time `json:"sentAt"`
}

// Wave 「手を振る」通知
type Wave struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"fromUserId"`
	FromName   string    `json:"fromName"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// MessageReceived message:receive
type MessageReceived struct {
	Message ChatMessage
}

func (e MessageReceived) EventName() string { return EventMessageReceive }
func (e MessageReceived) Accept(v InboundEventVisitor) error { return v.VisitMessageReceived(e) }

// NearbyLocationUpdated nearby:update（エンティティの位置差分）
type NearbyLocationUpdated struct {
	EntityID    string
	Coordinates LatLng
	// UpdatedAt はサーバーが時刻を付けなかった場合はゼロ値
	UpdatedAt time.Time
}

func (e NearbyLocationUpdated) EventName() string { return EventNearbyUpdate }
func (e NearbyLocationUpdated) Accept(v InboundEventVisitor) error {
	return v.VisitNearbyLocationUpdated(e)
}

// PresenceChanged user:online / user:offline
type PresenceChanged struct {
	UserID string
	Online bool
}

func (e PresenceChanged) EventName() string {
	if e.Online {
		return EventUserOnline
	}
	return EventUserOffline
}
func (e PresenceChanged) Accept(v InboundEventVisitor) error { return v.VisitPresenceChanged(e) }

// WaveReceived wave:receive
type WaveReceived struct {
	Wave Wave
}

func (e WaveReceived) EventName() string { return EventWaveReceive }
func (e WaveReceived) Accept(v InboundEventVisitor) error { return v.VisitWaveReceived(e) }

// ServerError error イベント
type ServerError struct {
	Message string
}

func (e ServerError) EventName() string { return EventError }
func (e ServerError) Accept(v InboundEventVisitor) error { return v.VisitServerError(e) }

// LocationUpdatePayload location:update の送信ペイロード
type LocationUpdatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MessageSendPayload message:send の送信ペイロード
type MessageSendPayload struct {
	RecipientID     string `json:"recipientId"`
	Content         string `json:"content"`
	Type            string `json:"type"`
	ClientMessageID string `json:"clientMessageId"`
}

// WaveSendPayload wave:send の送信ペイロード
type WaveSendPayload struct {
	RecipientID string `json:"recipientId"`
}
