package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential 認証トークンが存在しない、または期限切れ
	ErrNoCredential = errors.New("no auth credential available")
	// ErrNotConnected チャネルが接続されていない
	ErrNotConnected = errors.New("realtime channel is not connected")
	// ErrSendQueueFull 送信キューが満杯
	ErrSendQueueFull = errors.New("realtime send queue is full")
	// ErrPermissionDenied 位置情報のパーミッションが拒否された
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrUnknownEvent 未知の受信イベント
	ErrUnknownEvent = errors.New("unknown inbound event")
	// ErrRemoteClosed サーバー側から切断された
	ErrRemoteClosed = errors.New("connection closed by remote peer")
)

// APIError REST APIが返したエラー（ユーザーに表示できるメッセージを持つ）
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}
