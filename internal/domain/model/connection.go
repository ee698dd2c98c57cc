package model

import "time"

// ConnectionState リアルタイムチャネルの接続状態
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus 接続状態のスナップショット（監視側には値で渡す）
type ConnectionStatus struct {
	State             ConnectionState `json:"state"`
	Connected         bool            `json:"connected"`
	LastError         string          `json:"last_error,omitempty"`
	ReconnectAttempts int             `json:"reconnect_attempts"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
