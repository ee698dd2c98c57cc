package realtime

import (
	"context"
	"time"
)

// Transport は確立済みの双方向チャネル
//
// ReadMessage は1つのゴルーチンからのみ、WriteMessage も1つのゴルーチンからのみ呼ばれる。
// Close はどこからでも呼んでよく、ブロック中の ReadMessage をエラーで戻す。
// 相手側から切断された場合、ReadMessage は model.ErrRemoteClosed をラップしたエラーを返す。
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer は認証トークン付きでチャネルを開く
type Dialer interface {
	Dial(ctx context.Context, token string) (Transport, error)
}

// BackoffPolicy は再接続の待ち時間（指数的に伸ばし上限で頭打ち）
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoffPolicy は1秒から倍々で最大30秒
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Base: time.Second, Max: 30 * time.Second}
}

// Delay は attempt 回目（1始まり）の再試行までの待ち時間
func (b BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Base <= 0 {
		return 0
	}
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}
