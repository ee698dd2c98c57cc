package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"LiveMap-App/internal/domain/model"
)

// WebSocketDialer は gorilla/websocket を使ったDialer
type WebSocketDialer struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
}

// NewWebSocketDialer は新しいWebSocketDialerを作成
func NewWebSocketDialer(url string) *WebSocketDialer {
	return &WebSocketDialer{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
	}
}

// Dial はAuthorizationヘッダー付きでWebSocket接続を確立する
func (d *WebSocketDialer) Dial(ctx context.Context, token string) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket接続に失敗 (status %s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("WebSocket接続に失敗: %w", err)
	}

	t := &wsTransport{
		conn:      conn,
		writeWait: d.WriteWait,
		done:      make(chan struct{}),
	}

	if d.PongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(d.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(d.PongWait))
		})
	}
	if d.PingInterval > 0 {
		go t.pingLoop(d.PingInterval)
	}

	return t, nil
}

type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, classifyReadError(err)
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	if t.writeWait > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		t.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait)); err != nil {
				return
			}
		}
	}
}

// classifyReadError は相手からのCloseフレームを model.ErrRemoteClosed に変換する
// 1006（Closeフレームなしの切断）はネットワーク障害として扱う
func classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		return fmt.Errorf("%w: code=%d %s", model.ErrRemoteClosed, closeErr.Code, closeErr.Text)
	}
	return err
}
