package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"LiveMap-App/internal/domain/model"
	"LiveMap-App/internal/domain/repository"
)

// FrameHandler は受信フレームの処理関数
type FrameHandler func(frame []byte)

// ManagerConfig はConnectionManagerの設定
type ManagerConfig struct {
	Backoff       BackoffPolicy
	DialTimeout   time.Duration
	SendQueueSize int
	Logger        *log.Logger
}

// ConnectionManager は認証付きリアルタイムチャネルを1本だけ保持し、接続・再接続・切断を管理する
//
// 状態遷移: Disconnected → Connecting → Connected → Reconnecting → Disconnected（明示的な切断で終端）
//   - 相手側からの切断: 待たずに即再接続（試行回数は増やさない）
//   - ローカルの通信障害: 試行回数を増やし、バックオフ後に再接続（回数上限なし）
//
// 世代番号で古いセッションのダイヤル結果や読み込みエラーを無視し、同時に2本のセッションを持たない。
type ConnectionManager struct {
	dialer      Dialer
	creds       repository.CredentialSource
	backoff     BackoffPolicy
	dialTimeout time.Duration
	queueSize   int
	logger      *log.Logger

	mu            sync.Mutex
	state         model.ConnectionState
	attempts      int
	lastErr       string
	updatedAt     time.Time
	generation    uint64
	sess          *session
	lifeCtx       context.Context
	cancelLife    context.CancelFunc
	retryTimer    *time.Timer
	handlers      map[int]FrameHandler
	nextHandlerID int
	watchers      map[int]chan model.ConnectionStatus
	nextWatcherID int
}

type session struct {
	generation uint64
	transport  Transport
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.transport.Close()
	})
}

// NewConnectionManager は新しいConnectionManagerを作成
func NewConnectionManager(dialer Dialer, creds repository.CredentialSource, cfg ManagerConfig) *ConnectionManager {
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoffPolicy()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &ConnectionManager{
		dialer:      dialer,
		creds:       creds,
		backoff:     cfg.Backoff,
		dialTimeout: cfg.DialTimeout,
		queueSize:   cfg.SendQueueSize,
		logger:      cfg.Logger,
		state:       model.StateDisconnected,
		updatedAt:   time.Now(),
		handlers:    make(map[int]FrameHandler),
		watchers:    make(map[int]chan model.ConnectionStatus),
	}
}

// Connect は既存のセッションを破棄してから新しい接続を開始する
// 認証トークンがなければ何もせず model.ErrNoCredential を返す。接続自体の失敗は返さず再接続で回復する
func (m *ConnectionManager) Connect() error {
	token, err := m.creds.Token()
	if err != nil {
		return fmt.Errorf("接続を開始できません: %w", model.ErrNoCredential)
	}

	m.mu.Lock()
	old := m.teardownLocked()
	m.lifeCtx, m.cancelLife = context.WithCancel(context.Background())
	m.generation++
	gen := m.generation
	m.setStateLocked(model.StateConnecting)
	ctx := m.lifeCtx
	m.mu.Unlock()

	if old != nil {
		old.close()
	}

	m.logger.Printf("🔌 リアルタイムチャネルに接続中 (gen=%d)", gen)
	go m.dial(ctx, gen, token)
	return nil
}

// Disconnect はハンドラーの登録を解除してからチャネルを閉じ、Disconnectedにする
// 以降は Connect が呼ばれるまで自動再接続しない
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.handlers = make(map[int]FrameHandler)
	old := m.teardownLocked()
	m.generation++
	m.attempts = 0
	m.lastErr = ""
	m.setStateLocked(model.StateDisconnected)
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	m.logger.Printf("🔌 リアルタイムチャネルを切断しました")
}

// SendEvent はイベントを送信キューに積む。呼び出し側をブロックしない
// Connected でなければ何もせず model.ErrNotConnected を返す
func (m *ConnectionManager) SendEvent(name string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != model.StateConnected || m.sess == nil {
		return model.ErrNotConnected
	}

	frame, err := EncodeEvent(name, payload)
	if err != nil {
		return err
	}

	select {
	case m.sess.send <- frame:
		return nil
	default:
		return model.ErrSendQueueFull
	}
}

// RegisterHandler は受信フレームのハンドラーを登録し、解除関数を返す
func (m *ConnectionManager) RegisterHandler(h FrameHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextHandlerID
	m.nextHandlerID++
	m.handlers[id] = h

	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

// Status は現在の接続状態のスナップショット
func (m *ConnectionManager) Status() model.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Watch は接続状態の変化を受け取るチャネルを返す（最新の状態だけが残る）
func (m *ConnectionManager) Watch() (<-chan model.ConnectionStatus, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextWatcherID
	m.nextWatcherID++
	ch := make(chan model.ConnectionStatus, 1)
	ch <- m.statusLocked()
	m.watchers[id] = ch

	return ch, func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

func (m *ConnectionManager) statusLocked() model.ConnectionStatus {
	return model.ConnectionStatus{
		State:             m.state,
		Connected:         m.state == model.StateConnected,
		LastError:         m.lastErr,
		ReconnectAttempts: m.attempts,
		UpdatedAt:         m.updatedAt,
	}
}

func (m *ConnectionManager) setStateLocked(state model.ConnectionState) {
	m.state = state
	m.updatedAt = time.Now()

	status := m.statusLocked()
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- status:
		default:
		}
	}
}

// teardownLocked は再接続タイマーと現在のセッションを破棄する。閉じるべきセッションを返す
func (m *ConnectionManager) teardownLocked() *session {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.cancelLife != nil {
		m.cancelLife()
		m.cancelLife = nil
	}
	old := m.sess
	m.sess = nil
	return old
}

func (m *ConnectionManager) dial(ctx context.Context, gen uint64, token string) {
	dialCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	transport, err := m.dialer.Dial(dialCtx, token)
	cancel()

	m.mu.Lock()
	if gen != m.generation {
		// 切断または新しい接続に置き換えられた
		m.mu.Unlock()
		if transport != nil {
			transport.Close()
		}
		return
	}
	if err != nil {
		m.scheduleRetryLocked(gen, err, false)
		m.mu.Unlock()
		return
	}

	sess := &session{
		generation: gen,
		transport:  transport,
		send:       make(chan []byte, m.queueSize),
		done:       make(chan struct{}),
	}
	m.sess = sess
	m.attempts = 0
	m.lastErr = ""
	m.setStateLocked(model.StateConnected)
	m.mu.Unlock()

	m.logger.Printf("✅ リアルタイムチャネルに接続しました (gen=%d)", gen)
	go m.writeLoop(sess)
	go m.readLoop(sess)
}

func (m *ConnectionManager) readLoop(sess *session) {
	for {
		frame, err := sess.transport.ReadMessage()
		if err != nil {
			m.sessionFailed(sess, err)
			return
		}

		m.mu.Lock()
		if m.sess != sess {
			m.mu.Unlock()
			return
		}
		ids := make([]int, 0, len(m.handlers))
		for id := range m.handlers {
			ids = append(ids, id)
		}
		m.mu.Unlock()
		sort.Ints(ids)

		for _, id := range ids {
			h, ok := m.activeHandler(sess, id)
			if !ok {
				continue
			}
			h(frame)
		}
	}
}

// activeHandler は呼び出し直前にセッションとハンドラーがまだ有効かを確認する
// Disconnect 後に読み込んだ途中のフレームをハンドラーへ渡さない
func (m *ConnectionManager) activeHandler(sess *session, id int) (FrameHandler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != sess {
		return nil, false
	}
	h, ok := m.handlers[id]
	return h, ok
}

func (m *ConnectionManager) writeLoop(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case frame := <-sess.send:
			if err := sess.transport.WriteMessage(frame); err != nil {
				m.sessionFailed(sess, err)
				return
			}
		}
	}
}

// sessionFailed は現在のセッションが切れたときに再接続を予約する
func (m *ConnectionManager) sessionFailed(sess *session, err error) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	remote := errors.Is(err, model.ErrRemoteClosed)
	m.scheduleRetryLocked(sess.generation, err, remote)
	m.mu.Unlock()

	sess.close()
}

func (m *ConnectionManager) scheduleRetryLocked(gen uint64, cause error, immediate bool) {
	m.lastErr = cause.Error()

	var delay time.Duration
	if immediate {
		m.logger.Printf("🔁 サーバー側から切断されました。即時に再接続します: %v", cause)
	} else {
		m.attempts++
		delay = m.backoff.Delay(m.attempts)
		m.logger.Printf("⚠️ 接続エラー（%d回目）。%v 後に再接続します: %v", m.attempts, delay, cause)
	}
	m.setStateLocked(model.StateReconnecting)

	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = time.AfterFunc(delay, func() {
		m.retry(gen)
	})
}

func (m *ConnectionManager) retry(gen uint64) {
	token, tokenErr := m.creds.Token()

	m.mu.Lock()
	if gen != m.generation || m.state != model.StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	if tokenErr != nil {
		m.lastErr = model.ErrNoCredential.Error()
		m.attempts = 0
		m.setStateLocked(model.StateDisconnected)
		m.mu.Unlock()
		m.logger.Printf("🚫 認証情報がないため再接続を中止しました")
		return
	}
	m.generation++
	next := m.generation
	ctx := m.lifeCtx
	m.mu.Unlock()

	m.dial(ctx, next, token)
}
