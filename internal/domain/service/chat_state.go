package service

import (
	"LiveMap-App/internal/domain/model"
)

const (
	defaultMaxMessages = 200
	defaultMaxWaves    = 50
)

// ChatState は受信メッセージと「手を振る」通知の保持
// IDで重複排除するので、少なくとも1回配信のイベントを何度適用しても結果は変わらない
type ChatState struct {
	messages    []model.ChatMessage
	messageIDs  map[string]struct{}
	waves       []model.Wave
	waveIDs     map[string]struct{}
	maxMessages int
	maxWaves    int
}

// NewChatState は新しいChatStateを作成
func NewChatState() *ChatState {
	return &ChatState{
		messageIDs:  make(map[string]struct{}),
		waveIDs:     make(map[string]struct{}),
		maxMessages: defaultMaxMessages,
		maxWaves:    defaultMaxWaves,
	}
}

// AddMessage はメッセージを追加する。既知のIDならfalse
func (c *ChatState) AddMessage(msg model.ChatMessage) bool {
	if msg.ID != "" {
		if _, seen := c.messageIDs[msg.ID]; seen {
			return false
		}
		c.messageIDs[msg.ID] = struct{}{}
	}
	c.messages = append(c.messages, msg)
	if len(c.messages) > c.maxMessages {
		evicted := c.messages[0]
		c.messages = c.messages[1:]
		delete(c.messageIDs, evicted.ID)
	}
	return true
}

// AddWave は通知を追加する。既知のIDならfalse
func (c *ChatState) AddWave(w model.Wave) bool {
	if w.ID != "" {
		if _, seen := c.waveIDs[w.ID]; seen {
			return false
		}
		c.waveIDs[w.ID] = struct{}{}
	}
	c.waves = append(c.waves, w)
	if len(c.waves) > c.maxWaves {
		evicted := c.waves[0]
		c.waves = c.waves[1:]
		delete(c.waveIDs, evicted.ID)
	}
	return true
}

// Messages は受信順のメッセージのコピーを返す
func (c *ChatState) Messages() []model.ChatMessage {
	return append([]model.ChatMessage(nil), c.messages...)
}

// Waves は受信順の通知のコピーを返す
func (c *ChatState) Waves() []model.Wave {
	return append([]model.Wave(nil), c.waves...)
}

// Reset はすべての履歴を消す（ログアウト時）
func (c *ChatState) Reset() {
	c.messages = nil
	c.waves = nil
	c.messageIDs = make(map[string]struct{})
	c.waveIDs = make(map[string]struct{})
}
