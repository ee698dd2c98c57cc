package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"LiveMap-App/internal/domain/model"
)

// envelope はチャネル上のフレーム形式 {"event": 名前, "data": ペイロード}
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent は送信イベントをフレームに変換する
func EncodeEvent(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s のペイロードのJSONマーシャル失敗: %w", name, err)
	}
	return json.Marshal(envelope{Event: name, Data: data})
}

// --- 受信ペイロード ---

type messagePayload struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	SentAt      time.Time `json:"sentAt"`
}

type nearbyUpdatePayload struct {
	UserID    string    `json:"userId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type presencePayload struct {
	UserID string `json:"userId"`
}

type wavePayload struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"fromUserId"`
	FromName   string    `json:"fromName"`
	SentAt     time.Time `json:"sentAt"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// DecodeInboundEvent はフレームを受信イベントに変換する
// 未知のイベント名は model.ErrUnknownEvent を返す。イベント名は常に返す（ログ用）
func DecodeInboundEvent(frame []byte) (string, model.InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("フレームのJSONパース失敗: %w", err)
	}

	switch env.Event {
	case model.EventMessageReceive:
		var p messagePayload
		if err := decodeData(env, &p); err != nil {
			return env.Event, nil, err
		}
		if p.ID == "" {
			p.ID = derivedID(p.SenderID, p.Content, p.SentAt)
		}
		return env.Event, model.MessageReceived{Message: model.ChatMessage{
			ID:          p.ID,
			SenderID:    p.SenderID,
			RecipientID: p.RecipientID,
			Content:     p.Content,
			Type:        p.Type,
			SentAt:      p.SentAt,
		}}, nil

	case model.EventNearbyUpdate:
		var p nearbyUpdatePayload
		if err := decodeData(env, &p); err != nil {
			return env.Event, nil, err
		}
		return env.Event, model.NearbyLocationUpdated{
			EntityID:    p.UserID,
			Coordinates: model.LatLng{Lat: p.Latitude, Lng: p.Longitude},
			UpdatedAt:   p.UpdatedAt,
		}, nil

	case model.EventUserOnline, model.EventUserOffline:
		var p presencePayload
		if err := decodeData(env, &p); err != nil {
			return env.Event, nil, err
		}
		return env.Event, model.PresenceChanged{
			UserID: p.UserID,
			Online: env.Event == model.EventUserOnline,
		}, nil

	case model.EventWaveReceive:
		var p wavePayload
		if err := decodeData(env, &p); err != nil {
			return env.Event, nil, err
		}
		if p.ID == "" {
			p.ID = derivedID(p.FromUserID, "wave", p.SentAt)
		}
		receivedAt := p.SentAt
		if receivedAt.IsZero() {
			receivedAt = time.Now()
		}
		return env.Event, model.WaveReceived{Wave: model.Wave{
			ID:         p.ID,
			FromUserID: p.FromUserID,
			FromName:   p.FromName,
			ReceivedAt: receivedAt,
		}}, nil

	case model.EventError:
		var p errorPayload
		if err := decodeData(env, &p); err != nil {
			// 文字列だけのerrorイベントも受け付ける
			var text string
			if json.Unmarshal(env.Data, &text) != nil {
				return env.Event, nil, err
			}
			p.Message = text
		}
		return env.Event, model.ServerError{Message: p.Message}, nil

	default:
		return env.Event, nil, fmt.Errorf("%w: %q", model.ErrUnknownEvent, env.Event)
	}
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: dataがありません", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: dataのJSONパース失敗: %w", env.Event, err)
	}
	return nil
}

// derivedID はIDのないイベントに内容から決まるIDを与える（再配信でも同じIDになる）
func derivedID(sender, content string, at time.Time) string {
	key := fmt.Sprintf("%s|%s|%d", sender, content, at.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
