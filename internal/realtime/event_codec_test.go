package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveMap-App/internal/domain/model"
)

func TestEncodeEvent(t *testing.T) {
	frame, err := EncodeEvent(model.EventLocationUpdate, model.LocationUpdatePayload{Lat: 35.0116, Lng: 135.7681})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"location:update","data":{"lat":35.0116,"lng":135.7681}}`, string(frame))

	_, err = EncodeEvent("bad", make(chan int))
	assert.Error(t, err)
}

func TestDecodeInboundEvent(t *testing.T) {
	sentAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("メッセージ受信", func(t *testing.T) {
		name, evt, err := DecodeInboundEvent([]byte(`{"event":"message:receive","data":{"id":"m1","senderId":"u1","recipientId":"me","content":"hi","type":"text","sentAt":"2024-06-01T12:00:00Z"}}`))
		require.NoError(t, err)
		assert.Equal(t, model.EventMessageReceive, name)

		msg, ok := evt.(model.MessageReceived)
		require.True(t, ok)
		assert.Equal(t, "m1", msg.Message.ID)
		assert.Equal(t, "hi", msg.Message.Content)
		assert.True(t, sentAt.Equal(msg.Message.SentAt))
	})

	t.Run("IDのないメッセージは内容から同じIDを導出", func(t *testing.T) {
		frame := []byte(`{"event":"message:receive","data":{"senderId":"u1","content":"hi","sentAt":"2024-06-01T12:00:00Z"}}`)
		_, a, err := DecodeInboundEvent(frame)
		require.NoError(t, err)
		_, b, err := DecodeInboundEvent(frame)
		require.NoError(t, err)

		idA := a.(model.MessageReceived).Message.ID
		assert.NotEmpty(t, idA)
		assert.Equal(t, idA, b.(model.MessageReceived).Message.ID)
	})

	t.Run("位置更新", func(t *testing.T) {
		_, evt, err := DecodeInboundEvent([]byte(`{"event":"nearby:update","data":{"userId":"u2","latitude":35.01,"longitude":135.77,"updatedAt":"2024-06-01T12:00:00Z"}}`))
		require.NoError(t, err)
		upd := evt.(model.NearbyLocationUpdated)
		assert.Equal(t, "u2", upd.EntityID)
		assert.Equal(t, model.LatLng{Lat: 35.01, Lng: 135.77}, upd.Coordinates)
		assert.True(t, sentAt.Equal(upd.UpdatedAt))

		_, evt, err = DecodeInboundEvent([]byte(`{"event":"nearby:update","data":{"userId":"u2","latitude":35.01,"longitude":135.77}}`))
		require.NoError(t, err)
		assert.True(t, evt.(model.NearbyLocationUpdated).UpdatedAt.IsZero(), "時刻がなければゼロ値のまま")
	})

	t.Run("オンライン・オフライン", func(t *testing.T) {
		_, on, err := DecodeInboundEvent([]byte(`{"event":"user:online","data":{"userId":"u3"}}`))
		require.NoError(t, err)
		assert.Equal(t, model.PresenceChanged{UserID: "u3", Online: true}, on)

		_, off, err := DecodeInboundEvent([]byte(`{"event":"user:offline","data":{"userId":"u3"}}`))
		require.NoError(t, err)
		assert.Equal(t, model.PresenceChanged{UserID: "u3", Online: false}, off)
	})

	t.Run("手を振る", func(t *testing.T) {
		_, evt, err := DecodeInboundEvent([]byte(`{"event":"wave:receive","data":{"id":"w1","fromUserId":"u4","fromName":"Aoi","sentAt":"2024-06-01T12:00:00Z"}}`))
		require.NoError(t, err)
		wave := evt.(model.WaveReceived).Wave
		assert.Equal(t, "w1", wave.ID)
		assert.Equal(t, "Aoi", wave.FromName)
	})

	t.Run("サーバーエラー（オブジェクトと文字列）", func(t *testing.T) {
		_, evt, err := DecodeInboundEvent([]byte(`{"event":"error","data":{"message":"rate limited"}}`))
		require.NoError(t, err)
		assert.Equal(t, model.ServerError{Message: "rate limited"}, evt)

		_, evt, err = DecodeInboundEvent([]byte(`{"event":"error","data":"unauthorized"}`))
		require.NoError(t, err)
		assert.Equal(t, model.ServerError{Message: "unauthorized"}, evt)
	})

	t.Run("未知のイベント", func(t *testing.T) {
		name, evt, err := DecodeInboundEvent([]byte(`{"event":"typing:start","data":{}}`))
		require.ErrorIs(t, err, model.ErrUnknownEvent)
		assert.Equal(t, "typing:start", name)
		assert.Nil(t, evt)
	})

	t.Run("壊れたフレーム", func(t *testing.T) {
		_, _, err := DecodeInboundEvent([]byte(`not json`))
		assert.Error(t, err)

		name, _, err := DecodeInboundEvent([]byte(`{"event":"user:online"}`))
		assert.Error(t, err)
		assert.Equal(t, model.EventUserOnline, name)
	})
}
