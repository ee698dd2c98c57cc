package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveMap-App/internal/domain/model"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: subject}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenProvider(t *testing.T) {
	t.Run("未ログインならErrNoCredential", func(t *testing.T) {
		p, err := NewTokenProvider("")
		require.NoError(t, err)

		_, err = p.Token()
		assert.ErrorIs(t, err, model.ErrNoCredential)
		assert.Empty(t, p.UserID())
	})

	t.Run("有効なトークンからsubjectを読む", func(t *testing.T) {
		token := signedToken(t, "user-42", time.Now().Add(time.Hour))
		p, err := NewTokenProvider(token)
		require.NoError(t, err)

		got, err := p.Token()
		require.NoError(t, err)
		assert.Equal(t, token, got)
		assert.Equal(t, "user-42", p.UserID())
	})

	t.Run("期限切れのトークンは受け付けない", func(t *testing.T) {
		_, err := NewTokenProvider(signedToken(t, "user-42", time.Now().Add(-time.Minute)))
		assert.ErrorIs(t, err, model.ErrNoCredential)
	})

	t.Run("保持中に期限が切れたらErrNoCredential", func(t *testing.T) {
		p, err := NewTokenProvider("")
		require.NoError(t, err)
		now := time.Now()
		p.now = func() time.Time { return now }
		require.NoError(t, p.SetToken(signedToken(t, "user-42", now.Add(time.Minute))))

		p.now = func() time.Time { return now.Add(2 * time.Minute) }
		_, err = p.Token()
		assert.ErrorIs(t, err, model.ErrNoCredential)
	})

	t.Run("壊れたトークンとsubなし", func(t *testing.T) {
		p, _ := NewTokenProvider("")
		assert.Error(t, p.SetToken("not-a-jwt"))
		assert.Error(t, p.SetToken(signedToken(t, "", time.Time{})))
	})

	t.Run("Clearでログアウト", func(t *testing.T) {
		p, err := NewTokenProvider(signedToken(t, "user-42", time.Time{}))
		require.NoError(t, err)
		p.Clear()
		_, err = p.Token()
		assert.ErrorIs(t, err, model.ErrNoCredential)
		assert.Empty(t, p.UserID())
	})
}
