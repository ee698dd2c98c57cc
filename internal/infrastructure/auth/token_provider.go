package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"LiveMap-App/internal/domain/model"
)

// TokenProvider はログイン中のユーザーのBearerトークンを保持する
// 署名の検証はサーバー側で行うため、ここでは有効期限とsubjectだけを読む
type TokenProvider struct {
	mu     sync.RWMutex
	token  string
	userID string
	expiry time.Time
	now    func() time.Time
}

// NewTokenProvider は新しいTokenProviderを作成。tokenが空なら未ログイン状態
func NewTokenProvider(token string) (*TokenProvider, error) {
	p := &TokenProvider{now: time.Now}
	if token == "" {
		return p, nil
	}
	if err := p.SetToken(token); err != nil {
		return nil, err
	}
	return p, nil
}

// SetToken はトークンを解析して保持する
func (p *TokenProvider) SetToken(token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("JWTの解析に失敗: %w", err)
	}
	if claims.Subject == "" {
		return fmt.Errorf("JWTにsubがありません")
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
		if !expiry.After(p.now()) {
			return fmt.Errorf("JWTの有効期限切れ (%s): %w", expiry.Format(time.RFC3339), model.ErrNoCredential)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.userID = claims.Subject
	p.expiry = expiry
	return nil
}

// Clear はトークンを破棄する（ログアウト）
func (p *TokenProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.userID = ""
	p.expiry = time.Time{}
}

// Token は有効なトークンを返す。未ログインまたは期限切れなら model.ErrNoCredential
func (p *TokenProvider) Token() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", model.ErrNoCredential
	}
	if !p.expiry.IsZero() && !p.expiry.After(p.now()) {
		return "", model.ErrNoCredential
	}
	return p.token, nil
}

// UserID はトークンのsubject（自分自身のユーザーID）
func (p *TokenProvider) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}
