package repository

// CredentialSource は認証トークンの取得元
type CredentialSource interface {
	// Token は有効なトークンを返す。存在しない・期限切れの場合は model.ErrNoCredential
	Token() (string, error)
	// UserID はトークンのsubject（自分自身のユーザーID）を返す
	UserID() string
}
