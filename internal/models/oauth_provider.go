package models

import (
	"time"
)

// OAuthProviderKind identifies an external identity provider.
type OAuthProviderKind string

const (
	ProviderKakao OAuthProviderKind = "kakao"
)

// OAuthProvider links a user to an external identity. Tokens are stored
// encrypted; the plaintext never touches the database.
type OAuthProvider struct {
	ID             string            `json:"id" db:"id"`
	UserID         string            `json:"user_id" db:"user_id"`
	Provider       OAuthProviderKind `json:"provider" db:"provider"`
	ProviderUserID string            `json:"provider_user_id" db:"provider_user_id"`
	AccessToken    string            `json:"-" db:"access_token"`
	RefreshToken   *string           `json:"-" db:"refresh_token"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty" db:"token_expires_at"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}
