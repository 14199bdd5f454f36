package storage

import (
	"context"
)

// AuthStorage defines interface for storing the client session
type AuthStorage interface {
	// SaveAuth stores authentication data, replacing the previous session
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	// Returns ErrAuthNotFound if no auth data exists
	DeleteAuth(ctx context.Context) error
}

// AuthData represents the session of the CLI user
type AuthData struct {
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ClientID identifies this client as an editor; it survives re-login.
	ClientID  string `json:"client_id"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds, access token expiry
}
