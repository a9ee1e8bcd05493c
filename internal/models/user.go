package models

import "time"

// User is a platform account. PasswordHash is a bcrypt hash and never leaves
// the service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"`
	Tier         string    `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Subscription tiers used by the AI chat router and billing.
const (
	TierStandard = "standard"
	TierVIP      = "vip"
)

// TokenPair is returned on signup, signin and refresh. The refresh token is
// additionally set as an httpOnly cookie by the HTTP layer.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
