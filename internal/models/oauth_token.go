package models

import (
	"time"
)

// AccessToken stores issued access tokens. Only the SHA-256 hash of the
// token is persisted; the plaintext is returned to the client once and
// never touches the database.
type AccessToken struct {
	ID        uint   `gorm:"primaryKey"`
	TokenHash string `gorm:"uniqueIndex;not null"`
	ClientID  string `gorm:"index;not null"`
	UserID    string `gorm:"index;not null"`
	Scopes    string
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (AccessToken) TableName() string {
	return "oauth_access_tokens"
}

// RefreshToken stores issued refresh tokens, hashed like access tokens.
// Rotation links each token to its successor: RotatedAt and
// ReplacedByTokenID are set exactly once when the token is exchanged for
// a new pair, so the chain only ever grows forward.
type RefreshToken struct {
	ID                uint   `gorm:"primaryKey"`
	TokenHash         string `gorm:"uniqueIndex;not null"`
	ClientID          string `gorm:"index;not null"`
	UserID            string `gorm:"index;not null"`
	Scopes            string
	AccessTokenID     uint      `gorm:"not null"`
	ExpiresAt         time.Time `gorm:"not null"`
	RevokedAt         *time.Time
	RotatedAt         *time.Time
	ReplacedByTokenID *uint
	CreatedAt         time.Time
}

func (RefreshToken) TableName() string {
	return "oauth_refresh_tokens"
}
