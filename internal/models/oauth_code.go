package models

import (
	"time"
)

type OAuthCode struct {
	Code                string `gorm:"primaryKey"`
	ClientID            string `gorm:"not null"`
	UserID              string `gorm:"not null"`
	Scopes              string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	RememberConsent     bool
	ExpiresAt           time.Time  `gorm:"not null"`
	UsedAt              *time.Time `gorm:"index"`
	CreatedAt           time.Time
}

func (OAuthCode) TableName() string {
	return "oauth_codes"
}
