package models

import (
	"strings"
	"time"
)

// Consent records a user's agreement that a client may hold a set of
// scopes without being re-prompted. One row per (client, user) pair.
type Consent struct {
	ID        uint   `gorm:"primaryKey"`
	ClientID  string `gorm:"uniqueIndex:idx_consent_client_user;not null"`
	UserID    string `gorm:"uniqueIndex:idx_consent_client_user;not null"`
	Scopes    string // Space-separated cumulative grant
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Consent) TableName() string {
	return "oauth_consents"
}

// ScopeList splits the granted scopes into a slice.
func (c *Consent) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// Covers reports whether every requested scope is in the recorded grant.
func (c *Consent) Covers(requested []string) bool {
	granted := make(map[string]bool, len(c.ScopeList()))
	for _, s := range c.ScopeList() {
		granted[s] = true
	}
	for _, s := range requested {
		if !granted[s] {
			return false
		}
	}
	return true
}
