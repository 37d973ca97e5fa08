package models

import (
	"strings"
	"time"
)

type OAuthClient struct {
	ID             string `gorm:"primaryKey"`
	SecretHash     string // bcrypt hash, empty for public clients
	Name           string
	RedirectURIs   string // Space-separated list of exact-match redirect URIs
	Scopes         string // Space-separated list of allowed scopes
	GrantTypes     string // Space-separated list: "authorization_code refresh_token"
	ResponseTypes  string `gorm:"default:'code'"`
	RequirePKCE    bool
	IsConfidential bool
	IsFirstParty   bool
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// RedirectURIList splits the stored redirect URIs into a slice.
func (c *OAuthClient) RedirectURIList() []string {
	return strings.Fields(c.RedirectURIs)
}

// ScopeList splits the stored allowed scopes into a slice.
func (c *OAuthClient) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// GrantTypeList splits the stored grant types into a slice.
func (c *OAuthClient) GrantTypeList() []string {
	return strings.Fields(c.GrantTypes)
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *OAuthClient) AllowsGrantType(grantType string) bool {
	for _, gt := range c.GrantTypeList() {
		if gt == grantType {
			return true
		}
	}
	return false
}
