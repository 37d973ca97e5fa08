package auth

import (
	"context"
	"time"
)

// Profile is the subset of the platform user record needed for OIDC
// claims. The profile store itself lives outside the authorization
// server.
type Profile struct {
	Name              string
	PreferredUsername string
	Picture           string
	Email             string
	EmailVerified     bool
	UpdatedAt         time.Time
}

// ProfileStore supplies identity claims for ID Tokens. Implementations
// talk to the platform's user service.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}
