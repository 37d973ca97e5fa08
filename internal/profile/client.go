// Package profile fetches identity claims from the platform user
// service. The authorization server never owns user data; it only reads
// the fields that end up in ID Token claims.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gitgrove/auth-api/internal/auth"
)

// Client is an HTTP-backed auth.ProfileStore.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type profilePayload struct {
	Name              string    `json:"name"`
	PreferredUsername string    `json:"preferred_username"`
	Picture           string    `json:"picture"`
	Email             string    `json:"email"`
	EmailVerified     bool      `json:"email_verified"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetProfile fetches the user record backing the profile/email claims.
func (c *Client) GetProfile(ctx context.Context, userID string) (*auth.Profile, error) {
	endpoint := fmt.Sprintf("%s/internal/users/%s/profile", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile store returned status %d for user %s", resp.StatusCode, userID)
	}

	var payload profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &auth.Profile{
		Name:              payload.Name,
		PreferredUsername: payload.PreferredUsername,
		Picture:           payload.Picture,
		Email:             payload.Email,
		EmailVerified:     payload.EmailVerified,
		UpdatedAt:         payload.UpdatedAt,
	}, nil
}
