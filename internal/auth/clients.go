package auth

import (
	"context"
	"errors"

	"github.com/gitgrove/auth-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ClientService validates client identity, secrets, redirect URIs and
// scopes against the registry.
type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

// GetClientByClientID returns the active client with the given id.
// Inactive and unknown clients are indistinguishable to callers.
func (s *ClientService) GetClientByClientID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", clientID, true).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalidClient("client not found")
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ValidateClientCredentials authenticates a client. Public clients are
// valid when found and active; confidential clients must present the
// correct secret. bcrypt comparison is constant-time, and unknown client
// and wrong secret are reported identically.
func (s *ClientService) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) (*models.OAuthClient, error) {
	client, err := s.GetClientByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if !client.IsConfidential {
		return client, nil
	}

	if clientSecret == "" {
		return nil, invalidClient("client authentication required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)); err != nil {
		return nil, invalidClient("client authentication failed")
	}
	return client, nil
}

// ValidateRedirectURI checks a redirect URI against the registered set.
// Matching is exact, byte for byte. Prefix or wildcard matching would
// open the server to redirect hijacking.
func (s *ClientService) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) error {
	client, err := s.GetClientByClientID(ctx, clientID)
	if err != nil {
		return err
	}
	for _, registered := range client.RedirectURIList() {
		if registered == redirectURI {
			return nil
		}
	}
	return invalidRequest("redirect_uri is not registered for this client")
}

// ValidateScopes returns the intersection of the requested scopes and the
// client's allowed scopes. Dropping scopes is not an error here; callers
// decide whether an empty result is acceptable.
func (s *ClientService) ValidateScopes(ctx context.Context, clientID string, requested []string) ([]string, error) {
	client, err := s.GetClientByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return IntersectScopes(requested, client.ScopeList()), nil
}
