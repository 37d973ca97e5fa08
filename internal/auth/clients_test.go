package auth

import (
	"context"
	"testing"

	"github.com/gitgrove/auth-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientByClientID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	client, err := svc.GetClientByClientID(ctx, "test-client")
	require.NoError(t, err)
	assert.Equal(t, "Test Client", client.Name)

	_, err = svc.GetClientByClientID(ctx, "no-such-client")
	assert.True(t, IsCode(err, models.ErrInvalidClient))
}

func TestGetClientByClientIDInactive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	createTestClient(t, db, func(c *models.OAuthClient) {
		c.IsActive = false
	})

	// Deactivated and unknown clients must be indistinguishable.
	_, err := svc.GetClientByClientID(context.Background(), "test-client")
	assert.True(t, IsCode(err, models.ErrInvalidClient))
}

func TestValidateClientCredentials(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	_, err := svc.ValidateClientCredentials(ctx, "test-client", testClientSecret)
	assert.NoError(t, err)

	_, err = svc.ValidateClientCredentials(ctx, "test-client", "wrong_secret")
	assert.True(t, IsCode(err, models.ErrInvalidClient))

	_, err = svc.ValidateClientCredentials(ctx, "test-client", "")
	assert.True(t, IsCode(err, models.ErrInvalidClient))
}

func TestValidateClientCredentialsPublicClient(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	createTestClient(t, db, func(c *models.OAuthClient) {
		c.ID = "public-client"
		c.SecretHash = ""
		c.IsConfidential = false
	})

	// Public clients authenticate by existence alone.
	_, err := svc.ValidateClientCredentials(context.Background(), "public-client", "")
	assert.NoError(t, err)
}

func TestValidateRedirectURI(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	assert.NoError(t, svc.ValidateRedirectURI(ctx, "test-client", "https://app.example.com/callback"))
	assert.NoError(t, svc.ValidateRedirectURI(ctx, "test-client", "https://app.example.com/alt"))

	// Exact match only: no prefixes, no trailing slash leniency.
	assert.Error(t, svc.ValidateRedirectURI(ctx, "test-client", "https://app.example.com/callback/"))
	assert.Error(t, svc.ValidateRedirectURI(ctx, "test-client", "https://app.example.com"))
	assert.Error(t, svc.ValidateRedirectURI(ctx, "test-client", "https://evil.example.com/callback"))
}

func TestValidateScopes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	createTestClient(t, db, nil)

	scopes, err := svc.ValidateScopes(context.Background(), "test-client", []string{"openid", "repo:write", "profile"})
	require.NoError(t, err)
	// repo:write is silently dropped; policy on dropped scopes belongs
	// to the caller.
	assert.Equal(t, []string{"openid", "profile"}, scopes)
}
