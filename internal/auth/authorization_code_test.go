package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gitgrove/auth-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndExchangeAuthorizationCode(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:    "test-client",
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid", "profile"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, code)

	resp, err := svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        code,
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Empty(t, resp.RefreshToken, "no offline_access, no refresh token")
	assert.NotEmpty(t, resp.IDToken)
}

func TestExchangeUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)

	createTestClient(t, db, nil)

	_, err := svc.codes.ExchangeAuthorizationCode(context.Background(), ExchangeRequest{
		Code:        "never-issued",
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.True(t, IsCode(err, models.ErrInvalidGrant))
}

func TestExchangeExpiredCode(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	expired := models.OAuthCode{
		Code:        "expired-code",
		ClientID:    "test-client",
		UserID:      "user-1",
		Scopes:      "openid",
		RedirectURI: "https://app.example.com/callback",
		ExpiresAt:   time.Now().Add(-time.Second),
	}
	require.NoError(t, db.Create(&expired).Error)

	_, err := svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        "expired-code",
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.True(t, IsCode(err, models.ErrInvalidGrant))
}

func TestExchangeSingleUse(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:    "test-client",
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"repo:read"},
	})
	require.NoError(t, err)

	req := ExchangeRequest{
		Code:        code,
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	}

	_, err = svc.codes.ExchangeAuthorizationCode(ctx, req)
	require.NoError(t, err)

	_, err = svc.codes.ExchangeAuthorizationCode(ctx, req)
	assert.True(t, IsCode(err, models.ErrInvalidGrant))
}

func TestExchangeSingleUseConcurrent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:    "test-client",
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"repo:read"},
	})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
				Code:        code,
				ClientID:    "test-client",
				RedirectURI: "https://app.example.com/callback",
			})
		}(i)
	}
	wg.Wait()

	var successes, invalidGrants int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case IsCode(err, models.ErrInvalidGrant):
			invalidGrants++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one exchange may win")
	assert.Equal(t, attempts-1, invalidGrants)
}

func TestExchangeRedirectURIBinding(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:    "test-client",
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid"},
	})
	require.NoError(t, err)

	// https://app.example.com/alt is registered for the client, but the
	// code was issued against /callback.
	_, err = svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        code,
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/alt",
	})
	assert.True(t, IsCode(err, models.ErrInvalidGrant))

	// A failed exchange must not consume the code.
	resp, err := svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        code,
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestExchangeClientBinding(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)
	createTestClient(t, db, func(c *models.OAuthClient) {
		c.ID = "other-client"
	})

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:    "test-client",
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid"},
	})
	require.NoError(t, err)

	_, err = svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        code,
		ClientID:    "other-client",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.True(t, IsCode(err, models.ErrInvalidGrant))
}

func TestExchangePKCERoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, func(c *models.OAuthClient) {
		c.RequirePKCE = true
	})

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:            "test-client",
		UserID:              "user-1",
		RedirectURI:         "https://app.example.com/callback",
		Scopes:              []string{"openid"},
		CodeChallenge:       s256Challenge(testVerifier),
		CodeChallengeMethod: PKCEMethodS256,
	})
	require.NoError(t, err)

	// Missing verifier fails.
	_, err = svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        code,
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.True(t, IsCode(err, models.ErrInvalidGrant))

	// Wrong verifier fails and must not consume the code.
	_, err = svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:         code,
		ClientID:     "test-client",
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	})
	assert.True(t, IsCode(err, models.ErrInvalidGrant))

	// The right verifier succeeds.
	resp, err := svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:         code,
		ClientID:     "test-client",
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: testVerifier,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestCreateCodeRequiresPKCEForEnforcedClients(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)

	createTestClient(t, db, func(c *models.OAuthClient) {
		c.RequirePKCE = true
	})

	_, err := svc.codes.CreateAuthorizationCode(context.Background(), CreateCodeRequest{
		ClientID:    "test-client",
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid"},
	})
	assert.True(t, IsCode(err, models.ErrInvalidRequest))
}

func TestExchangeRecordsConsent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createTestClient(t, db, nil)

	code, err := svc.codes.CreateAuthorizationCode(ctx, CreateCodeRequest{
		ClientID:        "test-client",
		UserID:          "user-1",
		RedirectURI:     "https://app.example.com/callback",
		Scopes:          []string{"openid", "profile"},
		RememberConsent: true,
	})
	require.NoError(t, err)

	_, err = svc.codes.ExchangeAuthorizationCode(ctx, ExchangeRequest{
		Code:        code,
		ClientID:    "test-client",
		RedirectURI: "https://app.example.com/callback",
	})
	require.NoError(t, err)

	var consent models.Consent
	require.NoError(t, db.Where("client_id = ? AND user_id = ?", "test-client", "user-1").First(&consent).Error)
	assert.Equal(t, "openid profile", consent.Scopes)
	assert.Nil(t, consent.RevokedAt)
}
