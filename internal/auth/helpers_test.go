package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitgrove/auth-api/internal/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every goroutine on the same in-memory
	// database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.OAuthClient{},
		&models.OAuthCode{},
		&models.AccessToken{},
		&models.RefreshToken{},
		&models.Consent{},
		&models.DeviceCode{},
	)
	require.NoError(t, err)

	return db
}

type fakeProfileStore struct {
	profiles map[string]*Profile
}

func (f *fakeProfileStore) GetProfile(_ context.Context, userID string) (*Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, errors.New("profile not found: " + userID)
	}
	return p, nil
}

type testServices struct {
	clients    *ClientService
	tokens     *TokenService
	consents   *ConsentService
	codes      *CodeService
	refresh    *RefreshService
	revocation *RevocationService
	devices    *DeviceService
	registrar  *RegistrarService
	profiles   *fakeProfileStore
}

const testIssuer = "https://auth.gitgrove.test"

var testIDTokenSecret = []byte("test-id-token-secret-32-characters")

func newTestServices(db *gorm.DB) *testServices {
	profiles := &fakeProfileStore{profiles: map[string]*Profile{
		"user-1": {
			Name:              "Ada Lovelace",
			PreferredUsername: "ada",
			Picture:           "https://cdn.gitgrove.test/avatars/ada.png",
			Email:             "ada@example.com",
			EmailVerified:     true,
			UpdatedAt:         time.Now().Add(-24 * time.Hour),
		},
	}}

	clients := NewClientService(db)
	tokens := NewTokenService(db, profiles, nil, TokenConfig{
		Issuer:        testIssuer,
		IDTokenSecret: testIDTokenSecret,
	})
	consents := NewConsentService(db, clients, nil)
	return &testServices{
		clients:    clients,
		tokens:     tokens,
		consents:   consents,
		codes:      NewCodeService(db, clients, tokens, consents, nil, 0),
		refresh:    NewRefreshService(db, clients, tokens, nil),
		revocation: NewRevocationService(db, nil, testIssuer),
		devices:    NewDeviceService(db, clients, tokens, nil),
		registrar:  NewRegistrarService(db, nil, SplitScopes("openid profile email offline_access repo:read"), SplitScopes("openid profile")),
		profiles:   profiles,
	}
}

const testClientSecret = "test_secret"

// createTestClient stores a confidential client with sensible defaults;
// mutate tweaks the row before it is saved.
func createTestClient(t *testing.T, db *gorm.DB, mutate func(*models.OAuthClient)) *models.OAuthClient {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testClientSecret), bcrypt.MinCost)
	require.NoError(t, err)

	client := &models.OAuthClient{
		ID:             "test-client",
		SecretHash:     string(hash),
		Name:           "Test Client",
		RedirectURIs:   "https://app.example.com/callback https://app.example.com/alt",
		Scopes:         "openid profile email offline_access repo:read",
		GrantTypes:     "authorization_code refresh_token urn:ietf:params:oauth:grant-type:device_code",
		ResponseTypes:  "code",
		IsConfidential: true,
		IsActive:       true,
	}
	if mutate != nil {
		mutate(client)
	}
	require.NoError(t, db.Create(client).Error)
	return client
}
