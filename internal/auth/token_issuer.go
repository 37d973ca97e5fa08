package auth

import (
	"context"
	"time"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenConfig carries the issuer identity and signing material for the
// token service.
type TokenConfig struct {
	Issuer          string
	IDTokenSecret   []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenService mints opaque access/refresh tokens and signed OIDC ID
// Tokens. Plaintext tokens leave this service exactly once, in the
// response; only hashes are persisted.
type TokenService struct {
	db       *gorm.DB
	profiles ProfileStore
	audit    *audit.Emitter
	cfg      TokenConfig
}

func NewTokenService(db *gorm.DB, profiles ProfileStore, emitter *audit.Emitter, cfg TokenConfig) *TokenService {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &TokenService{db: db, profiles: profiles, audit: emitter, cfg: cfg}
}

// IssueRequest describes one grant to turn into tokens. Callers decide
// whether a refresh token or ID token accompanies the access token: code
// exchange derives that from the granted scopes, refresh rotation always
// carries the refresh token forward.
type IssueRequest struct {
	ClientID            string
	UserID              string
	Scopes              []string
	Nonce               string
	AuthTime            time.Time
	IncludeRefreshToken bool
	IncludeIDToken      bool
}

// TokenResponse is the §6 token endpoint success payload, pre-wire-format.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresIn    int64
	Scopes       []string
}

// Issue mints a token set against the service's own store handle.
func (s *TokenService) Issue(ctx context.Context, req IssueRequest) (*TokenResponse, error) {
	var resp *TokenResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		resp, _, txErr = s.issue(ctx, tx, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// issue mints the token set inside an existing transaction so callers can
// bind issuance to their own check-and-set updates. Returns the id of the
// new refresh token row (0 when none was minted).
func (s *TokenService) issue(ctx context.Context, tx *gorm.DB, req IssueRequest) (*TokenResponse, uint, error) {
	now := time.Now()

	accessPlain, err := GenerateOpaqueToken()
	if err != nil {
		return nil, 0, err
	}
	accessRow := models.AccessToken{
		TokenHash: HashToken(accessPlain),
		ClientID:  req.ClientID,
		UserID:    req.UserID,
		Scopes:    JoinScopes(req.Scopes),
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}
	if err := tx.Create(&accessRow).Error; err != nil {
		return nil, 0, err
	}

	resp := &TokenResponse{
		AccessToken: accessPlain,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
		Scopes:      req.Scopes,
	}

	var refreshID uint
	if req.IncludeRefreshToken {
		refreshPlain, err := GenerateOpaqueToken()
		if err != nil {
			return nil, 0, err
		}
		refreshRow := models.RefreshToken{
			TokenHash:     HashToken(refreshPlain),
			ClientID:      req.ClientID,
			UserID:        req.UserID,
			Scopes:        JoinScopes(req.Scopes),
			AccessTokenID: accessRow.ID,
			ExpiresAt:     now.Add(s.cfg.RefreshTokenTTL),
		}
		if err := tx.Create(&refreshRow).Error; err != nil {
			return nil, 0, err
		}
		resp.RefreshToken = refreshPlain
		refreshID = refreshRow.ID
	}

	if req.IncludeIDToken {
		idToken, err := s.buildIDToken(ctx, req, now)
		if err != nil {
			return nil, 0, err
		}
		resp.IDToken = idToken
	}

	s.audit.Emit("token.issued", req.ClientID, req.UserID, map[string]interface{}{
		"scopes":        JoinScopes(req.Scopes),
		"refresh_token": req.IncludeRefreshToken,
		"id_token":      req.IncludeIDToken,
	})

	return resp, refreshID, nil
}

// buildIDToken assembles and signs the OIDC ID Token. Claims beyond the
// core set depend on the granted scopes and come from the external
// profile store.
func (s *TokenService) buildIDToken(ctx context.Context, req IssueRequest, now time.Time) (string, error) {
	authTime := req.AuthTime
	if authTime.IsZero() {
		authTime = now
	}

	claims := jwt.MapClaims{
		"sub":       req.UserID,
		"aud":       req.ClientID,
		"iss":       s.cfg.Issuer,
		"iat":       now.Unix(),
		"exp":       now.Add(s.cfg.AccessTokenTTL).Unix(),
		"auth_time": authTime.Unix(),
	}
	if req.Nonce != "" {
		claims["nonce"] = req.Nonce
	}

	wantProfile := HasScope(req.Scopes, ScopeProfile)
	wantEmail := HasScope(req.Scopes, ScopeEmail)
	if wantProfile || wantEmail {
		profile, err := s.profiles.GetProfile(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if wantProfile {
			if profile.Name != "" {
				claims["name"] = profile.Name
			}
			if profile.PreferredUsername != "" {
				claims["preferred_username"] = profile.PreferredUsername
			}
			if profile.Picture != "" {
				claims["picture"] = profile.Picture
			}
			if !profile.UpdatedAt.IsZero() {
				claims["updated_at"] = profile.UpdatedAt.Unix()
			}
		}
		if wantEmail {
			claims["email"] = profile.Email
			claims["email_verified"] = profile.EmailVerified
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.IDTokenSecret)
}
