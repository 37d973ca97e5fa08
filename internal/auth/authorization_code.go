package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"gorm.io/gorm"
)

// DefaultAuthorizationCodeTTL is the lifetime of an authorization code.
const DefaultAuthorizationCodeTTL = 10 * time.Minute

// CodeService issues authorization codes and exchanges them, exactly
// once, for tokens.
type CodeService struct {
	db       *gorm.DB
	clients  *ClientService
	tokens   *TokenService
	consents *ConsentService
	audit    *audit.Emitter
	codeTTL  time.Duration
}

func NewCodeService(db *gorm.DB, clients *ClientService, tokens *TokenService, consents *ConsentService, emitter *audit.Emitter, codeTTL time.Duration) *CodeService {
	if codeTTL <= 0 {
		codeTTL = DefaultAuthorizationCodeTTL
	}
	return &CodeService{db: db, clients: clients, tokens: tokens, consents: consents, audit: emitter, codeTTL: codeTTL}
}

// CreateCodeRequest captures everything the authorization endpoint
// decided before handing off: the authenticated user, the exact redirect
// URI used, the granted scope snapshot and the PKCE/OIDC bindings.
type CreateCodeRequest struct {
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	RememberConsent     bool
}

// CreateAuthorizationCode persists a fresh single-use code bound to the
// request and returns its plaintext.
func (s *CodeService) CreateAuthorizationCode(ctx context.Context, req CreateCodeRequest) (string, error) {
	client, err := s.clients.GetClientByClientID(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	if client.RequirePKCE && req.CodeChallenge == "" {
		return "", invalidRequest("code_challenge is required for this client")
	}

	code, err := GenerateOpaqueToken()
	if err != nil {
		return "", err
	}

	row := models.OAuthCode{
		Code:                code,
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		Scopes:              JoinScopes(req.Scopes),
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		RememberConsent:     req.RememberConsent,
		ExpiresAt:           time.Now().Add(s.codeTTL),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}

	s.audit.Emit("code.created", req.ClientID, req.UserID, map[string]interface{}{
		"scopes": row.Scopes,
		"pkce":   req.CodeChallenge != "",
	})
	return code, nil
}

// ExchangeRequest carries the parsed token endpoint parameters for the
// authorization_code grant. Client authentication happens before this
// call; the exchange only checks ownership.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

// ExchangeAuthorizationCode redeems a code for tokens. The code is
// claimed with a conditional update so that of any number of concurrent
// attempts exactly one wins; every validation failure leaves the code
// untouched.
func (s *CodeService) ExchangeAuthorizationCode(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	var row models.OAuthCode
	err := s.db.WithContext(ctx).Where("code = ?", req.Code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalidGrant("authorization code is invalid")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if row.UsedAt != nil || now.After(row.ExpiresAt) {
		return nil, invalidGrant("authorization code is invalid")
	}
	if row.ClientID != req.ClientID {
		return nil, invalidGrant("authorization code was issued to another client")
	}
	if row.RedirectURI != req.RedirectURI {
		return nil, invalidGrant("redirect_uri does not match the authorization request")
	}
	if row.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, invalidGrant("code_verifier is required")
		}
		if !VerifyPKCE(req.CodeVerifier, row.CodeChallenge, row.CodeChallengeMethod) {
			return nil, invalidGrant("code_verifier does not match the challenge")
		}
	}

	scopes := SplitScopes(row.Scopes)
	issueReq := IssueRequest{
		ClientID:            row.ClientID,
		UserID:              row.UserID,
		Scopes:              scopes,
		Nonce:               row.Nonce,
		AuthTime:            row.CreatedAt,
		IncludeRefreshToken: HasScope(scopes, ScopeOfflineAccess),
		IncludeIDToken:      HasScope(scopes, ScopeOpenID),
	}

	var resp *TokenResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the code. The condition repeats the expiry and unused
		// checks so a concurrent winner or an expiry between read and
		// write cannot slip through.
		res := tx.Model(&models.OAuthCode{}).
			Where("code = ? AND used_at IS NULL AND expires_at > ?", row.Code, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidGrant("authorization code has already been used")
		}

		var txErr error
		resp, _, txErr = s.tokens.issue(ctx, tx, issueReq)
		if txErr != nil {
			return txErr
		}

		if row.RememberConsent {
			if txErr := s.consents.upsert(tx, row.ClientID, row.UserID, scopes); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit("code.exchanged", row.ClientID, row.UserID, map[string]interface{}{
		"scopes": row.Scopes,
	})
	return resp, nil
}
