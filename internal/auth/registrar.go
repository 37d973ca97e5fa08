package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Defaults applied to dynamically registered clients.
var (
	defaultGrantTypes    = []string{"authorization_code", "refresh_token"}
	defaultResponseTypes = []string{"code"}
)

// RegistrarService provisions clients over the RFC 7591 dynamic
// registration protocol. Dynamically registered clients always get PKCE
// enforced, whatever they asked for.
type RegistrarService struct {
	db            *gorm.DB
	audit         *audit.Emitter
	allowedScopes []string
	defaultScopes []string
}

func NewRegistrarService(db *gorm.DB, emitter *audit.Emitter, allowedScopes, defaultScopes []string) *RegistrarService {
	return &RegistrarService{db: db, audit: emitter, allowedScopes: allowedScopes, defaultScopes: defaultScopes}
}

// ClientRegistrationRequest is the RFC 7591 §2 metadata subset the
// platform accepts.
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
}

// ClientRegistrationResponse is the RFC 7591 §3.2.1 response. The
// plaintext secret appears here once and is never recoverable again.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
}

// RegisterClient validates the metadata and provisions the client.
func (s *RegistrarService) RegisterClient(ctx context.Context, req ClientRegistrationRequest) (*ClientRegistrationResponse, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, NewError(models.ErrInvalidRedirectURI, "at least one redirect_uri is required")
	}
	for _, raw := range req.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return nil, NewError(models.ErrInvalidRedirectURI, "redirect_uris must be absolute URIs without fragments")
		}
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = defaultGrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = defaultResponseTypes
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "client_secret_basic"
	}
	confidential := authMethod != "none"

	scopes := IntersectScopes(SplitScopes(req.Scope), s.allowedScopes)
	if len(scopes) == 0 {
		scopes = s.defaultScopes
	}

	clientID := uuid.New().String()
	var plainSecret, secretHash string
	if confidential {
		secret, err := GenerateOpaqueToken()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		plainSecret = secret
		secretHash = string(hash)
	}

	client := models.OAuthClient{
		ID:             clientID,
		SecretHash:     secretHash,
		Name:           req.ClientName,
		RedirectURIs:   strings.Join(req.RedirectURIs, " "),
		Scopes:         JoinScopes(scopes),
		GrantTypes:     strings.Join(grantTypes, " "),
		ResponseTypes:  strings.Join(responseTypes, " "),
		RequirePKCE:    true, // mandatory for self-provisioned clients
		IsConfidential: confidential,
		IsFirstParty:   false,
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}

	s.audit.Emit("client.registered", clientID, "", map[string]interface{}{
		"name":         req.ClientName,
		"confidential": confidential,
	})

	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            plainSecret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientSecretExpiresAt:   0,
		ClientName:              client.Name,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   JoinScopes(scopes),
	}, nil
}
