package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"gorm.io/gorm"
)

// Token type hints (RFC 7009 §2.1).
const (
	TokenHintAccess  = "access_token"
	TokenHintRefresh = "refresh_token"
)

// RevocationService invalidates and inspects tokens per RFC 7009 and
// RFC 7662.
type RevocationService struct {
	db     *gorm.DB
	audit  *audit.Emitter
	issuer string
}

func NewRevocationService(db *gorm.DB, emitter *audit.Emitter, issuer string) *RevocationService {
	return &RevocationService{db: db, audit: emitter, issuer: issuer}
}

// RevokeToken marks the token revoked in whichever store holds it. Per
// RFC 7009 it is idempotent and succeeds even when the token was never
// issued, so callers learn nothing about token existence.
func (s *RevocationService) RevokeToken(ctx context.Context, token, typeHint string) error {
	hash := HashToken(token)
	now := time.Now()
	db := s.db.WithContext(ctx)

	tryAccess := func() (int64, error) {
		res := db.Model(&models.AccessToken{}).
			Where("token_hash = ? AND revoked_at IS NULL", hash).
			Update("revoked_at", now)
		return res.RowsAffected, res.Error
	}
	tryRefresh := func() (int64, error) {
		res := db.Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked_at IS NULL", hash).
			Update("revoked_at", now)
		return res.RowsAffected, res.Error
	}

	// The hint only orders the search (RFC 7009 §2.1). A wrong hint must
	// not leave the token live, so a miss falls through to the other
	// store.
	first, second := tryAccess, tryRefresh
	if typeHint == TokenHintRefresh {
		first, second = tryRefresh, tryAccess
	}
	revoked, err := first()
	if err != nil {
		return err
	}
	if revoked == 0 {
		if revoked, err = second(); err != nil {
			return err
		}
	}

	if revoked > 0 {
		s.audit.Emit("token.revoked", "", "", map[string]interface{}{"hint": typeHint})
	}
	return nil
}

// Introspection is the RFC 7662 response. Inactive tokens carry only
// {"active": false}; the omitempty tags keep the rest off the wire.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Aud       string `json:"aud,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// IntrospectToken reports whether a token is currently good and what it
// grants. Anything unknown, expired, revoked or rotated is just inactive.
// Like revocation, the hint only orders the lookup: a token hinted into
// the wrong store is still found in the other.
func (s *RevocationService) IntrospectToken(ctx context.Context, token, typeHint string) (*Introspection, error) {
	hash := HashToken(token)
	now := time.Now()
	db := s.db.WithContext(ctx)
	inactive := &Introspection{Active: false}

	lookupAccess := func() (*Introspection, bool, error) {
		var at models.AccessToken
		err := db.Where("token_hash = ?", hash).First(&at).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if at.RevokedAt != nil || now.After(at.ExpiresAt) {
			return inactive, true, nil
		}
		return &Introspection{
			Active:    true,
			Scope:     at.Scopes,
			ClientID:  at.ClientID,
			Username:  at.UserID,
			TokenType: "Bearer",
			Exp:       at.ExpiresAt.Unix(),
			Iat:       at.CreatedAt.Unix(),
			Sub:       at.UserID,
			Aud:       at.ClientID,
			Iss:       s.issuer,
		}, true, nil
	}

	lookupRefresh := func() (*Introspection, bool, error) {
		var rt models.RefreshToken
		err := db.Where("token_hash = ?", hash).First(&rt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if rt.RevokedAt != nil || rt.RotatedAt != nil || now.After(rt.ExpiresAt) {
			return inactive, true, nil
		}
		return &Introspection{
			Active:    true,
			Scope:     rt.Scopes,
			ClientID:  rt.ClientID,
			Username:  rt.UserID,
			TokenType: TokenHintRefresh,
			Exp:       rt.ExpiresAt.Unix(),
			Iat:       rt.CreatedAt.Unix(),
			Sub:       rt.UserID,
			Aud:       rt.ClientID,
			Iss:       s.issuer,
		}, true, nil
	}

	first, second := lookupAccess, lookupRefresh
	if typeHint == TokenHintRefresh {
		first, second = lookupRefresh, lookupAccess
	}
	info, found, err := first()
	if err != nil {
		return nil, err
	}
	if found {
		return info, nil
	}
	info, found, err = second()
	if err != nil {
		return nil, err
	}
	if found {
		return info, nil
	}
	return inactive, nil
}

// RevokeAllUserTokens bulk-revokes every live token owned by a user.
// Used on account-wide logout and security events. Returns the number of
// access and refresh tokens revoked.
func (s *RevocationService) RevokeAllUserTokens(ctx context.Context, userID string) (int64, int64, error) {
	now := time.Now()
	db := s.db.WithContext(ctx)

	accessRes := db.Model(&models.AccessToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	if accessRes.Error != nil {
		return 0, 0, accessRes.Error
	}
	refreshRes := db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	if refreshRes.Error != nil {
		return accessRes.RowsAffected, 0, refreshRes.Error
	}

	s.audit.Emit("user.tokens_revoked", "", userID, map[string]interface{}{
		"access_tokens":  accessRes.RowsAffected,
		"refresh_tokens": refreshRes.RowsAffected,
	})
	return accessRes.RowsAffected, refreshRes.RowsAffected, nil
}

// revokeClientUserTokens revokes all live tokens for one (client, user)
// pair. Consent revocation cascades through here.
func revokeClientUserTokens(db *gorm.DB, clientID, userID string, now time.Time) error {
	if err := db.Model(&models.AccessToken{}).
		Where("client_id = ? AND user_id = ? AND revoked_at IS NULL", clientID, userID).
		Update("revoked_at", now).Error; err != nil {
		return err
	}
	return db.Model(&models.RefreshToken{}).
		Where("client_id = ? AND user_id = ? AND revoked_at IS NULL", clientID, userID).
		Update("revoked_at", now).Error
}
