package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"gorm.io/gorm"
)

// RefreshService rotates refresh tokens: every successful refresh retires
// the presented token and issues a new pair. Presenting a token that was
// already rotated is treated as theft of the chain and revokes its live
// descendants.
type RefreshService struct {
	db      *gorm.DB
	clients *ClientService
	tokens  *TokenService
	audit   *audit.Emitter
}

func NewRefreshService(db *gorm.DB, clients *ClientService, tokens *TokenService, emitter *audit.Emitter) *RefreshService {
	return &RefreshService{db: db, clients: clients, tokens: tokens, audit: emitter}
}

// RefreshAccessToken exchanges a refresh token for a new token pair. The
// rotation marker is set with a conditional update, so two concurrent
// refreshes of the same token produce exactly one winner.
func (s *RefreshService) RefreshAccessToken(ctx context.Context, refreshToken, clientID, clientSecret string) (*TokenResponse, error) {
	client, err := s.clients.ValidateClientCredentials(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrantType("refresh_token") {
		return nil, NewError(models.ErrUnauthorizedClient, "client may not use the refresh_token grant")
	}

	var row models.RefreshToken
	err = s.db.WithContext(ctx).Where("token_hash = ?", HashToken(refreshToken)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalidGrant("refresh token is invalid")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case row.ClientID != clientID:
		return nil, invalidGrant("refresh token was issued to another client")
	case row.RevokedAt != nil:
		return nil, invalidGrant("refresh token has been revoked")
	case row.RotatedAt != nil:
		// Reuse of a rotated token means the chain leaked. Cut off the
		// live descendants before failing the request.
		s.revokeDescendants(ctx, &row, now)
		s.audit.Emit("refresh.replay_detected", row.ClientID, row.UserID, map[string]interface{}{
			"token_id": row.ID,
		})
		return nil, invalidGrant("refresh token has already been rotated")
	case now.After(row.ExpiresAt):
		return nil, invalidGrant("refresh token has expired")
	}

	issueReq := IssueRequest{
		ClientID:            row.ClientID,
		UserID:              row.UserID,
		Scopes:              SplitScopes(row.Scopes),
		IncludeRefreshToken: true,
	}

	var resp *TokenResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		newResp, newRefreshID, txErr := s.tokens.issue(ctx, tx, issueReq)
		if txErr != nil {
			return txErr
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND rotated_at IS NULL AND revoked_at IS NULL", row.ID).
			Updates(map[string]interface{}{
				"rotated_at":           now,
				"replaced_by_token_id": newRefreshID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidGrant("refresh token has already been rotated")
		}

		resp = newResp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit("token.refreshed", row.ClientID, row.UserID, map[string]interface{}{
		"rotated_token_id": row.ID,
	})
	return resp, nil
}

// revokeDescendants walks the rotation chain forward from a reused token
// and revokes every refresh token and linked access token after it.
// Best effort: the reuse still fails invalid_grant even if this errors.
func (s *RefreshService) revokeDescendants(ctx context.Context, start *models.RefreshToken, now time.Time) {
	db := s.db.WithContext(ctx)
	next := start.ReplacedByTokenID
	// Chains are short in practice; the bound guards against a cycle
	// from a corrupted store.
	for i := 0; next != nil && i < 1000; i++ {
		var rt models.RefreshToken
		if err := db.First(&rt, *next).Error; err != nil {
			return
		}
		db.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", rt.ID).
			Update("revoked_at", now)
		db.Model(&models.AccessToken{}).
			Where("id = ? AND revoked_at IS NULL", rt.AccessTokenID).
			Update("revoked_at", now)
		next = rt.ReplacedByTokenID
	}
}
