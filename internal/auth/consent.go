package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"gorm.io/gorm"
)

// ConsentService tracks which scopes a user has already granted to a
// client, so the consent screen only shows up for new ground.
type ConsentService struct {
	db      *gorm.DB
	clients *ClientService
	audit   *audit.Emitter
}

func NewConsentService(db *gorm.DB, clients *ClientService, emitter *audit.Emitter) *ConsentService {
	return &ConsentService{db: db, clients: clients, audit: emitter}
}

// HasUserConsent reports whether the user already granted every requested
// scope to the client. First-party clients never need consent.
func (s *ConsentService) HasUserConsent(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	client, err := s.clients.GetClientByClientID(ctx, clientID)
	if err != nil {
		return false, err
	}
	if client.IsFirstParty {
		return true, nil
	}

	var consent models.Consent
	err = s.db.WithContext(ctx).
		Where("client_id = ? AND user_id = ? AND revoked_at IS NULL", clientID, userID).
		First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return consent.Covers(scopes), nil
}

// upsert records a grant inside an existing transaction. An existing row
// has its scopes unioned with the new grant and any revocation cleared;
// scopes only ever accumulate here.
func (s *ConsentService) upsert(tx *gorm.DB, clientID, userID string, scopes []string) error {
	var consent models.Consent
	err := tx.Where("client_id = ? AND user_id = ?", clientID, userID).First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.Consent{
			ClientID: clientID,
			UserID:   userID,
			Scopes:   JoinScopes(scopes),
		}).Error
	}
	if err != nil {
		return err
	}

	merged := UnionScopes(consent.ScopeList(), scopes)
	return tx.Model(&consent).Updates(map[string]interface{}{
		"scopes":     JoinScopes(merged),
		"revoked_at": nil,
	}).Error
}

// RecordConsent persists a grant outside the exchange path, for the
// consent UI to call directly.
func (s *ConsentService) RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.upsert(tx, clientID, userID, scopes)
	})
	if err != nil {
		return err
	}
	s.audit.Emit("consent.granted", clientID, userID, map[string]interface{}{
		"scopes": JoinScopes(scopes),
	})
	return nil
}

// RevokeUserConsent withdraws a user's grant to a client and revokes
// every live token the pair holds. The cascade is not optional: a client
// without consent must not keep working credentials.
func (s *ConsentService) RevokeUserConsent(ctx context.Context, userID, clientID string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Consent{}).
			Where("client_id = ? AND user_id = ? AND revoked_at IS NULL", clientID, userID).
			Update("revoked_at", now).Error; err != nil {
			return err
		}
		return revokeClientUserTokens(tx, clientID, userID, now)
	})
	if err != nil {
		return err
	}

	s.audit.Emit("consent.revoked", clientID, userID, nil)
	return nil
}
