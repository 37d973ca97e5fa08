package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/models"
	"gorm.io/gorm"
)

// Device grant defaults (RFC 8628).
const (
	DefaultDeviceCodeTTL      = 15 * time.Minute
	DefaultDevicePollInterval = 5
)

// userCodeCharset avoids vowels and lookalikes so codes read aloud well.
const userCodeCharset = "BCDFGHJKLMNPQRSTVWXZ"

// DeviceService implements the RFC 8628 device authorization grant:
// input-constrained devices get a short user code to show, and poll the
// token endpoint until the user approves on another device.
type DeviceService struct {
	db      *gorm.DB
	clients *ClientService
	tokens  *TokenService
	audit   *audit.Emitter
	codeTTL time.Duration
}

func NewDeviceService(db *gorm.DB, clients *ClientService, tokens *TokenService, emitter *audit.Emitter) *DeviceService {
	return &DeviceService{db: db, clients: clients, tokens: tokens, audit: emitter, codeTTL: DefaultDeviceCodeTTL}
}

// DeviceAuthorization is the RFC 8628 §3.2 response, minus the
// verification URI which the transport layer fills in from its own
// address.
type DeviceAuthorization struct {
	DeviceCode string `json:"device_code"`
	UserCode   string `json:"user_code"`
	ExpiresIn  int64  `json:"expires_in"`
	Interval   int    `json:"interval"`
}

// CreateDeviceAuthorization starts a device flow for a client.
func (s *DeviceService) CreateDeviceAuthorization(ctx context.Context, clientID string, requestedScopes []string) (*DeviceAuthorization, error) {
	scopes, err := s.clients.ValidateScopes(ctx, clientID, requestedScopes)
	if err != nil {
		return nil, err
	}

	deviceCode, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	userCode, err := generateUserCode()
	if err != nil {
		return nil, err
	}

	row := models.DeviceCode{
		DeviceCodeHash: HashToken(deviceCode),
		UserCode:       userCode,
		ClientID:       clientID,
		Scopes:         JoinScopes(scopes),
		Interval:       DefaultDevicePollInterval,
		ExpiresAt:      time.Now().Add(s.codeTTL),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	s.audit.Emit("device.authorization_created", clientID, "", map[string]interface{}{
		"scopes": row.Scopes,
	})

	return &DeviceAuthorization{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ExpiresIn:  int64(s.codeTTL.Seconds()),
		Interval:   row.Interval,
	}, nil
}

// AuthorizeDevice records the user's approval for a pending user code.
func (s *DeviceService) AuthorizeDevice(ctx context.Context, userCode, userID string) error {
	return s.decideDevice(ctx, userCode, userID, true)
}

// DenyDevice records the user's refusal for a pending user code.
func (s *DeviceService) DenyDevice(ctx context.Context, userCode, userID string) error {
	return s.decideDevice(ctx, userCode, userID, false)
}

func (s *DeviceService) decideDevice(ctx context.Context, userCode, userID string, approve bool) error {
	updates := map[string]interface{}{"user_id": userID}
	if approve {
		updates["approved"] = true
	} else {
		updates["denied"] = true
	}
	res := s.db.WithContext(ctx).Model(&models.DeviceCode{}).
		Where("user_code = ? AND approved = ? AND denied = ? AND used_at IS NULL AND expires_at > ?",
			userCode, false, false, time.Now()).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invalidGrant("user code is invalid or no longer pending")
	}
	return nil
}

// ExchangeDeviceCode is the polling half of the grant. While the user has
// not decided it fails authorization_pending; an approved code is claimed
// once with a conditional update, like an authorization code.
func (s *DeviceService) ExchangeDeviceCode(ctx context.Context, deviceCode, clientID string) (*TokenResponse, error) {
	var row models.DeviceCode
	err := s.db.WithContext(ctx).Where("device_code_hash = ?", HashToken(deviceCode)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalidGrant("device code is invalid")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case row.ClientID != clientID:
		return nil, invalidGrant("device code was issued to another client")
	case row.UsedAt != nil:
		return nil, invalidGrant("device code has already been used")
	case now.After(row.ExpiresAt):
		return nil, NewError(models.ErrExpiredToken, "device code has expired")
	case row.Denied:
		return nil, NewError(models.ErrAccessDenied, "the user denied the request")
	case !row.Approved:
		return nil, NewError(models.ErrAuthorizationPending, "the user has not yet approved the request")
	}

	scopes := SplitScopes(row.Scopes)
	issueReq := IssueRequest{
		ClientID:            row.ClientID,
		UserID:              row.UserID,
		Scopes:              scopes,
		IncludeRefreshToken: HasScope(scopes, ScopeOfflineAccess),
		IncludeIDToken:      HasScope(scopes, ScopeOpenID),
	}

	var resp *TokenResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DeviceCode{}).
			Where("id = ? AND used_at IS NULL AND expires_at > ?", row.ID, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidGrant("device code has already been used")
		}
		var txErr error
		resp, _, txErr = s.tokens.issue(ctx, tx, issueReq)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit("device.code_exchanged", row.ClientID, row.UserID, map[string]interface{}{
		"scopes": row.Scopes,
	})
	return resp, nil
}

// generateUserCode produces a short code like "BDFG-HJKL". Bytes at or
// above the largest multiple of the charset size are rejected, since 256
// is not a multiple of it and a plain modulo would skew toward the first
// letters.
func generateUserCode() (string, error) {
	limit := byte(256 - 256%len(userCodeCharset))
	letters := make([]byte, 0, 8)
	var buf [16]byte
	for len(letters) < 8 {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		for _, v := range buf {
			if v >= limit || len(letters) == 8 {
				continue
			}
			letters = append(letters, userCodeCharset[int(v)%len(userCodeCharset)])
		}
	}
	return string(letters[:4]) + "-" + string(letters[4:]), nil
}
