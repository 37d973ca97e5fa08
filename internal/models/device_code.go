package models

import (
	"time"
)

// DeviceCode backs the RFC 8628 device authorization grant. The device
// code is stored hashed; the user code is short-lived and low entropy, so
// it is kept in the clear for the approval lookup.
type DeviceCode struct {
	ID             uint   `gorm:"primaryKey"`
	DeviceCodeHash string `gorm:"uniqueIndex;not null"`
	UserCode       string `gorm:"uniqueIndex;not null"`
	ClientID       string `gorm:"index;not null"`
	Scopes         string
	UserID         string // set when the user approves
	Approved       bool
	Denied         bool
	Interval       int
	ExpiresAt      time.Time `gorm:"not null"`
	UsedAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DeviceCode) TableName() string {
	return "oauth_device_codes"
}
