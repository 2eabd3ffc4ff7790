package models

import (
	"time"

	"gorm.io/datatypes"
)

// Credential types recorded on access logs and verification results.
const (
	CredentialTypeAccessCode   = "AccessCode"
	CredentialTypeTemporaryPin = "TemporaryPin"
	CredentialTypeUserPin      = "UserPin"
	CredentialTypeMasterPin    = "MasterPin"
	CredentialTypeFace         = "Face"
	CredentialTypeNone         = "None"
)

// AccessLog records one verification attempt against an access point.
// Rows are append-only: nothing in this codebase updates or deletes
// them.
type AccessLog struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	AccessPointID   uint           `gorm:"not null;index" json:"access_point_id"`
	UserID          *uint          `gorm:"index" json:"user_id"`
	CredentialType  string         `gorm:"size:20;not null" json:"credential_type"`
	CredentialRefID *uint          `json:"credential_ref_id"`
	Success         bool           `gorm:"not null;index" json:"success"`
	Reason          string         `gorm:"size:255" json:"reason"`
	IP              string         `gorm:"size:45" json:"ip"`
	Device          string         `gorm:"size:255" json:"device"`
	Timestamp       time.Time      `gorm:"not null;index" json:"timestamp"`
	Extra           datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"extra"`
}
