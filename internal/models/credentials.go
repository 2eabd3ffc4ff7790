package models

import "time"

// MasterPin is the administrative override PIN. One active record per
// access point.
type MasterPin struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AccessPointID uint      `gorm:"not null;uniqueIndex" json:"access_point_id"`
	PinHash       string    `gorm:"not null" json:"-"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserPin is a personal PIN. A user holds at most one active pin per
// access point.
type UserPin struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AccessPointID uint      `gorm:"not null;uniqueIndex:idx_user_pin_ap_user" json:"access_point_id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_pin_ap_user" json:"user_id"`
	PinHash       string    `gorm:"not null" json:"-"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TemporaryPin is the legacy guest credential, superseded by AccessCode
// but still honored by the verifier. UsesCount never exceeds MaxUses;
// when they become equal the pin deactivates.
type TemporaryPin struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AccessPointID uint       `gorm:"not null;index" json:"access_point_id"`
	CreatedBy     uint       `gorm:"not null;index" json:"created_by"`
	PinHash       string     `gorm:"not null" json:"-"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	MaxUses       int        `gorm:"not null;default:1" json:"max_uses"`
	UsesCount     int        `gorm:"not null;default:0" json:"uses_count"`
	FirstUsedAt   *time.Time `json:"first_used_at"`
	LastUsedAt    *time.Time `json:"last_used_at"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AccessCode is a guest code scoped to a building and optionally to one
// access point and/or one tenant. A single-use code deactivates
// atomically with its first successful match.
type AccessCode struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	BuildingID    uint       `gorm:"not null;index" json:"building_id"`
	AccessPointID *uint      `gorm:"index" json:"access_point_id"`
	TenantUserID  *uint      `gorm:"index" json:"tenant_user_id"`
	CreatedBy     uint       `gorm:"not null;index" json:"created_by"`
	Label         string     `gorm:"size:255" json:"label"`
	CodeHash      string     `gorm:"not null" json:"-"`
	// PlainCode is kept only when the issuer asked for a recoverable
	// copy to display to the guest.
	PlainCode   *string    `gorm:"size:20" json:"plain_code,omitempty"`
	ValidFrom   *time.Time `json:"valid_from"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IsSingleUse bool       `gorm:"default:false" json:"is_single_use"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// WindowContains reports whether the code's validity window contains t.
// A nil ValidFrom is always open, a nil ExpiresAt never closes.
func (c *AccessCode) WindowContains(t time.Time) bool {
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ExpiresAt != nil && !t.Before(*c.ExpiresAt) {
		return false
	}
	return true
}
