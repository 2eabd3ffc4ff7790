package models

import (
	"time"

	"gorm.io/gorm"
)

// Data-access-control values carried by a UserType. A NULL value is
// treated the same as ScopeAll.
const (
	ScopeOwn = "OWN"
	ScopeAll = "ALL"
	ScopePM  = "PM_ECOSYSTEM"
)

// Well-known user type names.
const (
	UserTypeAdmin           = "admin"
	UserTypePropertyManager = "property_manager"
	UserTypeStaff           = "staff"
	UserTypeTenant          = "tenant"
)

// UserType defines a role and how far users of that role can see into
// other users' data.
type UserType struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	DataAccessControl *string   `gorm:"size:20" json:"data_access_control"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Email           string         `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password        string         `gorm:"not null" json:"-"`
	FirstName       string         `gorm:"size:100" json:"first_name"`
	LastName        string         `gorm:"size:100" json:"last_name"`
	UserTypeID      uint           `gorm:"not null;index" json:"user_type_id"`
	UserType        *UserType      `gorm:"foreignKey:UserTypeID" json:"user_type,omitempty"`
	InvitedByUserID *uint          `gorm:"index" json:"invited_by_user_id"`
	// Legacy rows predate the invitation flow and only carry a creator.
	CreatedByUserID *uint          `gorm:"index" json:"created_by_user_id"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// ParentID returns the next hop in the organizational chain: the
// inviter when present, otherwise the legacy creator.
func (u *User) ParentID() *uint {
	if u.InvitedByUserID != nil {
		return u.InvitedByUserID
	}
	return u.CreatedByUserID
}

// IsPropertyManager reports whether the user's type is the
// property-manager type. Requires UserType to be preloaded.
func (u *User) IsPropertyManager() bool {
	return u.UserType != nil && u.UserType.Name == UserTypePropertyManager
}
