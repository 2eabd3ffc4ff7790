package models

import (
	"time"

	"gorm.io/gorm"
)

type Building struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Address   string         `gorm:"type:text" json:"address"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	CreatedBy uint           `gorm:"not null;index" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AccessPoint is a physical or virtual intercom attached to a building.
type AccessPoint struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BuildingID   uint      `gorm:"not null;index" json:"building_id"`
	Building     *Building `gorm:"foreignKey:BuildingID" json:"building,omitempty"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	SerialNumber string    `gorm:"size:100;uniqueIndex" json:"serial_number"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BuildingResident assigns a tenant user to a building unit.
type BuildingResident struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BuildingID uint      `gorm:"not null;uniqueIndex:idx_resident_building_user" json:"building_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_resident_building_user" json:"user_id"`
	UnitNumber string    `gorm:"size:50" json:"unit_number"`
	CreatedAt  time.Time `json:"created_at"`
}
