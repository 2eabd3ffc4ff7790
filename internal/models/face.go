package models

import "time"

// FaceBiometric stores the three content hashes captured at enrollment
// (front, left, right). Exactly one active record exists per user;
// re-enrollment deactivates the previous one. Raw image bytes never
// reach this system, only their hashes.
type FaceBiometric struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	FrontHash   string    `gorm:"size:64;not null;index" json:"-"`
	LeftHash    string    `gorm:"size:64;not null" json:"-"`
	RightHash   string    `gorm:"size:64;not null" json:"-"`
	MimeType    string    `gorm:"size:50" json:"mime_type"`
	DeviceModel string    `gorm:"size:100" json:"device_model"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
