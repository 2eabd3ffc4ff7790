package dto

import "time"

// VerifyAccessRequest is what an intercom posts on a keypad or face
// attempt. Images arrive base64 encoded.
type VerifyAccessRequest struct {
	AccessPointID uint        `json:"access_point_id"`
	Pin           string      `json:"pin,omitempty"`
	Face          *FaceImages `json:"face,omitempty"`
	Device        string      `json:"device,omitempty"`
}

type FaceImages struct {
	Front string `json:"front"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type SetMasterPinRequest struct {
	AccessPointID uint   `json:"access_point_id"`
	Pin           string `json:"pin"`
}

type SetUserPinRequest struct {
	AccessPointID uint   `json:"access_point_id"`
	TargetUserID  uint   `json:"target_user_id,omitempty"`
	Pin           string `json:"pin"`
	MasterPin     string `json:"master_pin,omitempty"`
}

type UpdateOwnPinRequest struct {
	AccessPointID uint   `json:"access_point_id"`
	NewPin        string `json:"new_pin"`
	OldPin        string `json:"old_pin,omitempty"`
}

type CreateAccessCodeRequest struct {
	BuildingID    uint       `json:"building_id"`
	AccessPointID *uint      `json:"access_point_id,omitempty"`
	TenantUserID  *uint      `json:"tenant_user_id,omitempty"`
	Label         string     `json:"label,omitempty"`
	Code          string     `json:"code,omitempty"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsSingleUse   bool       `json:"is_single_use"`
	StorePlain    bool       `json:"store_plain"`
}

type AccessCodeResponse struct {
	ID          uint       `json:"id"`
	BuildingID  uint       `json:"building_id"`
	Label       string     `json:"label"`
	Code        string     `json:"code,omitempty"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsSingleUse bool       `json:"is_single_use"`
	IsActive    bool       `json:"is_active"`
}

type CreateTemporaryPinRequest struct {
	AccessPointID uint      `json:"access_point_id"`
	Pin           string    `json:"pin,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxUses       int       `json:"max_uses"`
}
