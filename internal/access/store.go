package access

import (
	"errors"
	"fmt"

	"github.com/aidatapp/aidat-backend/internal/models"
	"gorm.io/gorm"
)

// CredentialStore bundles the read paths the verifier needs. All
// candidate queries return only active records; validity windows are
// evaluated by the caller so the null-handling stays in one place.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) AccessPoint(id uint) (*models.AccessPoint, error) {
	var ap models.AccessPoint
	err := s.db.Preload("Building").First(&ap, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccessPointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access point %d: %w", id, err)
	}
	return &ap, nil
}

// ActiveAccessCodes returns active codes scoped to the access point or
// building-wide for its building, newest first.
func (s *CredentialStore) ActiveAccessCodes(ap *models.AccessPoint) ([]models.AccessCode, error) {
	var codes []models.AccessCode
	err := s.db.
		Where("is_active = ? AND building_id = ?", true, ap.BuildingID).
		Where("access_point_id IS NULL OR access_point_id = ?", ap.ID).
		Order("created_at DESC").
		Find(&codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load access codes: %w", err)
	}
	return codes, nil
}

func (s *CredentialStore) ActiveTemporaryPins(accessPointID uint) ([]models.TemporaryPin, error) {
	var pins []models.TemporaryPin
	err := s.db.
		Where("is_active = ? AND access_point_id = ?", true, accessPointID).
		Order("created_at DESC").
		Find(&pins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load temporary pins: %w", err)
	}
	return pins, nil
}

func (s *CredentialStore) ActiveUserPins(accessPointID uint) ([]models.UserPin, error) {
	var pins []models.UserPin
	err := s.db.
		Where("is_active = ? AND access_point_id = ?", true, accessPointID).
		Find(&pins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user pins: %w", err)
	}
	return pins, nil
}

// ActiveMasterPin returns nil without error when the access point has
// no master pin configured.
func (s *CredentialStore) ActiveMasterPin(accessPointID uint) (*models.MasterPin, error) {
	var pin models.MasterPin
	err := s.db.Where("is_active = ? AND access_point_id = ?", true, accessPointID).First(&pin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load master pin: %w", err)
	}
	return &pin, nil
}

// ActiveFaceByHashes looks up the active biometric whose three stored
// hashes equal the submitted ones exactly.
func (s *CredentialStore) ActiveFaceByHashes(front, left, right string) (*models.FaceBiometric, error) {
	var bio models.FaceBiometric
	err := s.db.
		Where("is_active = ? AND front_hash = ? AND left_hash = ? AND right_hash = ?", true, front, left, right).
		First(&bio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up face biometric: %w", err)
	}
	return &bio, nil
}
