package access

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aidatapp/aidat-backend/internal/models"
	"github.com/aidatapp/aidat-backend/internal/scope"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Manager implements the role-gated credential lifecycle: master and
// personal pins, guest codes, temporary pins, and face enrollment.
// Every operation validates its input and the actor's permission
// before touching credential state.
type Manager struct {
	db       *gorm.DB
	resolver *scope.Resolver
	faces    *FaceMatcher
}

func NewManager(db *gorm.DB, resolver *scope.Resolver, faces *FaceMatcher) *Manager {
	return &Manager{db: db, resolver: resolver, faces: faces}
}

// SetMasterPin creates or replaces the administrative override pin for
// an access point. Admin only.
func (m *Manager) SetMasterPin(actorID, accessPointID uint, pin string) error {
	actor, err := m.loadActor(actorID)
	if err != nil {
		return err
	}
	if !isAdmin(actor) {
		return ErrUnauthorized
	}
	if err := validatePin(pin); err != nil {
		return err
	}
	if err := m.requireAccessPoint(accessPointID); err != nil {
		return err
	}

	hash, err := hashPin(pin)
	if err != nil {
		return err
	}

	var existing models.MasterPin
	err = m.db.Where("access_point_id = ?", accessPointID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m.db.Create(&models.MasterPin{
			AccessPointID: accessPointID,
			PinHash:       hash,
			IsActive:      true,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("failed to load master pin: %w", err)
	}
	return m.db.Model(&existing).Updates(map[string]interface{}{
		"pin_hash":  hash,
		"is_active": true,
	}).Error
}

// SetUserPin sets a pin for targetUserID. Users may always set their
// own; acting on another user requires the admin role plus a verified
// current master pin for the access point.
func (m *Manager) SetUserPin(actorID, targetUserID, accessPointID uint, pin, masterPin string) error {
	actor, err := m.loadActor(actorID)
	if err != nil {
		return err
	}
	if err := validatePin(pin); err != nil {
		return err
	}
	if err := m.requireAccessPoint(accessPointID); err != nil {
		return err
	}

	if actorID != targetUserID {
		if !isAdmin(actor) {
			return ErrUnauthorized
		}
		if err := m.verifyMasterPin(accessPointID, masterPin); err != nil {
			return err
		}
	}

	var target models.User
	if err := m.db.First(&target, "id = ?", targetUserID).Error; err != nil {
		return ErrUserNotFound
	}

	return m.upsertUserPin(accessPointID, targetUserID, pin)
}

// UpdateOwnPin creates the caller's pin when none exists; otherwise
// the current pin must be supplied and verify before it is replaced.
func (m *Manager) UpdateOwnPin(actorID, accessPointID uint, newPin, oldPin string) error {
	if _, err := m.loadActor(actorID); err != nil {
		return err
	}
	if err := validatePin(newPin); err != nil {
		return err
	}
	if err := m.requireAccessPoint(accessPointID); err != nil {
		return err
	}

	var existing models.UserPin
	err := m.db.Where("access_point_id = ? AND user_id = ? AND is_active = ?", accessPointID, actorID, true).
		First(&existing).Error
	if err == nil {
		if oldPin == "" || bcrypt.CompareHashAndPassword([]byte(existing.PinHash), []byte(oldPin)) != nil {
			return ErrOldPinRequired
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load user pin: %w", err)
	}

	return m.upsertUserPin(accessPointID, actorID, newPin)
}

func (m *Manager) upsertUserPin(accessPointID, userID uint, pin string) error {
	hash, err := hashPin(pin)
	if err != nil {
		return err
	}

	var existing models.UserPin
	err = m.db.Where("access_point_id = ? AND user_id = ?", accessPointID, userID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m.db.Create(&models.UserPin{
			AccessPointID: accessPointID,
			UserID:        userID,
			PinHash:       hash,
			IsActive:      true,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("failed to load user pin: %w", err)
	}
	return m.db.Model(&existing).Updates(map[string]interface{}{
		"pin_hash":  hash,
		"is_active": true,
	}).Error
}

type CreateAccessCodeInput struct {
	BuildingID    uint
	AccessPointID *uint
	TenantUserID  *uint
	Label         string
	// Code is optional; when empty a random six digit code is issued.
	Code        string
	ValidFrom   *time.Time
	ExpiresAt   *time.Time
	IsSingleUse bool
	// StorePlain keeps a recoverable copy of the code for display.
	StorePlain bool
}

// CreateAccessCode issues a guest code. Tenants may only issue codes
// for a building they live in, and such codes are always bound to
// them; managers and admins may issue codes for any building in their
// data scope. Returns the created record and the plaintext code.
func (m *Manager) CreateAccessCode(actorID uint, in CreateAccessCodeInput) (*models.AccessCode, string, error) {
	actor, err := m.loadActor(actorID)
	if err != nil {
		return nil, "", err
	}
	if err := validateWindow(in.ValidFrom, in.ExpiresAt); err != nil {
		return nil, "", err
	}

	var building models.Building
	if err := m.db.First(&building, "id = ?", in.BuildingID).Error; err != nil {
		return nil, "", ErrBuildingNotFound
	}

	if in.AccessPointID != nil {
		var ap models.AccessPoint
		if err := m.db.First(&ap, "id = ?", *in.AccessPointID).Error; err != nil || ap.BuildingID != building.ID {
			return nil, "", ErrAccessPointNotFound
		}
	}

	cache := scope.NewCache()
	tenantUserID := in.TenantUserID
	if isTenant(actor) {
		resident, err := m.isResident(actorID, building.ID)
		if err != nil {
			return nil, "", err
		}
		if !resident {
			return nil, "", ErrUnauthorized
		}
		// Self-issued codes always belong to the issuing tenant.
		tenantUserID = &actorID
	} else if !m.canManageBuilding(cache, actor, &building) {
		return nil, "", ErrUnauthorized
	}

	plain := in.Code
	if plain == "" {
		plain, err = generateNumericCode(6)
		if err != nil {
			return nil, "", err
		}
	} else if err := validatePin(plain); err != nil {
		return nil, "", err
	}

	hash, err := hashPin(plain)
	if err != nil {
		return nil, "", err
	}

	code := models.AccessCode{
		BuildingID:    building.ID,
		AccessPointID: in.AccessPointID,
		TenantUserID:  tenantUserID,
		CreatedBy:     actorID,
		Label:         in.Label,
		CodeHash:      hash,
		ValidFrom:     in.ValidFrom,
		ExpiresAt:     in.ExpiresAt,
		IsSingleUse:   in.IsSingleUse,
		IsActive:      true,
	}
	if in.StorePlain {
		code.PlainCode = &plain
	}

	if err := m.db.Create(&code).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create access code: %w", err)
	}
	return &code, plain, nil
}

type CreateTemporaryPinInput struct {
	AccessPointID uint
	Pin           string
	ExpiresAt     time.Time
	MaxUses       int
}

// CreateTemporaryPin issues a legacy temporary pin, gated exactly like
// CreateAccessCode.
func (m *Manager) CreateTemporaryPin(actorID uint, in CreateTemporaryPinInput) (*models.TemporaryPin, string, error) {
	actor, err := m.loadActor(actorID)
	if err != nil {
		return nil, "", err
	}
	if !in.ExpiresAt.After(time.Now()) {
		return nil, "", ErrInvalidWindow
	}
	if in.MaxUses < 1 {
		return nil, "", fmt.Errorf("%w: max uses must be at least 1", ErrInvalidWindow)
	}

	ap, err := NewCredentialStore(m.db).AccessPoint(in.AccessPointID)
	if err != nil {
		return nil, "", err
	}

	cache := scope.NewCache()
	if isTenant(actor) {
		resident, err := m.isResident(actorID, ap.BuildingID)
		if err != nil {
			return nil, "", err
		}
		if !resident {
			return nil, "", ErrUnauthorized
		}
	} else if !m.canManageBuilding(cache, actor, ap.Building) {
		return nil, "", ErrUnauthorized
	}

	plain := in.Pin
	if plain == "" {
		plain, err = generateNumericCode(6)
		if err != nil {
			return nil, "", err
		}
	} else if err := validatePin(plain); err != nil {
		return nil, "", err
	}

	hash, err := hashPin(plain)
	if err != nil {
		return nil, "", err
	}

	pin := models.TemporaryPin{
		AccessPointID: in.AccessPointID,
		CreatedBy:     actorID,
		PinHash:       hash,
		ExpiresAt:     in.ExpiresAt,
		MaxUses:       in.MaxUses,
		IsActive:      true,
	}
	if err := m.db.Create(&pin).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create temporary pin: %w", err)
	}
	return &pin, plain, nil
}

// DeactivateAccessCode flips is_active off, keeping the row for audit
// continuity. Permitted to the code's creator or to a role with data
// scope over the code's building.
func (m *Manager) DeactivateAccessCode(actorID, codeID uint) error {
	code, err := m.authorizeCodeChange(actorID, codeID)
	if err != nil {
		return err
	}
	return m.db.Model(code).Update("is_active", false).Error
}

// DeleteAccessCode removes the code entirely. Same gate as deactivate;
// access logs referencing the code are untouched.
func (m *Manager) DeleteAccessCode(actorID, codeID uint) error {
	code, err := m.authorizeCodeChange(actorID, codeID)
	if err != nil {
		return err
	}
	return m.db.Delete(code).Error
}

func (m *Manager) authorizeCodeChange(actorID, codeID uint) (*models.AccessCode, error) {
	actor, err := m.loadActor(actorID)
	if err != nil {
		return nil, err
	}

	var code models.AccessCode
	if err := m.db.First(&code, "id = ?", codeID).Error; err != nil {
		return nil, ErrCodeNotFound
	}

	if code.CreatedBy == actorID {
		return &code, nil
	}
	if isTenant(actor) {
		return nil, ErrUnauthorized
	}

	var building models.Building
	if err := m.db.First(&building, "id = ?", code.BuildingID).Error; err != nil {
		return nil, ErrBuildingNotFound
	}
	if !m.canManageBuilding(scope.NewCache(), actor, &building) {
		return nil, ErrUnauthorized
	}
	return &code, nil
}

// EnrollFace hashes the three capture angles and replaces any previous
// active enrollment in one transaction, so exactly one active record
// exists per user at all times.
func (m *Manager) EnrollFace(userID uint, p *FacePayload, mimeType, deviceModel string) (*models.FaceBiometric, error) {
	if _, err := m.loadActor(userID); err != nil {
		return nil, err
	}

	front, left, right, err := m.faces.HashPayload(p)
	if err != nil {
		return nil, err
	}

	bio := models.FaceBiometric{
		UserID:      userID,
		FrontHash:   front,
		LeftHash:    left,
		RightHash:   right,
		MimeType:    mimeType,
		DeviceModel: deviceModel,
		IsActive:    true,
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FaceBiometric{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(&bio).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enroll face: %w", err)
	}
	return &bio, nil
}

// ListAccessLogs returns the audit trail visible to the actor,
// newest first, optionally restricted to one access point. Tenants
// have no log access.
func (m *Manager) ListAccessLogs(actorID uint, accessPointID *uint, limit int) ([]models.AccessLog, error) {
	actor, err := m.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	if isTenant(actor) {
		return nil, ErrUnauthorized
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := m.db.Model(&models.AccessLog{}).
		Select("access_logs.*").
		Joins("JOIN access_points ON access_points.id = access_logs.access_point_id").
		Joins("JOIN buildings ON buildings.id = access_points.building_id").
		Scopes(m.resolver.FilterColumn(scope.NewCache(), actorID, "buildings.created_by")).
		Order("access_logs.timestamp DESC").
		Limit(limit)
	if accessPointID != nil {
		q = q.Where("access_logs.access_point_id = ?", *accessPointID)
	}

	var logs []models.AccessLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return logs, nil
}

// --- helpers ---

func (m *Manager) loadActor(id uint) (*models.User, error) {
	var user models.User
	err := m.db.Preload("UserType").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

func (m *Manager) requireAccessPoint(id uint) error {
	var ap models.AccessPoint
	if err := m.db.First(&ap, "id = ?", id).Error; err != nil {
		return ErrAccessPointNotFound
	}
	return nil
}

func (m *Manager) verifyMasterPin(accessPointID uint, masterPin string) error {
	if masterPin == "" {
		return ErrMasterPinRequired
	}
	current, err := NewCredentialStore(m.db).ActiveMasterPin(accessPointID)
	if err != nil {
		return err
	}
	if current == nil || bcrypt.CompareHashAndPassword([]byte(current.PinHash), []byte(masterPin)) != nil {
		return ErrMasterPinRequired
	}
	return nil
}

func (m *Manager) isResident(userID, buildingID uint) (bool, error) {
	var count int64
	err := m.db.Model(&models.BuildingResident{}).
		Where("building_id = ? AND user_id = ?", buildingID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check residency: %w", err)
	}
	return count > 0, nil
}

func (m *Manager) canManageBuilding(cache *scope.Cache, actor *models.User, building *models.Building) bool {
	if isAdmin(actor) {
		return true
	}
	if building.OwnerID == actor.ID {
		return true
	}
	return m.resolver.HasAccess(cache, actor.ID, building.CreatedBy)
}

func isAdmin(u *models.User) bool {
	return u.UserType != nil && u.UserType.Name == models.UserTypeAdmin
}

func isTenant(u *models.User) bool {
	return u.UserType != nil && u.UserType.Name == models.UserTypeTenant
}

func validatePin(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return ErrInvalidPin
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPin
		}
	}
	return nil
}

func validateWindow(validFrom, expiresAt *time.Time) error {
	if expiresAt == nil {
		return nil
	}
	if !expiresAt.After(time.Now()) {
		return ErrInvalidWindow
	}
	if validFrom != nil && !expiresAt.After(*validFrom) {
		return ErrInvalidWindow
	}
	return nil
}

func hashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

func generateNumericCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
