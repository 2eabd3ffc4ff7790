package access

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/aidatapp/aidat-backend/internal/models"
	"github.com/aidatapp/aidat-backend/internal/scope"
	"gorm.io/gorm"
)

// FacePayload carries the three capture angles submitted for
// verification or enrollment.
type FacePayload struct {
	Front []byte
	Left  []byte
	Right []byte
}

var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// FaceMatcher hashes submitted images and performs exact-hash lookup
// against enrolled biometrics. Matching is deliberately exact equality
// of the three content hashes, not similarity scoring.
type FaceMatcher struct {
	db            *gorm.DB
	store         *CredentialStore
	resolver      *scope.Resolver
	maxImageBytes int
}

func NewFaceMatcher(db *gorm.DB, store *CredentialStore, resolver *scope.Resolver, maxImageBytes int) *FaceMatcher {
	return &FaceMatcher{db: db, store: store, resolver: resolver, maxImageBytes: maxImageBytes}
}

// HashPayload validates the three images and returns their content
// hashes in front, left, right order.
func (f *FaceMatcher) HashPayload(p *FacePayload) (front, left, right string, err error) {
	images := [][]byte{p.Front, p.Left, p.Right}
	hashes := make([]string, 3)
	for i, img := range images {
		if err := f.validateImage(img); err != nil {
			return "", "", "", err
		}
		hashes[i] = hashImage(img)
	}
	return hashes[0], hashes[1], hashes[2], nil
}

func (f *FaceMatcher) validateImage(img []byte) error {
	if len(img) == 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if f.maxImageBytes > 0 && len(img) > f.maxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, f.maxImageBytes)
	}
	if contentType := http.DetectContentType(img); !acceptedImageTypes[contentType] {
		return fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, contentType)
	}
	return nil
}

// Match looks for an active biometric whose stored hashes equal the
// submitted ones, then checks that the matched user may enter the
// access point's building. The second return value reports the
// building check; a match without building access must be denied with
// a distinct reason.
func (f *FaceMatcher) Match(cache *scope.Cache, ap *models.AccessPoint, p *FacePayload) (*models.FaceBiometric, bool, error) {
	front, left, right, err := f.HashPayload(p)
	if err != nil {
		return nil, false, err
	}

	bio, err := f.store.ActiveFaceByHashes(front, left, right)
	if err != nil || bio == nil {
		return nil, false, err
	}

	ok, err := f.hasBuildingAccess(cache, bio.UserID, ap)
	if err != nil {
		return nil, false, err
	}
	return bio, ok, nil
}

// hasBuildingAccess passes when the user is assigned to the building,
// owns it, or holds data scope over the building row.
func (f *FaceMatcher) hasBuildingAccess(cache *scope.Cache, userID uint, ap *models.AccessPoint) (bool, error) {
	var count int64
	err := f.db.Model(&models.BuildingResident{}).
		Where("building_id = ? AND user_id = ?", ap.BuildingID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check building assignment: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	building := ap.Building
	if building == nil {
		var b models.Building
		if err := f.db.First(&b, "id = ?", ap.BuildingID).Error; err != nil {
			return false, fmt.Errorf("failed to load building %d: %w", ap.BuildingID, err)
		}
		building = &b
	}

	if building.OwnerID == userID {
		return true, nil
	}
	return f.resolver.HasAccess(cache, userID, building.CreatedBy), nil
}

func hashImage(img []byte) string {
	h := sha256.Sum256(img)
	return hex.EncodeToString(h[:])
}
