package access

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aidatapp/aidat-backend/internal/models"
	"github.com/aidatapp/aidat-backend/internal/scope"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type VerifyRequest struct {
	AccessPointID uint
	PIN           string
	Face          *FacePayload
	IP            string
	Device        string
}

type VerifyResult struct {
	Granted         bool      `json:"granted"`
	Reason          string    `json:"reason"`
	CredentialType  string    `json:"credential_type"`
	CredentialRefID *uint     `json:"credential_ref_id,omitempty"`
	UserID          *uint     `json:"user_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// outcome is the result of one credential attempt. A nil outcome means
// the attempt did not apply or matched nothing and dispatch continues.
// logged marks outcomes whose audit row was already written inside the
// transaction that consumed the credential.
type outcome struct {
	granted         bool
	reason          string
	credentialType  string
	credentialRefID *uint
	userID          *uint
	logged          bool
}

type attemptFunc func(cache *scope.Cache, ap *models.AccessPoint, req VerifyRequest, now time.Time) (*outcome, error)

// errCodeConsumed signals that a concurrent attempt consumed the
// single-use credential between the match and the deactivation.
var errCodeConsumed = errors.New("credential consumed concurrently")

// Verifier decides whether an access point should unlock for a given
// request. Credential types are tried in one fixed order — access
// codes, legacy temporary pins, personal pins, the master pin, then
// face — and the first success wins. PIN attempts take precedence over
// the face payload when both are present.
type Verifier struct {
	db    *gorm.DB
	store *CredentialStore
	faces *FaceMatcher
	audit *AuditLogger
}

func NewVerifier(db *gorm.DB, store *CredentialStore, faces *FaceMatcher, audit *AuditLogger) *Verifier {
	return &Verifier{db: db, store: store, faces: faces, audit: audit}
}

// VerifyAccess evaluates the request and writes exactly one access log
// row for every grant or denial. It returns an error only when no
// verification attempt happened at all: an unknown access point or a
// malformed image payload. Storage failures mid-verification fail
// closed as a denial.
func (v *Verifier) VerifyAccess(req VerifyRequest) (*VerifyResult, error) {
	ap, err := v.store.AccessPoint(req.AccessPointID)
	if err != nil {
		return nil, err
	}

	cache := scope.NewCache()
	now := time.Now()

	dispatch := []attemptFunc{
		v.attemptAccessCode,
		v.attemptTemporaryPin,
		v.attemptUserPin,
		v.attemptMasterPin,
		v.attemptFace,
	}

	for _, try := range dispatch {
		o, err := try(cache, ap, req, now)
		if err != nil {
			if errors.Is(err, ErrInvalidImage) {
				return nil, err
			}
			// Fail closed: a storage failure must never grant.
			slog.Error("credential verification storage failure", "error", err, "access_point_id", ap.ID)
			return v.finish(ap, req, &outcome{reason: ReasonDenied, credentialType: models.CredentialTypeNone}), nil
		}
		if o != nil {
			return v.finish(ap, req, o), nil
		}
	}

	return v.finish(ap, req, &outcome{reason: ReasonDenied, credentialType: models.CredentialTypeNone}), nil
}

func (v *Verifier) finish(ap *models.AccessPoint, req VerifyRequest, o *outcome) *VerifyResult {
	now := time.Now()
	if !o.logged {
		v.audit.Record(&models.AccessLog{
			AccessPointID:   ap.ID,
			UserID:          o.userID,
			CredentialType:  o.credentialType,
			CredentialRefID: o.credentialRefID,
			Success:         o.granted,
			Reason:          o.reason,
			IP:              req.IP,
			Device:          req.Device,
			Timestamp:       now,
		})
	}
	return &VerifyResult{
		Granted:         o.granted,
		Reason:          o.reason,
		CredentialType:  o.credentialType,
		CredentialRefID: o.credentialRefID,
		UserID:          o.userID,
		Timestamp:       now,
	}
}

func (v *Verifier) attemptAccessCode(cache *scope.Cache, ap *models.AccessPoint, req VerifyRequest, now time.Time) (*outcome, error) {
	if req.PIN == "" {
		return nil, nil
	}

	codes, err := v.store.ActiveAccessCodes(ap)
	if err != nil {
		return nil, err
	}

	for i := range codes {
		code := &codes[i]
		if !code.WindowContains(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(code.CodeHash), []byte(req.PIN)) != nil {
			continue
		}

		o := &outcome{
			granted:         true,
			reason:          ReasonGranted,
			credentialType:  models.CredentialTypeAccessCode,
			credentialRefID: &code.ID,
			userID:          code.TenantUserID,
		}
		if !code.IsSingleUse {
			return o, nil
		}

		err := v.consumeAccessCode(ap, req, code, now, o)
		if errors.Is(err, errCodeConsumed) {
			// Lost the race; the code is no longer live.
			continue
		}
		if err != nil {
			return nil, err
		}
		o.logged = true
		return o, nil
	}
	return nil, nil
}

// consumeAccessCode deactivates a single-use code and records the
// success in one transaction. The guarded update serializes concurrent
// attempts on the same row: only the attempt that flips is_active from
// true to false may grant.
func (v *Verifier) consumeAccessCode(ap *models.AccessPoint, req VerifyRequest, code *models.AccessCode, now time.Time, o *outcome) error {
	return v.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AccessCode{}).
			Where("id = ? AND is_active = ?", code.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCodeConsumed
		}
		return v.audit.RecordTx(tx, &models.AccessLog{
			AccessPointID:   ap.ID,
			UserID:          o.userID,
			CredentialType:  o.credentialType,
			CredentialRefID: o.credentialRefID,
			Success:         true,
			Reason:          o.reason,
			IP:              req.IP,
			Device:          req.Device,
			Timestamp:       now,
		})
	})
}

func (v *Verifier) attemptTemporaryPin(cache *scope.Cache, ap *models.AccessPoint, req VerifyRequest, now time.Time) (*outcome, error) {
	if req.PIN == "" {
		return nil, nil
	}

	pins, err := v.store.ActiveTemporaryPins(ap.ID)
	if err != nil {
		return nil, err
	}

	for i := range pins {
		pin := &pins[i]
		if !now.Before(pin.ExpiresAt) || pin.UsesCount >= pin.MaxUses {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(pin.PinHash), []byte(req.PIN)) != nil {
			continue
		}

		o := &outcome{
			granted:         true,
			reason:          ReasonGranted,
			credentialType:  models.CredentialTypeTemporaryPin,
			credentialRefID: &pin.ID,
		}
		err := v.consumeTemporaryPin(ap, req, pin, now, o)
		if errors.Is(err, errCodeConsumed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		o.logged = true
		return o, nil
	}
	return nil, nil
}

// consumeTemporaryPin counts one use, stamps first/last use, and
// deactivates the pin when the use cap is reached, all behind a
// guarded update so uses_count can never pass max_uses under
// concurrency.
func (v *Verifier) consumeTemporaryPin(ap *models.AccessPoint, req VerifyRequest, pin *models.TemporaryPin, now time.Time, o *outcome) error {
	return v.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TemporaryPin{}).
			Where("id = ? AND is_active = ? AND uses_count < max_uses", pin.ID, true).
			Updates(map[string]interface{}{
				"uses_count":    gorm.Expr("uses_count + 1"),
				"first_used_at": gorm.Expr("COALESCE(first_used_at, ?)", now),
				"last_used_at":  now,
				"is_active":     gorm.Expr("uses_count + 1 < max_uses"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCodeConsumed
		}
		return v.audit.RecordTx(tx, &models.AccessLog{
			AccessPointID:   ap.ID,
			CredentialType:  o.credentialType,
			CredentialRefID: o.credentialRefID,
			Success:         true,
			Reason:          o.reason,
			IP:              req.IP,
			Device:          req.Device,
			Timestamp:       now,
		})
	})
}

func (v *Verifier) attemptUserPin(cache *scope.Cache, ap *models.AccessPoint, req VerifyRequest, now time.Time) (*outcome, error) {
	if req.PIN == "" {
		return nil, nil
	}

	pins, err := v.store.ActiveUserPins(ap.ID)
	if err != nil {
		return nil, err
	}

	for i := range pins {
		pin := &pins[i]
		if bcrypt.CompareHashAndPassword([]byte(pin.PinHash), []byte(req.PIN)) != nil {
			continue
		}
		return &outcome{
			granted:         true,
			reason:          ReasonGranted,
			credentialType:  models.CredentialTypeUserPin,
			credentialRefID: &pin.ID,
			userID:          &pin.UserID,
		}, nil
	}
	return nil, nil
}

func (v *Verifier) attemptMasterPin(cache *scope.Cache, ap *models.AccessPoint, req VerifyRequest, now time.Time) (*outcome, error) {
	if req.PIN == "" {
		return nil, nil
	}

	pin, err := v.store.ActiveMasterPin(ap.ID)
	if err != nil {
		return nil, err
	}
	if pin == nil {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(pin.PinHash), []byte(req.PIN)) != nil {
		return nil, nil
	}

	return &outcome{
		granted:         true,
		reason:          ReasonGranted,
		credentialType:  models.CredentialTypeMasterPin,
		credentialRefID: &pin.ID,
	}, nil
}

func (v *Verifier) attemptFace(cache *scope.Cache, ap *models.AccessPoint, req VerifyRequest, now time.Time) (*outcome, error) {
	if req.Face == nil {
		return nil, nil
	}

	bio, hasBuildingAccess, err := v.faces.Match(cache, ap, req.Face)
	if err != nil {
		return nil, err
	}
	if bio == nil {
		return nil, nil
	}

	if !hasBuildingAccess {
		// Distinct denial: the hashes matched a real enrollment but the
		// user may not enter this building.
		return &outcome{
			reason:          ReasonNoBuildingAccess,
			credentialType:  models.CredentialTypeFace,
			credentialRefID: &bio.ID,
			userID:          &bio.UserID,
		}, nil
	}

	return &outcome{
		granted:         true,
		reason:          ReasonGranted,
		credentialType:  models.CredentialTypeFace,
		credentialRefID: &bio.ID,
		userID:          &bio.UserID,
	}, nil
}
