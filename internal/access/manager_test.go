package access

import (
	"errors"
	"testing"
	"time"

	"github.com/aidatapp/aidat-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

func TestSetMasterPinAdminOnly(t *testing.T) {
	f := newFixture(t)

	if err := f.manager.SetMasterPin(f.pm.ID, f.accessPoint.ID, "13579"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	if err := f.manager.SetMasterPin(f.admin.ID, f.accessPoint.ID, "13579"); err != nil {
		t.Fatalf("admin failed to set master pin: %v", err)
	}

	var pin models.MasterPin
	if err := f.db.First(&pin, "access_point_id = ?", f.accessPoint.ID).Error; err != nil {
		t.Fatalf("master pin not stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(pin.PinHash), []byte("13579")) != nil {
		t.Fatal("stored hash does not verify against the pin")
	}

	// Updating replaces the hash on the same row.
	if err := f.manager.SetMasterPin(f.admin.ID, f.accessPoint.ID, "24680"); err != nil {
		t.Fatalf("admin failed to update master pin: %v", err)
	}
	var count int64
	f.db.Model(&models.MasterPin{}).Where("access_point_id = ?", f.accessPoint.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected one master pin row, got %d", count)
	}
}

func TestSetUserPinOnBehalfRequiresMasterPin(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.SetMasterPin(f.admin.ID, f.accessPoint.ID, "99990000"); err != nil {
		t.Fatalf("failed to seed master pin: %v", err)
	}

	// A user may always set their own pin without the master pin.
	if err := f.manager.SetUserPin(f.tenant.ID, f.tenant.ID, f.accessPoint.ID, "1111", ""); err != nil {
		t.Fatalf("self pin set failed: %v", err)
	}

	// Non-admin acting on another user is refused outright.
	if err := f.manager.SetUserPin(f.pm.ID, f.tenant.ID, f.accessPoint.ID, "2222", "99990000"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Admin without the master pin, or with a wrong one, is refused.
	if err := f.manager.SetUserPin(f.admin.ID, f.tenant.ID, f.accessPoint.ID, "2222", ""); !errors.Is(err, ErrMasterPinRequired) {
		t.Fatalf("expected ErrMasterPinRequired, got %v", err)
	}
	if err := f.manager.SetUserPin(f.admin.ID, f.tenant.ID, f.accessPoint.ID, "2222", "00000000"); !errors.Is(err, ErrMasterPinRequired) {
		t.Fatalf("expected ErrMasterPinRequired for wrong master pin, got %v", err)
	}

	if err := f.manager.SetUserPin(f.admin.ID, f.tenant.ID, f.accessPoint.ID, "2222", "99990000"); err != nil {
		t.Fatalf("admin with master pin failed: %v", err)
	}
}

func TestUpdateOwnPinRequiresCurrentPin(t *testing.T) {
	f := newFixture(t)

	// First pin: created without an old pin.
	if err := f.manager.UpdateOwnPin(f.tenant.ID, f.accessPoint.ID, "4321", ""); err != nil {
		t.Fatalf("initial pin creation failed: %v", err)
	}

	if err := f.manager.UpdateOwnPin(f.tenant.ID, f.accessPoint.ID, "8765", ""); !errors.Is(err, ErrOldPinRequired) {
		t.Fatalf("expected ErrOldPinRequired without old pin, got %v", err)
	}
	if err := f.manager.UpdateOwnPin(f.tenant.ID, f.accessPoint.ID, "8765", "0000"); !errors.Is(err, ErrOldPinRequired) {
		t.Fatalf("expected ErrOldPinRequired with wrong old pin, got %v", err)
	}
	if err := f.manager.UpdateOwnPin(f.tenant.ID, f.accessPoint.ID, "8765", "4321"); err != nil {
		t.Fatalf("pin update with correct old pin failed: %v", err)
	}

	var pin models.UserPin
	if err := f.db.First(&pin, "access_point_id = ? AND user_id = ?", f.accessPoint.ID, f.tenant.ID).Error; err != nil {
		t.Fatalf("user pin not stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(pin.PinHash), []byte("8765")) != nil {
		t.Fatal("stored hash does not verify against the new pin")
	}
}

func TestPinFormatValidation(t *testing.T) {
	f := newFixture(t)

	for _, bad := range []string{"", "123", "123456789", "12ab"} {
		if err := f.manager.UpdateOwnPin(f.tenant.ID, f.accessPoint.ID, bad, ""); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("pin %q: expected ErrInvalidPin, got %v", bad, err)
		}
	}
}

func TestCreateAccessCodeWindowValidation(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	tests := []struct {
		name      string
		validFrom *time.Time
		expiresAt *time.Time
	}{
		{"expiry in the past", nil, timePtr(now.Add(-time.Hour))},
		{"expiry before validFrom", timePtr(now.Add(48 * time.Hour)), timePtr(now.Add(24 * time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.manager.CreateAccessCode(f.pm.ID, CreateAccessCodeInput{
				BuildingID: f.building.ID,
				ValidFrom:  tt.validFrom,
				ExpiresAt:  tt.expiresAt,
			})
			if !errors.Is(err, ErrInvalidWindow) {
				t.Fatalf("expected ErrInvalidWindow, got %v", err)
			}
		})
	}
}

func TestCreateAccessCodeTenantGating(t *testing.T) {
	f := newFixture(t)

	// A tenant outside the building may not issue codes for it.
	_, _, err := f.manager.CreateAccessCode(f.outcast.ID, CreateAccessCodeInput{BuildingID: f.building.ID})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-resident tenant, got %v", err)
	}

	// A resident tenant may, and the code is bound to them.
	code, plain, err := f.manager.CreateAccessCode(f.tenant.ID, CreateAccessCodeInput{
		BuildingID:  f.building.ID,
		IsSingleUse: true,
	})
	if err != nil {
		t.Fatalf("resident tenant failed to create code: %v", err)
	}
	if code.TenantUserID == nil || *code.TenantUserID != f.tenant.ID {
		t.Fatalf("tenant-issued code must be bound to the tenant, got %v", code.TenantUserID)
	}
	if len(plain) != 6 {
		t.Fatalf("expected a generated six digit code, got %q", plain)
	}

	// The generated code actually opens the door.
	res, err := f.verifier.VerifyAccess(VerifyRequest{AccessPointID: f.accessPoint.ID, PIN: plain})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !res.Granted {
		t.Fatalf("freshly issued code denied: %s", res.Reason)
	}
}

func TestCreateAccessCodeScopeGating(t *testing.T) {
	f := newFixture(t)

	// Another manager with no scope over this building.
	var pmType models.UserType
	if err := f.db.First(&pmType, "name = ?", models.UserTypePropertyManager).Error; err != nil {
		t.Fatalf("pm type missing: %v", err)
	}
	rival := seedUser(t, f.db, "rival@example.com", pmType.ID, nil)

	_, _, err := f.manager.CreateAccessCode(rival.ID, CreateAccessCodeInput{BuildingID: f.building.ID})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for out-of-scope manager, got %v", err)
	}

	// The owning manager and the admin both can.
	if _, _, err := f.manager.CreateAccessCode(f.pm.ID, CreateAccessCodeInput{BuildingID: f.building.ID}); err != nil {
		t.Fatalf("owning manager failed: %v", err)
	}
	if _, _, err := f.manager.CreateAccessCode(f.admin.ID, CreateAccessCodeInput{BuildingID: f.building.ID}); err != nil {
		t.Fatalf("admin failed: %v", err)
	}
}

func TestCreateAccessCodeStorePlain(t *testing.T) {
	f := newFixture(t)

	withPlain, plain, err := f.manager.CreateAccessCode(f.pm.ID, CreateAccessCodeInput{
		BuildingID: f.building.ID,
		StorePlain: true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if withPlain.PlainCode == nil || *withPlain.PlainCode != plain {
		t.Fatal("recoverable copy not stored despite StorePlain")
	}

	withoutPlain, _, err := f.manager.CreateAccessCode(f.pm.ID, CreateAccessCodeInput{BuildingID: f.building.ID})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if withoutPlain.PlainCode != nil {
		t.Fatal("plaintext stored without StorePlain")
	}
}

func TestDeactivateAccessCodePermissions(t *testing.T) {
	f := newFixture(t)
	code, _, err := f.manager.CreateAccessCode(f.tenant.ID, CreateAccessCodeInput{BuildingID: f.building.ID})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.manager.DeactivateAccessCode(f.outcast.ID, code.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unrelated tenant, got %v", err)
	}

	// The building's manager holds scope over it.
	if err := f.manager.DeactivateAccessCode(f.pm.ID, code.ID); err != nil {
		t.Fatalf("manager deactivate failed: %v", err)
	}

	var stored models.AccessCode
	if err := f.db.First(&stored, "id = ?", code.ID).Error; err != nil {
		t.Fatalf("code was deleted, expected deactivate to keep the row: %v", err)
	}
	if stored.IsActive {
		t.Fatal("code still active after deactivate")
	}
}

func TestDeleteAccessCodeByCreator(t *testing.T) {
	f := newFixture(t)
	code, _, err := f.manager.CreateAccessCode(f.tenant.ID, CreateAccessCodeInput{BuildingID: f.building.ID})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.manager.DeleteAccessCode(f.tenant.ID, code.ID); err != nil {
		t.Fatalf("creator delete failed: %v", err)
	}
	var count int64
	f.db.Model(&models.AccessCode{}).Where("id = ?", code.ID).Count(&count)
	if count != 0 {
		t.Fatal("code row still present after delete")
	}
}

func TestCreateTemporaryPinValidation(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.manager.CreateTemporaryPin(f.pm.ID, CreateTemporaryPinInput{
		AccessPointID: f.accessPoint.ID,
		ExpiresAt:     time.Now().Add(-time.Minute),
		MaxUses:       1,
	})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for past expiry, got %v", err)
	}

	_, _, err = f.manager.CreateTemporaryPin(f.pm.ID, CreateTemporaryPinInput{
		AccessPointID: f.accessPoint.ID,
		ExpiresAt:     time.Now().Add(time.Hour),
		MaxUses:       0,
	})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for zero max uses, got %v", err)
	}

	pin, plain, err := f.manager.CreateTemporaryPin(f.tenant.ID, CreateTemporaryPinInput{
		AccessPointID: f.accessPoint.ID,
		ExpiresAt:     time.Now().Add(time.Hour),
		MaxUses:       3,
	})
	if err != nil {
		t.Fatalf("resident tenant failed to create temporary pin: %v", err)
	}
	if pin.MaxUses != 3 || plain == "" {
		t.Fatalf("unexpected pin %+v / %q", pin, plain)
	}
}

func TestEnrollFaceKeepsOneActiveRecord(t *testing.T) {
	f := newFixture(t)

	first, _ := enroll(t, f, f.tenant.ID, 1)
	second, _ := enroll(t, f, f.tenant.ID, 40)

	var active []models.FaceBiometric
	if err := f.db.Where("user_id = ? AND is_active = ?", f.tenant.ID, true).Find(&active).Error; err != nil {
		t.Fatalf("failed to list biometrics: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one active biometric, got %d", len(active))
	}
	if active[0].ID != second.ID {
		t.Fatalf("active biometric should be the re-enrollment, got %d", active[0].ID)
	}

	var old models.FaceBiometric
	if err := f.db.First(&old, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("previous enrollment row missing: %v", err)
	}
	if old.IsActive {
		t.Fatal("previous enrollment still active")
	}
}

func TestListAccessLogsGating(t *testing.T) {
	f := newFixture(t)

	// Produce one log row.
	if _, err := f.verifier.VerifyAccess(VerifyRequest{AccessPointID: f.accessPoint.ID, PIN: "0000"}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if _, err := f.manager.ListAccessLogs(f.tenant.ID, nil, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tenant, got %v", err)
	}

	logs, err := f.manager.ListAccessLogs(f.admin.ID, nil, 0)
	if err != nil {
		t.Fatalf("admin list failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log row, got %d", len(logs))
	}

	logs, err = f.manager.ListAccessLogs(f.pm.ID, &f.accessPoint.ID, 0)
	if err != nil {
		t.Fatalf("manager list failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected manager to see their building's logs, got %d", len(logs))
	}
}
