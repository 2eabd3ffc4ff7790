package access

import (
	"testing"

	"github.com/aidatapp/aidat-backend/internal/models"
	"github.com/aidatapp/aidat-backend/internal/scope"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixture is the minimal world most access tests need: one building
// with one access point, and one user of each role.
type fixture struct {
	db       *gorm.DB
	verifier *Verifier
	manager  *Manager
	faces    *FaceMatcher
	resolver *scope.Resolver

	admin   *models.User
	pm      *models.User
	tenant  *models.User
	outcast *models.User

	building    *models.Building
	accessPoint *models.AccessPoint
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes
	// concurrent transactions the way per-row locking does in Postgres.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.UserType{},
		&models.User{},
		&models.Building{},
		&models.AccessPoint{},
		&models.BuildingResident{},
		&models.MasterPin{},
		&models.UserPin{},
		&models.TemporaryPin{},
		&models.AccessCode{},
		&models.FaceBiometric{},
		&models.AccessLog{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{db: db}
	f.resolver = scope.NewResolver(db)
	store := NewCredentialStore(db)
	f.faces = NewFaceMatcher(db, store, f.resolver, 10*1024*1024)
	f.verifier = NewVerifier(db, store, f.faces, NewAuditLogger(db))
	f.manager = NewManager(db, f.resolver, f.faces)

	adminType := seedType(t, db, models.UserTypeAdmin, models.ScopeAll)
	pmType := seedType(t, db, models.UserTypePropertyManager, models.ScopePM)
	tenantType := seedType(t, db, models.UserTypeTenant, models.ScopeOwn)

	f.admin = seedUser(t, db, "admin@example.com", adminType.ID, nil)
	f.pm = seedUser(t, db, "pm@example.com", pmType.ID, nil)
	f.tenant = seedUser(t, db, "tenant@example.com", tenantType.ID, &f.pm.ID)
	f.outcast = seedUser(t, db, "outcast@example.com", tenantType.ID, nil)

	f.building = &models.Building{Name: "Cedar Court", OwnerID: f.pm.ID, CreatedBy: f.pm.ID}
	if err := db.Create(f.building).Error; err != nil {
		t.Fatalf("failed to create building: %v", err)
	}

	f.accessPoint = &models.AccessPoint{BuildingID: f.building.ID, Name: "Main Door", SerialNumber: "AP-001"}
	if err := db.Create(f.accessPoint).Error; err != nil {
		t.Fatalf("failed to create access point: %v", err)
	}

	if err := db.Create(&models.BuildingResident{
		BuildingID: f.building.ID,
		UserID:     f.tenant.ID,
		UnitNumber: "3",
	}).Error; err != nil {
		t.Fatalf("failed to assign tenant: %v", err)
	}

	return f
}

func seedType(t *testing.T, db *gorm.DB, name, dac string) *models.UserType {
	t.Helper()
	ut := models.UserType{Name: name, DataAccessControl: &dac}
	if err := db.Create(&ut).Error; err != nil {
		t.Fatalf("failed to create user type %s: %v", name, err)
	}
	return &ut
}

func seedUser(t *testing.T, db *gorm.DB, email string, typeID uint, invitedBy *uint) *models.User {
	t.Helper()
	u := models.User{
		Email:           email,
		Password:        "x",
		UserTypeID:      typeID,
		InvitedByUserID: invitedBy,
		IsActive:        true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return &u
}

// hashSecret uses the minimum bcrypt cost to keep tests fast; the
// verify path is cost-agnostic.
func hashSecret(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash secret: %v", err)
	}
	return string(h)
}

func (f *fixture) countLogs(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AccessLog{}).Count(&n).Error; err != nil {
		t.Fatalf("failed to count access logs: %v", err)
	}
	return n
}

// pngBytes returns bytes http.DetectContentType reports as image/png.
func pngBytes(seed byte) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), seed, seed+1, seed+2)
}
