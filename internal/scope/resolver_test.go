package scope

import (
	"testing"

	"github.com/aidatapp/aidat-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
	// writes the way row-level locking does in Postgres.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.UserType{},
		&models.User{},
		&models.Building{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createUserType(t *testing.T, db *gorm.DB, name string, dac *string) *models.UserType {
	t.Helper()
	ut := models.UserType{Name: name, DataAccessControl: dac}
	if err := db.Create(&ut).Error; err != nil {
		t.Fatalf("failed to create user type %s: %v", name, err)
	}
	return &ut
}

func createUser(t *testing.T, db *gorm.DB, email string, typeID uint, invitedBy, createdBy *uint) *models.User {
	t.Helper()
	u := models.User{
		Email:           email,
		Password:        "x",
		UserTypeID:      typeID,
		InvitedByUserID: invitedBy,
		CreatedByUserID: createdBy,
		IsActive:        true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return &u
}

func strPtr(s string) *string { return &s }

func TestResolveOwnMode(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	ownType := createUserType(t, db, models.UserTypeStaff, strPtr(models.ScopeOwn))
	user := createUser(t, db, "staff@example.com", ownType.ID, nil, nil)

	s := r.Resolve(NewCache(), user.ID)
	if s.Mode != ModeOwn {
		t.Fatalf("expected ModeOwn, got %s", s.Mode)
	}
}

func TestResolveAllMode(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	tests := []struct {
		name string
		dac  *string
	}{
		{"explicit ALL", strPtr(models.ScopeAll)},
		{"null treated as ALL", nil},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ut := createUserType(t, db, tt.name, tt.dac)
			user := createUser(t, db, tt.name+"@example.com", ut.ID, nil, nil)
			s := r.Resolve(NewCache(), user.ID)
			if s.Mode != ModeAll {
				t.Fatalf("case %d: expected ModeAll, got %s", i, s.Mode)
			}
		})
	}
}

func TestResolvePMEcosystem(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	pmType := createUserType(t, db, models.UserTypePropertyManager, strPtr(models.ScopePM))
	staffType := createUserType(t, db, models.UserTypeStaff, strPtr(models.ScopePM))

	root := createUser(t, db, "root@example.com", pmType.ID, nil, nil)
	assistant := createUser(t, db, "assistant@example.com", staffType.ID, &root.ID, nil)
	// Legacy row: no inviter, only a creator.
	legacy := createUser(t, db, "legacy@example.com", staffType.ID, nil, &root.ID)
	// Two hops from the root.
	junior := createUser(t, db, "junior@example.com", staffType.ID, &assistant.ID, nil)

	// Unrelated ecosystem must stay invisible.
	otherRoot := createUser(t, db, "other@example.com", pmType.ID, nil, nil)
	outsider := createUser(t, db, "outsider@example.com", staffType.ID, &otherRoot.ID, nil)

	s := r.Resolve(NewCache(), junior.ID)
	if s.Mode != ModePM {
		t.Fatalf("expected ModePM, got %s", s.Mode)
	}

	want := map[uint]bool{root.ID: true, assistant.ID: true, legacy.ID: true}
	got := map[uint]bool{}
	for _, id := range s.EcosystemIDs {
		got[id] = true
	}
	for id := range want {
		if !got[id] {
			t.Errorf("ecosystem missing user %d", id)
		}
	}
	if got[outsider.ID] || got[otherRoot.ID] {
		t.Errorf("ecosystem leaked users from another root: %v", s.EcosystemIDs)
	}
}

func TestResolveLegacyCreatorChain(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	pmType := createUserType(t, db, models.UserTypePropertyManager, strPtr(models.ScopePM))
	staffType := createUserType(t, db, models.UserTypeStaff, strPtr(models.ScopePM))

	root := createUser(t, db, "root@example.com", pmType.ID, nil, nil)
	mid := createUser(t, db, "mid@example.com", staffType.ID, nil, &root.ID)
	leaf := createUser(t, db, "leaf@example.com", staffType.ID, nil, &mid.ID)

	s := r.Resolve(NewCache(), leaf.ID)
	found := false
	for _, id := range s.EcosystemIDs {
		if id == root.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected root %d in ecosystem, got %v", root.ID, s.EcosystemIDs)
	}
}

func TestResolveCyclicChainTerminates(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	staffType := createUserType(t, db, models.UserTypeStaff, strPtr(models.ScopePM))

	a := createUser(t, db, "a@example.com", staffType.ID, nil, nil)
	b := createUser(t, db, "b@example.com", staffType.ID, &a.ID, nil)
	// Close the loop: a invited by b.
	if err := db.Model(a).Update("invited_by_user_id", b.ID).Error; err != nil {
		t.Fatalf("failed to close cycle: %v", err)
	}

	s := r.Resolve(NewCache(), a.ID)
	if s.Mode != ModePM {
		t.Fatalf("expected ModePM, got %s", s.Mode)
	}
	if len(s.EcosystemIDs) != 1 || s.EcosystemIDs[0] != a.ID {
		t.Fatalf("cyclic chain should degenerate to {self}, got %v", s.EcosystemIDs)
	}
}

func TestResolveUnknownUserDenies(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)
	cache := NewCache()

	if r.HasAccess(cache, 9999, 1) {
		t.Fatal("unknown user must not have access to anything")
	}

	var buildings []models.Building
	err := db.Scopes(r.Filter(cache, 9999)).Find(&buildings).Error
	if err != nil {
		t.Fatalf("filter query failed: %v", err)
	}
	if len(buildings) != 0 {
		t.Fatalf("unknown user must see no rows, got %d", len(buildings))
	}
}

func TestCacheIsStickyWithinOperation(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	ownType := createUserType(t, db, "own", strPtr(models.ScopeOwn))
	allType := createUserType(t, db, "all", strPtr(models.ScopeAll))
	user := createUser(t, db, "u@example.com", ownType.ID, nil, nil)

	cache := NewCache()
	if s := r.Resolve(cache, user.ID); s.Mode != ModeOwn {
		t.Fatalf("expected ModeOwn, got %s", s.Mode)
	}

	// A role change mid-operation must not be observed through the
	// same cache, but a fresh cache sees it.
	if err := db.Model(user).Update("user_type_id", allType.ID).Error; err != nil {
		t.Fatalf("failed to update type: %v", err)
	}

	if s := r.Resolve(cache, user.ID); s.Mode != ModeOwn {
		t.Fatalf("cached resolution changed mid-operation: %s", s.Mode)
	}
	if s := r.Resolve(NewCache(), user.ID); s.Mode != ModeAll {
		t.Fatalf("fresh cache should see the new type, got %s", s.Mode)
	}
}
