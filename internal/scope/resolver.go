package scope

import (
	"errors"
	"fmt"

	"github.com/aidatapp/aidat-backend/internal/models"
	"gorm.io/gorm"
)

// Mode is the breadth of data a user may see beyond what they created
// themselves.
type Mode string

const (
	ModeOwn Mode = "own"
	ModeAll Mode = "all"
	ModePM  Mode = "pm"
)

// Scope is a resolved visibility decision for one user. For ModePM,
// EcosystemIDs holds every user id in the property manager's ecosystem
// (the PM root plus everyone the root invited or created). An empty
// ecosystem means the user sees nothing.
type Scope struct {
	Mode         Mode
	EcosystemIDs []uint
}

// Cache memoizes scope resolutions for the duration of one logical
// operation, so a request that checks hundreds of rows walks the
// hierarchy once. It is constructed per operation and discarded with
// it; it is never shared across requests.
type Cache struct {
	scopes map[uint]Scope
}

func NewCache() *Cache {
	return &Cache{scopes: make(map[uint]Scope)}
}

type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the visibility scope for userID. An unknown user
// resolves to an empty PM ecosystem, which every filter treats as
// no access; callers that require the user to exist must check that
// themselves.
func (r *Resolver) Resolve(cache *Cache, userID uint) Scope {
	if cache != nil {
		if s, ok := cache.scopes[userID]; ok {
			return s
		}
	}

	s := r.resolve(userID)
	if cache != nil {
		cache.scopes[userID] = s
	}
	return s
}

func (r *Resolver) resolve(userID uint) Scope {
	user, err := r.loadUser(userID)
	if err != nil {
		return Scope{Mode: ModePM, EcosystemIDs: nil}
	}

	access := models.ScopeAll
	if user.UserType != nil && user.UserType.DataAccessControl != nil {
		access = *user.UserType.DataAccessControl
	}

	switch access {
	case models.ScopeOwn:
		return Scope{Mode: ModeOwn}
	case models.ScopePM:
		return Scope{Mode: ModePM, EcosystemIDs: r.ecosystemFor(user)}
	default:
		return Scope{Mode: ModeAll}
	}
}

// ecosystemFor walks the invitation chain upward until it finds a
// property-manager root, then collects the root and everyone the root
// invited or created. The walk is iterative with an explicit visited
// set so a cyclic chain terminates instead of looping; when no root is
// reachable the ecosystem degenerates to the user alone.
func (r *Resolver) ecosystemFor(user *models.User) []uint {
	root := r.findRoot(user)
	if root == nil {
		return []uint{user.ID}
	}

	var memberIDs []uint
	err := r.db.Model(&models.User{}).
		Where("invited_by_user_id = ? OR created_by_user_id = ?", root.ID, root.ID).
		Pluck("id", &memberIDs).Error
	if err != nil {
		return []uint{user.ID}
	}

	ids := make([]uint, 0, len(memberIDs)+1)
	ids = append(ids, root.ID)
	for _, id := range memberIDs {
		if id != root.ID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Resolver) findRoot(start *models.User) *models.User {
	visited := make(map[uint]bool)
	current := start

	for current != nil {
		if visited[current.ID] {
			// Cyclic invitation chain; bail out rather than loop.
			return nil
		}
		visited[current.ID] = true

		if current.IsPropertyManager() {
			return current
		}

		parentID := current.ParentID()
		if parentID == nil {
			return nil
		}

		next, err := r.loadUser(*parentID)
		if err != nil {
			return nil
		}
		current = next
	}
	return nil
}

func (r *Resolver) loadUser(id uint) (*models.User, error) {
	var user models.User
	err := r.db.Preload("UserType").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}
