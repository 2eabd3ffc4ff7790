package scope

import "gorm.io/gorm"

// Filter returns a GORM scope that restricts a query to the rows the
// user may see, keyed on the conventional created_by column. An
// unresolvable user matches no rows.
func (r *Resolver) Filter(cache *Cache, userID uint) func(db *gorm.DB) *gorm.DB {
	return r.FilterColumn(cache, userID, "created_by")
}

// FilterColumn is Filter with an explicit creator column, for joined
// queries where created_by alone would be ambiguous.
func (r *Resolver) FilterColumn(cache *Cache, userID uint, column string) func(db *gorm.DB) *gorm.DB {
	s := r.Resolve(cache, userID)
	return func(db *gorm.DB) *gorm.DB {
		switch s.Mode {
		case ModeAll:
			return db
		case ModeOwn:
			return db.Where(column+" = ?", userID)
		default:
			if len(s.EcosystemIDs) == 0 {
				return db.Where("1 = 0")
			}
			return db.Where(column+" IN ?", s.EcosystemIDs)
		}
	}
}

// HasAccess applies the same predicate as Filter to a single row's
// created_by value.
func (r *Resolver) HasAccess(cache *Cache, userID uint, createdBy uint) bool {
	s := r.Resolve(cache, userID)
	switch s.Mode {
	case ModeAll:
		return true
	case ModeOwn:
		return createdBy == userID
	default:
		for _, id := range s.EcosystemIDs {
			if id == createdBy {
				return true
			}
		}
		return false
	}
}
