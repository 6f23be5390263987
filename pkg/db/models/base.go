package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// assignID fills a missing primary key so inserts do not depend on a
// database-side uuid default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// NotDeleted filters out soft-deleted rows of the queried table.
func NotDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

// OwnedBy restricts a query on carts or orders to the provided owner.
func OwnedBy(owner types.Owner) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.IsUser() {
			return db.Where("user_id = ?", *owner.UserID)
		}
		return db.Where("user_id IS NULL AND session_id = ?", owner.SessionID)
	}
}
