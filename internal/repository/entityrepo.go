// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/mirror-importer/internal/model"
)

// EntityRepository provides keyed access to ledger entity rows.
type EntityRepository interface {
	// FindByID loads an entity by id; errs.ErrNotFound if absent.
	FindByID(ctx context.Context, id model.EntityID) (*model.Entity, error)
	// Save inserts or replaces the row with the entity's id.
	Save(ctx context.Context, e *model.Entity) error
}
