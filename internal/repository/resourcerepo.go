package repository

import (
	"context"

	"github.com/and161185/lesson-planner/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ResourceRepository provides read access to the resource catalog.
type ResourceRepository interface {
	// GetByIDs returns the existing resources among ids; unknown ids are silently dropped.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Resource, error)
	// Create inserts a resource.
	Create(ctx context.Context, r *model.Resource) error
}
