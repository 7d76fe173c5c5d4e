package repository

import (
	"context"

	"github.com/and161185/lesson-planner/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ClassRepository stores classes and their linked plans.
type ClassRepository interface {
	// Create inserts a class.
	Create(ctx context.Context, c *model.Class) error
	// LinkPlan links a plan to a class when both belong to userID. Linking twice is a no-op.
	LinkPlan(ctx context.Context, userID, planID, classID uuid.UUID) error
}
