package repository

import (
	"context"

	"github.com/and161185/lesson-planner/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PlanRepository stores lesson plans and their steps.
type PlanRepository interface {
	// SavePlan upserts the plan row and each step row in one transaction.
	// New ids are generated for rows written without one. SavedPlan.StepIDs follows
	// the order of w.Steps. When pruneOmitted is set, existing steps absent from w are deleted.
	SavePlan(ctx context.Context, userID uuid.UUID, w model.PlanWrite, pruneOmitted bool) (model.SavedPlan, error)

	// GetPlan returns the plan with steps ordered by position.
	GetPlan(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error)
}
