package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/lesson-planner/internal/export"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/repository"
)

// PlanService defines operations over lesson plans.
type PlanService interface {
	// Save upserts the plan and its steps and returns the assigned ids in step order.
	Save(ctx context.Context, userID uuid.UUID, w model.PlanWrite) (model.SavedPlan, error)
	// Get returns a plan with ordered steps.
	Get(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error)
	// Export renders the persisted plan.
	Export(ctx context.Context, userID, planID uuid.UUID, format model.ExportFormat) (model.Document, error)
	// LinkToClass links the persisted plan to a class.
	LinkToClass(ctx context.Context, userID, planID, classID uuid.UUID) error
}

// PlanOptions tunes PlanServiceImpl.
type PlanOptions struct {
	MaxSteps int
	// PruneOmittedSteps deletes stored steps missing from a save.
	// Off by default: a save only upserts the steps it carries.
	PruneOmittedSteps bool
}

type PlanServiceImpl struct {
	plans   repository.PlanRepository
	classes repository.ClassRepository
	opts    PlanOptions
}

const maxTitleLen = 300

// NewPlanService constructs PlanService with limits.
func NewPlanService(plans repository.PlanRepository, classes repository.ClassRepository, opts PlanOptions) *PlanServiceImpl {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 200
	}
	return &PlanServiceImpl{plans: plans, classes: classes, opts: opts}
}

// Save validates and normalizes the write, then delegates the transactional upsert.
// Validation rules:
// - userID set
// - len(steps) <= MaxSteps
// - step[i].Position == i
// - step ids unique, resource ids non-nil
// - date is YYYY-MM-DD
func (s *PlanServiceImpl) Save(ctx context.Context, userID uuid.UUID, w model.PlanWrite) (model.SavedPlan, error) {
	if userID == uuid.Nil {
		return model.SavedPlan{}, errors.New("validation: empty userID")
	}
	if len(w.Steps) > s.opts.MaxSteps {
		return model.SavedPlan{}, fmt.Errorf("validation: too many steps (%d > %d)", len(w.Steps), s.opts.MaxSteps)
	}
	if len(w.Title) > maxTitleLen {
		return model.SavedPlan{}, errors.New("validation: title too long")
	}
	if w.Date != nil {
		d, err := model.ParseDate(string(*w.Date))
		if err != nil {
			return model.SavedPlan{}, fmt.Errorf("validation: %w", err)
		}
		w.Date = &d
	}
	w.Duration = trimOptional(w.Duration)
	w.Grouping = trimOptional(w.Grouping)
	w.DeliveryMode = trimOptional(w.DeliveryMode)
	w.LogoURL = trimOptional(w.LogoURL)

	seen := make(map[uuid.UUID]struct{}, len(w.Steps))
	steps := make([]model.StepWrite, len(w.Steps))
	for i, st := range w.Steps {
		if st.Position != i {
			return model.SavedPlan{}, fmt.Errorf("validation: step[%d] position %d", i, st.Position)
		}
		if st.ID != uuid.Nil {
			if _, dup := seen[st.ID]; dup {
				return model.SavedPlan{}, fmt.Errorf("validation: step[%d] duplicate id", i)
			}
			seen[st.ID] = struct{}{}
		}
		ids, err := uniqueIDs(st.ResourceIDs)
		if err != nil {
			return model.SavedPlan{}, fmt.Errorf("validation: step[%d] %w", i, err)
		}
		st.ResourceIDs = ids
		st.Title = strings.TrimSpace(st.Title)
		if st.Title == "" {
			st.Title = fmt.Sprintf("Step %d", i+1)
		}
		st.Notes = trimOptional(st.Notes)
		steps[i] = st
	}
	w.Steps = steps
	return s.plans.SavePlan(ctx, userID, w, s.opts.PruneOmittedSteps)
}

// Get fetches a single plan by id.
func (s *PlanServiceImpl) Get(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error) {
	if userID == uuid.Nil || planID == uuid.Nil {
		return nil, errors.New("validation: empty userID/planID")
	}
	return s.plans.GetPlan(ctx, userID, planID)
}

// Export loads the persisted plan and renders it.
func (s *PlanServiceImpl) Export(ctx context.Context, userID, planID uuid.UUID, format model.ExportFormat) (model.Document, error) {
	if _, err := model.ParseExportFormat(string(format)); err != nil {
		return model.Document{}, fmt.Errorf("validation: %w", err)
	}
	p, err := s.Get(ctx, userID, planID)
	if err != nil {
		return model.Document{}, err
	}
	return export.Render(*p, format)
}

// LinkToClass links a plan to one of the teacher's classes.
func (s *PlanServiceImpl) LinkToClass(ctx context.Context, userID, planID, classID uuid.UUID) error {
	if userID == uuid.Nil || planID == uuid.Nil || classID == uuid.Nil {
		return errors.New("validation: empty userID/planID/classID")
	}
	return s.classes.LinkPlan(ctx, userID, planID, classID)
}

// trimOptional maps blank values to absent.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// uniqueIDs drops repeats, keeping first occurrence order.
func uniqueIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, errors.New("empty resource id")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
