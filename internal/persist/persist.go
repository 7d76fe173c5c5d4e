// Package persist writes a draft to the server and reconciles the assigned ids back.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/draft"
	"github.com/and161185/lesson-planner/internal/model"
)

// ErrBadResponse reports a save response that cannot be matched to the request.
var ErrBadResponse = errors.New("save response does not match request")

// Remote upserts a plan with its steps.
type Remote interface {
	SavePlan(ctx context.Context, w model.PlanWrite) (model.SavedPlan, error)
}

// Adapter persists a draft store. Persists through one Adapter run one at a
// time, so each snapshot carries the ids reconciled by the previous save.
type Adapter struct {
	remote Remote
	log    *zap.Logger

	mu sync.Mutex // held from snapshot to reconcile
}

// New constructs an Adapter. log may be nil.
func New(remote Remote, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{remote: remote, log: log}
}

// Serialize maps a draft to a write intent. Positions come from the current
// slice order and blank step titles get the "Step {n}" default.
func Serialize(d draft.Draft) model.PlanWrite {
	w := model.PlanWrite{
		ID:           d.RemoteID,
		Title:        d.Title,
		Date:         d.Date,
		Duration:     d.Duration,
		Grouping:     d.Grouping,
		DeliveryMode: d.DeliveryMode,
		LogoURL:      d.LogoURL,
		Steps:        make([]model.StepWrite, len(d.Steps)),
	}
	for i, st := range d.Steps {
		title := strings.TrimSpace(st.Title)
		if title == "" {
			title = draft.DefaultStepTitle(i)
		}
		w.Steps[i] = model.StepWrite{
			ID:          st.RemoteID,
			Position:    i,
			Title:       title,
			Notes:       st.Notes,
			ResourceIDs: append([]uuid.UUID(nil), st.ResourceIDs...),
		}
	}
	return w
}

// Persist saves the current snapshot of store and reconciles the response by position.
// Any failure fails the whole save and nothing is reconciled.
// A discarded store drops the result without error.
func (a *Adapter) Persist(ctx context.Context, store *draft.Store) (model.SavedPlan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := store.Snapshot()
	w := Serialize(snap)

	saved, err := a.remote.SavePlan(ctx, w)
	if err != nil {
		return model.SavedPlan{}, fmt.Errorf("save plan: %w", err)
	}
	switch {
	case saved.ID == uuid.Nil:
		return model.SavedPlan{}, fmt.Errorf("%w: empty plan id", ErrBadResponse)
	case w.ID != uuid.Nil && saved.ID != w.ID:
		return model.SavedPlan{}, fmt.Errorf("%w: plan id changed from %s to %s", ErrBadResponse, w.ID, saved.ID)
	case len(saved.StepIDs) != len(w.Steps):
		return model.SavedPlan{}, fmt.Errorf("%w: %d step ids for %d steps", ErrBadResponse, len(saved.StepIDs), len(w.Steps))
	}
	for i, id := range saved.StepIDs {
		if id == uuid.Nil || (w.Steps[i].ID != uuid.Nil && id != w.Steps[i].ID) {
			return model.SavedPlan{}, fmt.Errorf("%w: step[%d] id", ErrBadResponse, i)
		}
	}

	if !store.Reconcile(snap, saved) {
		a.log.Debug("save result dropped", zap.String("plan_id", saved.ID.String()))
		return saved, nil
	}
	a.log.Debug("plan saved", zap.String("plan_id", saved.ID.String()), zap.Int("steps", len(saved.StepIDs)))
	return saved, nil
}
