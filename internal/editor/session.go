// Package editor is the controller surface of one lesson editing session.
package editor

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/draft"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/orchestrate"
	"github.com/and161185/lesson-planner/internal/persist"
	"github.com/and161185/lesson-planner/internal/resolve"
)

// MissingResourceText is shown in place of a resource that could not be resolved.
const MissingResourceText = "resource no longer available"

// Remote is everything a session needs from the server.
type Remote interface {
	persist.Remote
	orchestrate.Remote
	resolve.Lookup
}

// Session owns the draft store, resolution cache and action orchestrator of one editor.
type Session struct {
	store   *draft.Store
	cache   *resolve.Cache
	adapter *persist.Adapter
	orch    *orchestrate.Orchestrator
}

// Options tunes a Session.
type Options struct {
	// SignedIn reports whether a session token is available; nil means always.
	SignedIn func() bool
	// OnTransition observes action state changes.
	OnTransition func(orchestrate.Transition)
	// OnResolved runs after resource lookups are applied.
	OnResolved func()
}

// Open starts a session over store. Pass draft.New() for a blank lesson.
func Open(store *draft.Store, remote Remote, log *zap.Logger, opts Options) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	var copts []resolve.Option
	if opts.OnResolved != nil {
		copts = append(copts, resolve.WithOnChange(opts.OnResolved))
	}
	var oopts []orchestrate.Option
	if opts.SignedIn != nil {
		oopts = append(oopts, orchestrate.WithSignedIn(opts.SignedIn))
	}
	if opts.OnTransition != nil {
		oopts = append(oopts, orchestrate.WithObserver(opts.OnTransition))
	}
	adapter := persist.New(remote, log.Named("persist"))
	s := &Session{
		store:   store,
		cache:   resolve.New(remote, log.Named("resolve"), copts...),
		adapter: adapter,
		orch:    orchestrate.New(adapter, remote, log.Named("orchestrate"), oopts...),
	}
	s.refresh()
	return s
}

// refresh re-resolves after every mutation.
func (s *Session) refresh() { s.cache.Refresh(s.store.ReferencedResourceIDs()) }

// AddStep appends a step and returns its local id.
func (s *Session) AddStep() string {
	id := s.store.AddStep()
	s.refresh()
	return id
}

// RemoveStep drops the step from the draft.
func (s *Session) RemoveStep(localID string) {
	s.store.RemoveStep(localID)
	s.refresh()
}

// RenameStep sets the step title as typed.
func (s *Session) RenameStep(localID, title string) {
	s.store.RenameStep(localID, title)
	s.refresh()
}

// BlurStepTitle applies the default title to a blank step title.
func (s *Session) BlurStepTitle(localID string) {
	s.store.BlurStepTitle(localID)
	s.refresh()
}

// SetStepNotes sets the step notes; blank clears them.
func (s *Session) SetStepNotes(localID, notes string) {
	s.store.SetStepNotes(localID, notes)
	s.refresh()
}

// SetStepResourceIDs replaces the step's resource references.
func (s *Session) SetStepResourceIDs(localID string, ids []uuid.UUID) {
	s.store.SetStepResourceIDs(localID, ids)
	s.refresh()
}

// MoveStep moves the step to index, clamped.
func (s *Session) MoveStep(localID string, index int) {
	s.store.MoveStep(localID, index)
	s.refresh()
}

// SetField sets a plan-level field.
func (s *Session) SetField(f draft.Field, value string) {
	s.store.SetField(f, value)
	s.refresh()
}

// Hydrate loads a fetched plan into the draft.
func (s *Session) Hydrate(p model.Plan) {
	s.store.Hydrate(p)
	s.refresh()
}

// Save persists the draft without a follow-up action.
func (s *Session) Save(ctx context.Context) (model.SavedPlan, error) {
	return s.adapter.Persist(ctx, s.store)
}

// Export persists, then exports the plan.
func (s *Session) Export(ctx context.Context, format model.ExportFormat) (model.Document, error) {
	return s.orch.Export(ctx, s.store, format)
}

// SaveToClass persists, then links the plan to classID.
func (s *Session) SaveToClass(ctx context.Context, classID uuid.UUID) (uuid.UUID, error) {
	return s.orch.SaveToClass(ctx, s.store, classID)
}

// Busy reports whether an action of kind is running; a UI disables its control meanwhile.
func (s *Session) Busy(kind orchestrate.Kind) bool { return s.orch.Busy(kind) }

// Draft returns a snapshot of the draft.
func (s *Session) Draft() draft.Draft { return s.store.Snapshot() }

// Dirty reports unsaved edits.
func (s *Session) Dirty() bool { return s.store.Dirty() }

// WaitResolved blocks until outstanding resource lookups are applied.
func (s *Session) WaitResolved() { s.cache.Wait() }

// Close tears the session down. In-flight lookups are cancelled; in-flight
// saves finish but their results are dropped.
func (s *Session) Close() {
	s.store.Discard()
	s.cache.Close()
}

// ResourceView is one resource reference as shown in the preview.
type ResourceView struct {
	ID    uuid.UUID
	State resolve.State
	Title string
	Type  string
}

// StepView is one step of the preview.
type StepView struct {
	LocalID   string
	Position  int
	Title     string
	Notes     string
	Resources []ResourceView
}

// Preview pairs each step with the resolution state of its resources.
func (s *Session) Preview() []StepView {
	d := s.store.Snapshot()
	entries := s.cache.Snapshot()
	out := make([]StepView, len(d.Steps))
	for i, st := range d.Steps {
		v := StepView{LocalID: st.LocalID, Position: i, Title: st.Title}
		if v.Title == "" {
			v.Title = draft.DefaultStepTitle(i)
		}
		if st.Notes != nil {
			v.Notes = *st.Notes
		}
		for _, id := range st.ResourceIDs {
			rv := ResourceView{ID: id, State: resolve.Pending}
			if e, ok := entries[id]; ok {
				rv.State = e.State
			}
			switch rv.State {
			case resolve.Resolved:
				rv.Title, rv.Type = entries[id].Resource.Title, entries[id].Resource.Type
			case resolve.Missing:
				rv.Title = MissingResourceText
			default:
				rv.Title = "loading"
			}
			v.Resources = append(v.Resources, rv)
		}
		out[i] = v
	}
	return out
}
