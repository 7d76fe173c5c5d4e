// Package orchestrate runs persist-then-derive actions: export a plan, link it to a class.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/draft"
	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
)

// Kind names an action. At most one action per kind runs at a time.
type Kind string

const (
	KindExport Kind = "export"
	KindLink   Kind = "link"
)

// State of the last action of a kind.
type State string

const (
	Idle             State = "idle"
	Persisting       State = "persisting"
	PersistFailed    State = "persist_failed"
	Persisted        State = "persisted"
	DerivedRunning   State = "derived_running"
	DerivedFailed    State = "derived_failed"
	DerivedSucceeded State = "derived_succeeded"
)

// Terminal reports whether no further transition follows s in the same run.
func (s State) Terminal() bool {
	return s == PersistFailed || s == DerivedFailed || s == DerivedSucceeded
}

// Transition is passed to the observer on every state change.
type Transition struct {
	Kind     Kind
	From, To State
	Err      error
}

// Persister saves a draft and reconciles the assigned ids.
type Persister interface {
	Persist(ctx context.Context, store *draft.Store) (model.SavedPlan, error)
}

// Remote runs the operations that need a persisted plan id.
type Remote interface {
	ExportPlan(ctx context.Context, planID uuid.UUID, format model.ExportFormat) (model.Document, error)
	LinkPlanToClass(ctx context.Context, planID, classID uuid.UUID) error
}

// ActionError is the single error reported for a failed action.
// Cause is one of the errs action sentinels; Err is the underlying failure.
type ActionError struct {
	Kind  Kind
	Cause error
	Err   error
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v: %v", e.Kind, e.Cause, e.Err)
}

func (e *ActionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}

// Message is the text shown to the user.
func (e *ActionError) Message() string {
	what := "export this lesson"
	follow := "the download failed"
	if e.Kind == KindLink {
		what, follow = "save this lesson to a class", "linking it to the class failed"
	}
	switch {
	case errors.Is(e.Cause, errs.ErrAuthenticationRequired):
		return "You must be signed in to " + what + "."
	case errors.Is(e.Cause, errs.ErrPersistenceFailed):
		return "Could not save the lesson, so it was not possible to " + what + "."
	case errors.Is(e.Cause, errs.ErrDerivedOperationFailed):
		return "Saved, but " + follow + ". Try again."
	case errors.Is(e.Cause, errs.ErrActionInFlight):
		return "Please wait, the previous request to " + what + " is still running."
	}
	return "Something went wrong."
}

// Orchestrator sequences persist before each derived operation.
type Orchestrator struct {
	persister Persister
	remote    Remote
	log       *zap.Logger
	signedIn  func() bool
	observer  func(Transition)

	mu       sync.Mutex
	states   map[Kind]State
	inFlight map[Kind]bool
}

// Option tunes Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers fn to receive every transition. fn runs on the action goroutine.
func WithObserver(fn func(Transition)) Option { return func(o *Orchestrator) { o.observer = fn } }

// WithSignedIn makes actions fail fast with errs.ErrAuthenticationRequired while fn reports false.
func WithSignedIn(fn func() bool) Option { return func(o *Orchestrator) { o.signedIn = fn } }

// New constructs an Orchestrator. log may be nil.
func New(p Persister, r Remote, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		persister: p, remote: r, log: log,
		states: map[Kind]State{}, inFlight: map[Kind]bool{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the state of the last action of kind.
func (o *Orchestrator) State(kind Kind) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[kind]; ok {
		return s
	}
	return Idle
}

// Busy reports whether an action of kind is running.
func (o *Orchestrator) Busy(kind Kind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[kind]
}

// Export persists the draft, then exports the plan by the id that persist returned.
func (o *Orchestrator) Export(ctx context.Context, store *draft.Store, format model.ExportFormat) (model.Document, error) {
	var doc model.Document
	err := o.run(ctx, KindExport, store, func(ctx context.Context, planID uuid.UUID) error {
		var err error
		doc, err = o.remote.ExportPlan(ctx, planID, format)
		return err
	})
	if err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// SaveToClass persists the draft, then links the plan to classID.
func (o *Orchestrator) SaveToClass(ctx context.Context, store *draft.Store, classID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := o.run(ctx, KindLink, store, func(ctx context.Context, planID uuid.UUID) error {
		id = planID
		return o.remote.LinkPlanToClass(ctx, planID, classID)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (o *Orchestrator) run(ctx context.Context, kind Kind, store *draft.Store, derived func(context.Context, uuid.UUID) error) error {
	o.mu.Lock()
	if o.inFlight[kind] {
		o.mu.Unlock()
		o.log.Debug("action rejected", zap.String("kind", string(kind)))
		return &ActionError{Kind: kind, Cause: errs.ErrActionInFlight}
	}
	o.inFlight[kind] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight[kind] = false
		o.mu.Unlock()
	}()

	if o.signedIn != nil && !o.signedIn() {
		return &ActionError{Kind: kind, Cause: errs.ErrAuthenticationRequired}
	}

	// once issued, persist and the derived call run to completion
	ctx = context.WithoutCancel(ctx)

	o.transition(kind, Persisting, nil)
	saved, err := o.persister.Persist(ctx, store)
	if err != nil {
		o.transition(kind, PersistFailed, err)
		cause := errs.ErrPersistenceFailed
		if errors.Is(err, errs.ErrUnauthorized) {
			cause = errs.ErrAuthenticationRequired
		}
		o.log.Warn("persist failed", zap.String("kind", string(kind)), zap.Error(err))
		return &ActionError{Kind: kind, Cause: cause, Err: err}
	}
	o.transition(kind, Persisted, nil)

	o.transition(kind, DerivedRunning, nil)
	if err := derived(ctx, saved.ID); err != nil {
		o.transition(kind, DerivedFailed, err)
		o.log.Warn("derived operation failed", zap.String("kind", string(kind)),
			zap.String("plan_id", saved.ID.String()), zap.Error(err))
		return &ActionError{Kind: kind, Cause: errs.ErrDerivedOperationFailed, Err: err}
	}
	o.transition(kind, DerivedSucceeded, nil)
	return nil
}

func (o *Orchestrator) transition(kind Kind, to State, err error) {
	o.mu.Lock()
	from, ok := o.states[kind]
	if !ok {
		from = Idle
	}
	o.states[kind] = to
	o.mu.Unlock()

	if o.observer != nil {
		o.observer(Transition{Kind: kind, From: from, To: to, Err: err})
	}
}
