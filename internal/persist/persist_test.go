package persist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/lesson-planner/internal/draft"
	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
)

// memRemote upserts into memory and counts inserted rows.
type memRemote struct {
	plans       map[uuid.UUID]bool
	steps       map[uuid.UUID]bool
	planInserts int
	stepInserts int
	writes      []model.PlanWrite
	err         error
	override    func(model.SavedPlan) model.SavedPlan
	entered     chan struct{} // receives once per call when set
	gate        chan struct{} // blocks each call until closed when set
}

func newMem() *memRemote {
	return &memRemote{plans: map[uuid.UUID]bool{}, steps: map[uuid.UUID]bool{}}
}

func (m *memRemote) SavePlan(_ context.Context, w model.PlanWrite) (model.SavedPlan, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.writes = append(m.writes, w)
	if m.err != nil {
		return model.SavedPlan{}, m.err
	}
	out := model.SavedPlan{ID: w.ID}
	if out.ID == uuid.Nil {
		out.ID = uuid.Must(uuid.NewV4())
		m.planInserts++
	} else if !m.plans[out.ID] {
		return model.SavedPlan{}, fmt.Errorf("plan %s: %w", out.ID, errs.ErrNotFound)
	}
	m.plans[out.ID] = true
	for _, st := range w.Steps {
		id := st.ID
		if id == uuid.Nil {
			id = uuid.Must(uuid.NewV4())
			m.stepInserts++
		}
		m.steps[id] = true
		out.StepIDs = append(out.StepIDs, id)
	}
	if m.override != nil {
		out = m.override(out)
	}
	return out, nil
}

func threeSteps() (*draft.Store, [3]string) {
	s := draft.New()
	var ids [3]string
	for i, title := range []string{"A", "B", "C"} {
		ids[i] = s.AddStep()
		s.RenameStep(ids[i], title)
	}
	return s, ids
}

func TestSerialize_PositionsAndDefaults(t *testing.T) {
	t.Parallel()

	s, ids := threeSteps()
	s.RenameStep(ids[1], " ")
	s.MoveStep(ids[2], 0)

	w := Serialize(s.Snapshot())
	require.Equal(t, uuid.Nil, w.ID)
	require.Len(t, w.Steps, 3)
	require.Equal(t, "C", w.Steps[0].Title)
	require.Equal(t, "A", w.Steps[1].Title)
	require.Equal(t, "Step 3", w.Steps[2].Title)
	for i, st := range w.Steps {
		require.Equal(t, i, st.Position)
		require.Equal(t, uuid.Nil, st.ID)
	}
}

func TestPersist_PositionReconciliation(t *testing.T) {
	t.Parallel()

	s, ids := threeSteps()
	remote := newMem()
	a := New(remote, zaptest.NewLogger(t))

	saved, err := a.Persist(context.Background(), s)
	require.NoError(t, err)

	d := s.Snapshot()
	require.Equal(t, saved.ID, d.RemoteID)
	for i := range ids {
		require.Equal(t, ids[i], d.Steps[i].LocalID)
		require.Equal(t, saved.StepIDs[i], d.Steps[i].RemoteID)
	}
	require.False(t, s.Dirty())
}

func TestPersist_IdempotentResave(t *testing.T) {
	t.Parallel()

	s, _ := threeSteps()
	remote := newMem()
	a := New(remote, zaptest.NewLogger(t))

	first, err := a.Persist(context.Background(), s)
	require.NoError(t, err)
	second, err := a.Persist(context.Background(), s)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.StepIDs, second.StepIDs)
	require.Equal(t, 1, remote.planInserts)
	require.Equal(t, 3, remote.stepInserts)
	require.Len(t, remote.plans, 1)
	require.Len(t, remote.steps, 3)

	for _, st := range remote.writes[1].Steps {
		require.NotEqual(t, uuid.Nil, st.ID, "second save carries every remote id")
	}
}

func TestPersist_ReorderBeforeSave(t *testing.T) {
	t.Parallel()

	s, ids := threeSteps()
	remote := newMem()
	a := New(remote, zaptest.NewLogger(t))
	_, err := a.Persist(context.Background(), s)
	require.NoError(t, err)
	before := s.Snapshot()

	s.MoveStep(ids[2], 0)
	_, err = a.Persist(context.Background(), s)
	require.NoError(t, err)

	w := remote.writes[1]
	require.Equal(t, []string{"C", "A", "B"}, []string{w.Steps[0].Title, w.Steps[1].Title, w.Steps[2].Title})
	require.Equal(t, before.Steps[2].RemoteID, w.Steps[0].ID)
	require.Equal(t, before.Steps[0].RemoteID, w.Steps[1].ID)
	for i, st := range w.Steps {
		require.Equal(t, i, st.Position)
	}
	require.Equal(t, 3, remote.stepInserts)
}

func TestPersist_FailureReconcilesNothing(t *testing.T) {
	t.Parallel()

	s, _ := threeSteps()
	remote := newMem()
	remote.err = fmt.Errorf("http 401: %w", errs.ErrUnauthorized)
	a := New(remote, zaptest.NewLogger(t))

	_, err := a.Persist(context.Background(), s)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	d := s.Snapshot()
	require.Equal(t, uuid.Nil, d.RemoteID)
	for _, st := range d.Steps {
		require.Equal(t, uuid.Nil, st.RemoteID)
	}
	require.True(t, s.Dirty())
}

func TestPersist_RejectsMismatchedResponse(t *testing.T) {
	t.Parallel()

	cases := map[string]func(model.SavedPlan) model.SavedPlan{
		"short":    func(sp model.SavedPlan) model.SavedPlan { sp.StepIDs = sp.StepIDs[:2]; return sp },
		"nil plan": func(sp model.SavedPlan) model.SavedPlan { sp.ID = uuid.Nil; return sp },
		"nil step": func(sp model.SavedPlan) model.SavedPlan { sp.StepIDs[1] = uuid.Nil; return sp },
	}
	for name, override := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, _ := threeSteps()
			remote := newMem()
			remote.override = override
			_, err := New(remote, zaptest.NewLogger(t)).Persist(context.Background(), s)
			require.True(t, errors.Is(err, ErrBadResponse), "got %v", err)
			require.Equal(t, uuid.Nil, s.Snapshot().RemoteID)
		})
	}
}

func TestPersist_DiscardedStoreDropsResult(t *testing.T) {
	t.Parallel()

	s, _ := threeSteps()
	remote := newMem()
	remote.override = func(sp model.SavedPlan) model.SavedPlan {
		s.Discard()
		return sp
	}
	saved, err := New(remote, zaptest.NewLogger(t)).Persist(context.Background(), s)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, saved.ID)
	require.Equal(t, uuid.Nil, s.Snapshot().RemoteID)
}

func TestPersist_OverlappingSavesInsertOnce(t *testing.T) {
	t.Parallel()

	s, _ := threeSteps()
	remote := newMem()
	remote.entered = make(chan struct{}, 2)
	remote.gate = make(chan struct{})
	a := New(remote, zaptest.NewLogger(t))

	results := make(chan model.SavedPlan, 2)
	for range 2 {
		go func() {
			saved, err := a.Persist(context.Background(), s)
			if err != nil {
				t.Errorf("persist: %v", err)
			}
			results <- saved
		}()
	}
	<-remote.entered
	select {
	case <-remote.entered:
		t.Fatal("second save reached the server before the first reconciled")
	case <-time.After(50 * time.Millisecond):
	}
	close(remote.gate)

	first, second := <-results, <-results
	<-remote.entered
	require.Equal(t, 1, remote.planInserts)
	require.Equal(t, 3, remote.stepInserts)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.StepIDs, second.StepIDs)
	require.Len(t, remote.writes, 2)
	require.Equal(t, first.ID, remote.writes[1].ID, "second write carries the reconciled plan id")
	require.False(t, s.Dirty())
}
