// Package draft holds the locally edited lesson plan.
// All operations are synchronous and total; they never touch the network.
package draft

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/lesson-planner/internal/model"
)

// Field names a plan-level field settable with SetField.
type Field string

const (
	FieldTitle        Field = "title"
	FieldDate         Field = "date"
	FieldDuration     Field = "duration"
	FieldGrouping     Field = "grouping"
	FieldDeliveryMode Field = "delivery_mode"
	FieldLogoURL      Field = "logo_url"
)

// Fields lists every settable plan-level field.
var Fields = []Field{FieldTitle, FieldDate, FieldDuration, FieldGrouping, FieldDeliveryMode, FieldLogoURL}

// Step is one lesson step. Position is its index in Draft.Steps.
type Step struct {
	LocalID     string      `yaml:"local_id"`
	RemoteID    uuid.UUID   `yaml:"remote_id,omitempty"` // uuid.Nil until the first save
	Title       string      `yaml:"title"`
	Notes       *string     `yaml:"notes,omitempty"`
	ResourceIDs []uuid.UUID `yaml:"resource_ids,omitempty"`
}

// Draft is a point-in-time copy of the store.
type Draft struct {
	RemoteID     uuid.UUID   `yaml:"remote_id,omitempty"`
	Title        string      `yaml:"title"`
	Date         *model.Date `yaml:"date,omitempty"`
	Duration     *string     `yaml:"duration,omitempty"`
	Grouping     *string     `yaml:"grouping,omitempty"`
	DeliveryMode *string     `yaml:"delivery_mode,omitempty"`
	LogoURL      *string     `yaml:"logo_url,omitempty"`
	Steps        []Step      `yaml:"steps"`
	// Revision counts mutations; a snapshot remembers the revision it was taken at.
	Revision uint64 `yaml:"revision"`
	// SavedRevision is the revision last reconciled with the server.
	SavedRevision uint64 `yaml:"saved_revision"`
}

// DefaultStepTitle is the title of a step with a blank title at index i.
func DefaultStepTitle(i int) string { return fmt.Sprintf("Step %d", i+1) }

// Store is the single source of truth for one editing session.
// Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	d         Draft
	discarded bool
	newID     func() string
}

// New returns an empty store.
func New() *Store {
	return &Store{newID: func() string { return uuid.Must(uuid.NewV4()).String() }}
}

// Restore returns a store holding a copy of d, e.g. one loaded from disk.
func Restore(d Draft) *Store {
	s := New()
	s.d = d.clone()
	for i := range s.d.Steps {
		if s.d.Steps[i].LocalID == "" {
			s.d.Steps[i].LocalID = s.newID()
		}
	}
	return s
}

// mutate applies fn under the lock and bumps the revision when fn reports a change.
func (s *Store) mutate(fn func(d *Draft) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	if fn(&s.d) {
		s.d.Revision++
	}
}

func (d *Draft) index(localID string) int {
	for i := range d.Steps {
		if d.Steps[i].LocalID == localID {
			return i
		}
	}
	return -1
}

// AddStep appends a step with a fresh local id and default title.
func (s *Store) AddStep() string {
	var id string
	s.mutate(func(d *Draft) bool {
		id = s.newID()
		d.Steps = append(d.Steps, Step{LocalID: id, Title: DefaultStepTitle(len(d.Steps))})
		return true
	})
	return id
}

// RemoveStep drops the step. The server copy keeps it until a save says otherwise.
func (s *Store) RemoveStep(localID string) {
	s.mutate(func(d *Draft) bool {
		i := d.index(localID)
		if i < 0 {
			return false
		}
		d.Steps = append(d.Steps[:i], d.Steps[i+1:]...)
		return true
	})
}

// RenameStep sets the title as typed; blanks stay blank until BlurStepTitle.
func (s *Store) RenameStep(localID, title string) {
	s.mutate(func(d *Draft) bool {
		i := d.index(localID)
		if i < 0 || d.Steps[i].Title == title {
			return false
		}
		d.Steps[i].Title = title
		return true
	})
}

// BlurStepTitle applies the "Step {n}" default to a blank title.
func (s *Store) BlurStepTitle(localID string) {
	s.mutate(func(d *Draft) bool {
		i := d.index(localID)
		if i < 0 || strings.TrimSpace(d.Steps[i].Title) != "" {
			return false
		}
		d.Steps[i].Title = DefaultStepTitle(i)
		return true
	})
}

// SetStepNotes sets notes; blank notes become absent.
func (s *Store) SetStepNotes(localID, notes string) {
	s.mutate(func(d *Draft) bool {
		i := d.index(localID)
		if i < 0 {
			return false
		}
		d.Steps[i].Notes = optional(notes)
		return true
	})
}

// SetStepResourceIDs replaces the step references, dropping repeats and uuid.Nil.
func (s *Store) SetStepResourceIDs(localID string, ids []uuid.UUID) {
	s.mutate(func(d *Draft) bool {
		i := d.index(localID)
		if i < 0 {
			return false
		}
		d.Steps[i].ResourceIDs = dedupe(ids)
		return true
	})
}

// MoveStep moves the step to index, clamped to the valid range.
func (s *Store) MoveStep(localID string, index int) {
	s.mutate(func(d *Draft) bool {
		from := d.index(localID)
		if from < 0 {
			return false
		}
		index = max(0, min(index, len(d.Steps)-1))
		if from == index {
			return false
		}
		st := d.Steps[from]
		d.Steps = append(d.Steps[:from], d.Steps[from+1:]...)
		d.Steps = append(d.Steps[:index], append([]Step{st}, d.Steps[index:]...)...)
		return true
	})
}

// SetField sets a plan-level field. Unknown fields are ignored; blank optional
// values and unparsable dates become absent.
func (s *Store) SetField(f Field, value string) {
	s.mutate(func(d *Draft) bool {
		switch f {
		case FieldTitle:
			d.Title = strings.TrimSpace(value)
		case FieldDate:
			d.Date = nil
			if dt, err := model.ParseDate(value); err == nil {
				d.Date = &dt
			}
		case FieldDuration:
			d.Duration = optional(value)
		case FieldGrouping:
			d.Grouping = optional(value)
		case FieldDeliveryMode:
			d.DeliveryMode = optional(value)
		case FieldLogoURL:
			d.LogoURL = optional(value)
		default:
			return false
		}
		return true
	})
}

// Snapshot returns a deep copy of the current draft.
func (s *Store) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.clone()
}

// ReferencedResourceIDs returns the ordered union of step references.
func (s *Store) ReferencedResourceIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []uuid.UUID
	for _, st := range s.d.Steps {
		all = append(all, st.ResourceIDs...)
	}
	return dedupe(all)
}

// Reconcile writes server ids from saved into the store. saved.StepIDs[i]
// belongs to snap.Steps[i]; steps removed since snap was taken are skipped.
// It reports false when the store was discarded or the response does not fit snap.
func (s *Store) Reconcile(snap Draft, saved model.SavedPlan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || len(saved.StepIDs) != len(snap.Steps) {
		return false
	}
	s.d.RemoteID = saved.ID
	for i, st := range snap.Steps {
		if j := s.d.index(st.LocalID); j >= 0 {
			s.d.Steps[j].RemoteID = saved.StepIDs[i]
		}
	}
	s.d.SavedRevision = snap.Revision
	return true
}

// Hydrate replaces the draft with a fetched plan.
func (s *Store) Hydrate(p model.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	d := Draft{
		RemoteID:     p.ID,
		Title:        p.Title,
		Date:         p.Date,
		Duration:     p.Duration,
		Grouping:     p.Grouping,
		DeliveryMode: p.DeliveryMode,
		LogoURL:      p.LogoURL,
		Revision:     s.d.Revision + 1,
	}
	for _, st := range p.Steps {
		d.Steps = append(d.Steps, Step{
			LocalID:     s.newID(),
			RemoteID:    st.ID,
			Title:       st.Title,
			Notes:       st.Notes,
			ResourceIDs: dedupe(st.ResourceIDs),
		})
	}
	d.SavedRevision = d.Revision
	s.d = d.clone()
}

// Dirty reports edits made since the last reconcile or hydrate.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Revision != s.d.SavedRevision
}

// Discard tears the store down; later mutations and reconciliations are dropped.
func (s *Store) Discard() {
	s.mu.Lock()
	s.discarded = true
	s.mu.Unlock()
}

// Discarded reports whether Discard was called.
func (s *Store) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

func (d Draft) clone() Draft {
	c := d
	c.Date = clonePtr(d.Date)
	c.Duration = clonePtr(d.Duration)
	c.Grouping = clonePtr(d.Grouping)
	c.DeliveryMode = clonePtr(d.DeliveryMode)
	c.LogoURL = clonePtr(d.LogoURL)
	c.Steps = make([]Step, len(d.Steps))
	for i, st := range d.Steps {
		st.Notes = clonePtr(st.Notes)
		st.ResourceIDs = append([]uuid.UUID(nil), st.ResourceIDs...)
		c.Steps[i] = st
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
