// Package resolve turns resource ids referenced by a draft into resource records for preview.
package resolve

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/model"
)

// State of a resolution entry.
type State int

const (
	Pending State = iota
	Resolved
	Missing
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Missing:
		return "missing"
	}
	return "unknown"
}

// Entry is the resolution state of one resource id. Resource is set only when Resolved.
type Entry struct {
	State    State
	Resource model.Resource
}

// Lookup returns the existing, accessible subset of ids. Absent ids are not an error.
type Lookup interface {
	GetResourcesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Resource, error)
}

type entry struct {
	Entry
	gen uint64 // request that owns a Pending entry
}

// Cache resolves each referenced id at most once concurrently and prunes ids no longer referenced.
// A response is applied only to entries that still exist, are still Pending and
// belong to that response's request; everything else is dropped.
type Cache struct {
	lookup   Lookup
	log      *zap.Logger
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	gen     uint64
	closed  bool
}

// Option tunes Cache.
type Option func(*Cache)

// WithOnChange registers fn to run after a response has been applied.
func WithOnChange(fn func()) Option { return func(c *Cache) { c.onChange = fn } }

// New constructs a Cache. log may be nil.
func New(lookup Lookup, log *zap.Logger, opts ...Option) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{lookup: lookup, log: log, ctx: ctx, cancel: cancel, entries: map[uuid.UUID]*entry{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Refresh makes the cache track exactly ids: unreferenced entries are pruned
// and one batched lookup is started for ids without an entry.
func (c *Cache) Refresh(ids []uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for id := range c.entries {
		if _, ok := wanted[id]; !ok {
			delete(c.entries, id)
		}
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := c.entries[id]; ok || id == uuid.Nil {
			continue
		}
		missing = append(missing, id)
		c.entries[id] = &entry{}
	}
	if len(missing) == 0 {
		return
	}
	c.gen++
	gen := c.gen
	for _, id := range missing {
		c.entries[id].gen = gen
	}

	c.wg.Add(1)
	go c.fetch(gen, missing)
}

func (c *Cache) fetch(gen uint64, ids []uuid.UUID) {
	defer c.wg.Done()

	rs, err := c.lookup.GetResourcesByIDs(c.ctx, ids)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	found := make(map[uuid.UUID]model.Resource, len(rs))
	if err != nil {
		c.log.Warn("resource lookup failed", zap.Int("ids", len(ids)), zap.Uint64("gen", gen), zap.Error(err))
	} else {
		for _, r := range rs {
			found[r.ID] = r
		}
	}
	applied := 0
	for _, id := range ids {
		e, ok := c.entries[id]
		if !ok || e.State != Pending || e.gen != gen {
			continue
		}
		if r, ok := found[id]; ok {
			e.Entry = Entry{State: Resolved, Resource: r}
		} else {
			e.Entry = Entry{State: Missing}
		}
		applied++
	}
	c.mu.Unlock()

	c.log.Debug("resource lookup applied", zap.Uint64("gen", gen), zap.Int("requested", len(ids)), zap.Int("applied", applied))
	if applied > 0 && c.onChange != nil {
		c.onChange()
	}
}

// Get returns the entry for id.
func (c *Cache) Get(id uuid.UUID) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// Snapshot returns a copy of all entries.
func (c *Cache) Snapshot() map[uuid.UUID]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]Entry, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.Entry
	}
	return out
}

// Wait blocks until every started lookup has returned.
func (c *Cache) Wait() { c.wg.Wait() }

// Close cancels in-flight lookups; their late responses are dropped.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}
