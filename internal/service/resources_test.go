package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
)

type fakeResources struct {
	byID    map[uuid.UUID]model.Resource
	calls   atomic.Int32
	asked   [][]uuid.UUID
	mu      sync.Mutex
	gate    chan struct{}
	err     error
	ctxErrs []error
}

var _ repository.ResourceRepository = (*fakeResources)(nil)

func (f *fakeResources) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Resource, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.asked = append(f.asked, append([]uuid.UUID(nil), ids...))
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Resource
	for _, id := range ids {
		if r, ok := f.byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResources) Create(_ context.Context, r *model.Resource) error {
	if f.byID == nil {
		f.byID = map[uuid.UUID]model.Resource{}
	}
	f.byID[r.ID] = *r
	return nil
}

type memCache struct {
	m      map[uuid.UUID]model.Resource
	getErr error
	puts   int
}

func (c *memCache) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Resource, []uuid.UUID, error) {
	if c.getErr != nil {
		return nil, nil, c.getErr
	}
	hit := map[uuid.UUID]model.Resource{}
	var miss []uuid.UUID
	for _, id := range ids {
		if r, ok := c.m[id]; ok {
			hit[id] = r
		} else {
			miss = append(miss, id)
		}
	}
	return hit, miss, nil
}

func (c *memCache) PutMany(_ context.Context, rs []model.Resource) {
	c.puts++
	if c.m == nil {
		c.m = map[uuid.UUID]model.Resource{}
	}
	for _, r := range rs {
		c.m[r.ID] = r
	}
}

func TestResources_Lookup_FiltersAndOrders(t *testing.T) {
	t.Parallel()

	me, other := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	pub := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: other, Public: true, Title: "Worksheet"}
	mine := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: me, Title: "Slides"}
	hidden := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: other, Title: "Private"}
	unknown := uuid.Must(uuid.NewV4())
	repo := &fakeResources{byID: map[uuid.UUID]model.Resource{pub.ID: pub, mine.ID: mine, hidden.ID: hidden}}
	s := NewResourceService(repo, nil, 10, zaptest.NewLogger(t))

	got, err := s.Lookup(context.Background(), me, []uuid.UUID{mine.ID, unknown, hidden.ID, pub.ID, mine.ID})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 2 || got[0].ID != mine.ID || got[1].ID != pub.ID {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(repo.asked) != 1 || len(repo.asked[0]) != 4 {
		t.Fatalf("expected one deduplicated repo call, got %v", repo.asked)
	}
}

func TestResources_Lookup_Validation(t *testing.T) {
	t.Parallel()

	s := NewResourceService(&fakeResources{}, nil, 2, zaptest.NewLogger(t))
	me := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	if _, err := s.Lookup(ctx, uuid.Nil, nil); err == nil {
		t.Fatalf("want validation error on nil user")
	}
	if _, err := s.Lookup(ctx, me, []uuid.UUID{uuid.Nil}); err == nil {
		t.Fatalf("want validation error on nil id")
	}
	big := []uuid.UUID{uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())}
	if _, err := s.Lookup(ctx, me, big); err == nil {
		t.Fatalf("want validation error on oversized lookup")
	}
	got, err := s.Lookup(ctx, me, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty lookup: %v %v", got, err)
	}
}

func TestResources_Lookup_ReadThroughCache(t *testing.T) {
	t.Parallel()

	me := uuid.Must(uuid.NewV4())
	a := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: me, Title: "A"}
	b := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: me, Title: "B"}
	repo := &fakeResources{byID: map[uuid.UUID]model.Resource{a.ID: a, b.ID: b}}
	cache := &memCache{m: map[uuid.UUID]model.Resource{a.ID: a}}
	s := NewResourceService(repo, cache, 0, zaptest.NewLogger(t))

	got, err := s.Lookup(context.Background(), me, []uuid.UUID{a.ID, b.ID})
	if err != nil || len(got) != 2 {
		t.Fatalf("Lookup: %v %v", got, err)
	}
	if len(repo.asked) != 1 || len(repo.asked[0]) != 1 || repo.asked[0][0] != b.ID {
		t.Fatalf("repo should only see the cache miss, got %v", repo.asked)
	}
	if _, ok := cache.m[b.ID]; !ok {
		t.Fatalf("miss not written back to cache")
	}

	if _, err := s.Lookup(context.Background(), me, []uuid.UUID{a.ID, b.ID}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if repo.calls.Load() != 1 {
		t.Fatalf("second lookup must be served from cache, repo calls=%d", repo.calls.Load())
	}

	cache.getErr = errors.New("redis down")
	if _, err := s.Lookup(context.Background(), me, []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("cache failure must fall back to repo: %v", err)
	}
	if repo.calls.Load() != 2 {
		t.Fatalf("expected repo fallback, calls=%d", repo.calls.Load())
	}
}

func TestResources_Lookup_CollapsesConcurrentIdenticalSets(t *testing.T) {
	t.Parallel()

	me := uuid.Must(uuid.NewV4())
	a := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: me}
	b := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: me}
	repo := &fakeResources{byID: map[uuid.UUID]model.Resource{a.ID: a, b.ID: b}, gate: make(chan struct{})}
	s := NewResourceService(repo, nil, 0, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i, ids := range [][]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
		wg.Add(1)
		go func(i int, ids []uuid.UUID) {
			defer wg.Done()
			got, err := s.Lookup(context.Background(), me, ids)
			if err == nil {
				results[i] = len(got)
			}
		}(i, ids)
	}
	// let both callers join the flight before releasing the repo
	deadline := time.Now().Add(time.Second)
	for repo.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	if results[0] != 2 || results[1] != 2 {
		t.Fatalf("unexpected results: %v", results)
	}
	if repo.calls.Load() > 2 {
		t.Fatalf("too many repo calls: %d", repo.calls.Load())
	}
}

func TestResources_Lookup_SharedFlightSurvivesLeaderCancel(t *testing.T) {
	t.Parallel()

	me := uuid.Must(uuid.NewV4())
	a := model.Resource{ID: uuid.Must(uuid.NewV4()), OwnerID: me}
	repo := &fakeResources{byID: map[uuid.UUID]model.Resource{a.ID: a}, gate: make(chan struct{})}
	s := NewResourceService(repo, nil, 0, zaptest.NewLogger(t))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := s.Lookup(leaderCtx, me, []uuid.UUID{a.ID})
		leaderDone <- err
	}()
	deadline := time.Now().Add(time.Second)
	for repo.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	followerDone := make(chan []model.Resource, 1)
	go func() {
		got, err := s.Lookup(context.Background(), me, []uuid.UUID{a.ID})
		if err != nil {
			t.Errorf("follower lookup: %v", err)
		}
		followerDone <- got
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(repo.gate)

	if err := <-leaderDone; err != nil {
		t.Fatalf("leader lookup: %v", err)
	}
	if got := <-followerDone; len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("follower got %v", got)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, err := range repo.ctxErrs {
		if err != nil {
			t.Fatalf("repo saw cancelled context: %v", err)
		}
	}
}

func TestResources_Create(t *testing.T) {
	t.Parallel()

	repo := &fakeResources{}
	s := NewResourceService(repo, nil, 0, zaptest.NewLogger(t))
	me := uuid.Must(uuid.NewV4())

	if _, err := s.Create(context.Background(), me, model.Resource{Title: " "}); err == nil {
		t.Fatalf("want validation error on blank title")
	}
	r, err := s.Create(context.Background(), me, model.Resource{Title: " Map ", OwnerID: uuid.Must(uuid.NewV4())})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.OwnerID != me || r.Title != "Map" || r.ID == uuid.Nil {
		t.Fatalf("unexpected resource: %+v", r)
	}
}
