package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/repository"
)

// ResourceService defines catalog operations.
type ResourceService interface {
	// Lookup returns the resources among ids visible to userID, in request order.
	// Unknown or inaccessible ids are silently dropped.
	Lookup(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]model.Resource, error)
	// Create adds a resource owned by userID.
	Create(ctx context.Context, userID uuid.UUID, r model.Resource) (model.Resource, error)
}

// ResourceCache is an optional read-through cache in front of the repository.
type ResourceCache interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Resource, []uuid.UUID, error)
	PutMany(ctx context.Context, rs []model.Resource)
}

type ResourceServiceImpl struct {
	repo      repository.ResourceRepository
	cache     ResourceCache
	maxLookup int
	log       *zap.Logger
	group     singleflight.Group
}

// NewResourceService constructs ResourceService. cache may be nil.
func NewResourceService(repo repository.ResourceRepository, cache ResourceCache, maxLookup int, log *zap.Logger) *ResourceServiceImpl {
	if maxLookup <= 0 {
		maxLookup = 200
	}
	return &ResourceServiceImpl{repo: repo, cache: cache, maxLookup: maxLookup, log: log}
}

// Lookup deduplicates ids, collapses identical concurrent lookups and filters by visibility.
func (s *ResourceServiceImpl) Lookup(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]model.Resource, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	ids, err := uniqueIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	if len(ids) == 0 {
		return []model.Resource{}, nil
	}
	if len(ids) > s.maxLookup {
		return nil, fmt.Errorf("validation: lookup too large (%d > %d)", len(ids), s.maxLookup)
	}

	// The flight is shared, so one caller going away must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(flightKey(ids), func() (any, error) {
		return s.fetch(shared, ids)
	})
	if err != nil {
		return nil, err
	}
	byID := v.(map[uuid.UUID]model.Resource)

	out := make([]model.Resource, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok && r.VisibleTo(userID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ResourceServiceImpl) fetch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Resource, error) {
	found := make(map[uuid.UUID]model.Resource, len(ids))
	miss := ids
	if s.cache != nil {
		hit, m, err := s.cache.GetMany(ctx, ids)
		if err != nil {
			s.log.Warn("resource cache unavailable", zap.Error(err))
			m = ids
		}
		for id, r := range hit {
			found[id] = r
		}
		miss = m
	}
	if len(miss) == 0 {
		return found, nil
	}
	rs, err := s.repo.GetByIDs(ctx, miss)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		found[r.ID] = r
	}
	if s.cache != nil {
		s.cache.PutMany(ctx, rs)
	}
	return found, nil
}

// flightKey is order-independent so permutations of one id set share a flight.
func flightKey(ids []uuid.UUID) string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	sort.Strings(ss)
	return strings.Join(ss, ",")
}

// Create validates and stores a new resource.
func (s *ResourceServiceImpl) Create(ctx context.Context, userID uuid.UUID, r model.Resource) (model.Resource, error) {
	if userID == uuid.Nil {
		return model.Resource{}, errors.New("validation: empty userID")
	}
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return model.Resource{}, errors.New("validation: empty title")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Resource{}, err
	}
	r.ID = id
	r.OwnerID = userID
	if err := s.repo.Create(ctx, &r); err != nil {
		return model.Resource{}, err
	}
	return r, nil
}
