package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/repository"
)

// ClassService defines class operations.
type ClassService interface {
	// Create adds a class owned by userID.
	Create(ctx context.Context, userID uuid.UUID, name string) (model.Class, error)
}

type ClassServiceImpl struct{ repo repository.ClassRepository }

// NewClassService constructs ClassService.
func NewClassService(repo repository.ClassRepository) *ClassServiceImpl {
	return &ClassServiceImpl{repo: repo}
}

// Create validates the name and stores the class.
func (s *ClassServiceImpl) Create(ctx context.Context, userID uuid.UUID, name string) (model.Class, error) {
	name = strings.TrimSpace(name)
	if userID == uuid.Nil || name == "" {
		return model.Class{}, errors.New("validation: empty userID/name")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Class{}, err
	}
	c := model.Class{ID: id, UserID: userID, Name: name}
	if err := s.repo.Create(ctx, &c); err != nil {
		return model.Class{}, err
	}
	return c, nil
}
