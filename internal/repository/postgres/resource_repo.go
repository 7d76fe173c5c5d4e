package postgres

import (
	"context"

	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ResourceRepo implements ResourceRepository using PostgreSQL.
type ResourceRepo struct{ db *DB }

// NewResourceRepo constructs a resource repository.
func NewResourceRepo(db *DB) *ResourceRepo { return &ResourceRepo{db: db} }

// GetByIDs returns the resources that exist among ids, in no particular order.
func (r *ResourceRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `
SELECT id, owner_id, public, title, description, thumbnail_url, type, subject, stage, tags
FROM resources WHERE id = ANY($1::uuid[])`
	rows, err := r.db.Pool.Query(ctx, q, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		var res model.Resource
		if err = rows.Scan(&res.ID, &res.OwnerID, &res.Public, &res.Title, &res.Description,
			&res.ThumbnailURL, &res.Type, &res.Subject, &res.Stage, &res.Tags); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Create inserts a resource row.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `
INSERT INTO resources (id, owner_id, public, title, description, thumbnail_url, type, subject, stage, tags)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.db.Pool.Exec(ctx, q, res.ID, res.OwnerID, res.Public, res.Title, res.Description,
		res.ThumbnailURL, res.Type, res.Subject, res.Stage, tags)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}
