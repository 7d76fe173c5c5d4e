package postgres

import (
	"context"

	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ClassRepo implements ClassRepository using PostgreSQL.
type ClassRepo struct{ db *DB }

// NewClassRepo constructs a class repository.
func NewClassRepo(db *DB) *ClassRepo { return &ClassRepo{db: db} }

// Create inserts a class row.
func (r *ClassRepo) Create(ctx context.Context, c *model.Class) error {
	const q = `INSERT INTO classes (id, user_id, name) VALUES ($1,$2,$3) RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, c.ID, c.UserID, c.Name).Scan(&c.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// LinkPlan records the class/plan link after checking both are owned by userID.
func (r *ClassRepo) LinkPlan(ctx context.Context, userID, planID, classID uuid.UUID) error {
	const own = `
SELECT EXISTS (SELECT 1 FROM classes WHERE id=$1 AND user_id=$3)
   AND EXISTS (SELECT 1 FROM plans WHERE id=$2 AND user_id=$3)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, own, classID, planID, userID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return errs.ErrNotFound
	}
	const ins = `INSERT INTO class_plans (class_id, plan_id) VALUES ($1,$2) ON CONFLICT (class_id, plan_id) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, ins, classID, planID)
	return err
}
