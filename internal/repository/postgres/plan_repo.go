package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// PlanRepo implements PlanRepository using PostgreSQL.
type PlanRepo struct {
	db    *DB
	newID func() (uuid.UUID, error)
}

// NewPlanRepo constructs a plan repository.
func NewPlanRepo(db *DB) *PlanRepo { return &PlanRepo{db: db, newID: uuid.NewV4} }

const (
	insPlan = `
INSERT INTO plans (id, user_id, title, date, duration, grouping, delivery_mode, logo_url, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
RETURNING updated_at`
	updPlan = `
UPDATE plans SET title=$3, date=$4, duration=$5, grouping=$6, delivery_mode=$7, logo_url=$8, updated_at=now()
WHERE id=$1 AND user_id=$2
RETURNING updated_at`
	insStep = `INSERT INTO plan_steps (id, plan_id, position, title, notes, resource_ids) VALUES ($1,$2,$3,$4,$5,$6)`
	updStep = `UPDATE plan_steps SET position=$3, title=$4, notes=$5, resource_ids=$6 WHERE id=$1 AND plan_id=$2`
	delOmit = `DELETE FROM plan_steps WHERE plan_id=$1 AND NOT (id = ANY($2::uuid[]))`
)

// SavePlan upserts a plan and its steps in one transaction and returns the assigned ids.
func (r *PlanRepo) SavePlan(
	ctx context.Context, userID uuid.UUID, w model.PlanWrite, pruneOmitted bool,
) (saved model.SavedPlan, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		planID := w.ID
		args := func(id uuid.UUID) []any {
			return []any{id, userID, w.Title, dateArg(w.Date), w.Duration, w.Grouping, w.DeliveryMode, w.LogoURL}
		}
		if planID == uuid.Nil {
			id, err := r.newID()
			if err != nil {
				return err
			}
			planID = id
			if err := tx.QueryRow(ctx, insPlan, args(planID)...).Scan(&saved.UpdatedAt); err != nil {
				return err
			}
		} else {
			scanErr := tx.QueryRow(ctx, updPlan, args(planID)...).Scan(&saved.UpdatedAt)
			switch {
			case errors.Is(scanErr, pgx.ErrNoRows):
				return fmt.Errorf("plan %s: %w", planID, errs.ErrNotFound)
			case scanErr != nil:
				return scanErr
			}
		}

		stepIDs := make([]uuid.UUID, 0, len(w.Steps))
		for i, st := range w.Steps {
			res := uuidStrings(st.ResourceIDs)
			if st.ID == uuid.Nil {
				id, err := r.newID()
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, insStep, id, planID, st.Position, st.Title, st.Notes, res); err != nil {
					return fmt.Errorf("step[%d]: %w", i, err)
				}
				stepIDs = append(stepIDs, id)
				continue
			}
			tag, err := tx.Exec(ctx, updStep, st.ID, planID, st.Position, st.Title, st.Notes, res)
			if err != nil {
				return fmt.Errorf("step[%d]: %w", i, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("step[%d]: %w", i, errs.ErrNotFound)
			}
			stepIDs = append(stepIDs, st.ID)
		}

		if pruneOmitted {
			if _, err := tx.Exec(ctx, delOmit, planID, uuidStrings(stepIDs)); err != nil {
				return err
			}
		}
		saved.ID = planID
		saved.StepIDs = stepIDs
		return nil
	})
	if err != nil {
		return model.SavedPlan{}, err
	}
	return saved, nil
}

// GetPlan returns a plan owned by userID with steps ordered by position.
func (r *PlanRepo) GetPlan(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error) {
	const qp = `
SELECT id, user_id, title, date, duration, grouping, delivery_mode, logo_url, updated_at
FROM plans WHERE id=$1 AND user_id=$2`
	var (
		p    model.Plan
		date *string
	)
	err := r.db.Pool.QueryRow(ctx, qp, planID, userID).Scan(
		&p.ID, &p.UserID, &p.Title, &date, &p.Duration, &p.Grouping, &p.DeliveryMode, &p.LogoURL, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if date != nil {
		d := model.Date(*date)
		p.Date = &d
	}

	const qs = `
SELECT id, position, title, notes, resource_ids
FROM plan_steps WHERE plan_id=$1
ORDER BY position ASC`
	rows, err := r.db.Pool.Query(ctx, qs, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st  model.Step
			res []string
		)
		if err = rows.Scan(&st.ID, &st.Position, &st.Title, &st.Notes, &res); err != nil {
			return nil, err
		}
		st.PlanID = p.ID
		st.ResourceIDs = parseUUIDs(res)
		p.Steps = append(p.Steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func dateArg(d *model.Date) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}
