package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/experience-booking/internal/model"
)

// ExperienceRepo provides CRUD operations for guide-owned experiences.
type ExperienceRepo struct {
	db *sql.DB
}

// NewExperienceRepo returns a new ExperienceRepo bound to the given database.
func NewExperienceRepo(db *sql.DB) *ExperienceRepo { return &ExperienceRepo{db: db} }

const experienceColumns = `id, guide_id, title, description, location, is_active, created_at, updated_at`

func scanExperience(row rowScanner) (model.Experience, error) {
	var (
		e       model.Experience
		id, gid string
	)
	err := row.Scan(&id, &gid, &e.Title, &e.Description, &e.Location,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Experience{}, err
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return model.Experience{}, err
	}
	if e.GuideID, err = uuid.Parse(gid); err != nil {
		return model.Experience{}, err
	}
	return e, nil
}

// Create inserts a new experience owned by the given guide.
func (r *ExperienceRepo) Create(ctx context.Context, e *model.Experience) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	const q = `INSERT INTO experiences (id, guide_id, title, description, location, is_active)
	           VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.ID.String(), e.GuideID.String(),
		e.Title, e.Description, e.Location, e.IsActive)
	if err != nil {
		return translateDBError(err)
	}
	const sel = `SELECT ` + experienceColumns + ` FROM experiences WHERE id = ?`
	got, err := scanExperience(r.db.QueryRowContext(ctx, sel, e.ID.String()))
	if err != nil {
		return err
	}
	*e = got
	return nil
}

// GetByID fetches a single experience.
func (r *ExperienceRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Experience, error) {
	const q = `SELECT ` + experienceColumns + ` FROM experiences WHERE id = ?`
	e, err := scanExperience(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Experience{}, ErrExperienceNotFound
	}
	return e, err
}

// List returns experiences, optionally restricted to active ones.
// Ordering is newest first, matching the public browse surface.
func (r *ExperienceRepo) List(ctx context.Context, activeOnly bool) ([]model.Experience, error) {
	q := `SELECT ` + experienceColumns + ` FROM experiences`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Experience, 0)
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByGuide returns all experiences owned by the guide.
func (r *ExperienceRepo) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]model.Experience, error) {
	const q = `SELECT ` + experienceColumns + ` FROM experiences WHERE guide_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, guideID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Experience, 0)
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields of an experience.  Ownership is
// checked by the caller before invoking this.
func (r *ExperienceRepo) Update(ctx context.Context, e *model.Experience) error {
	const q = `UPDATE experiences SET title = ?, description = ?, location = ?, is_active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Location, e.IsActive, e.ID.String())
	if err != nil {
		return translateDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExperienceNotFound
	}
	return nil
}

// Delete removes an experience.  Slots reference experiences with
// RESTRICT, so an experience with existing slots fails with
// ErrConflict; deactivate instead.
func (r *ExperienceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM experiences WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return translateDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExperienceNotFound
	}
	return nil
}
