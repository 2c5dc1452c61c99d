// Package courses provides read access to the course catalog entity.
package courses

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
)

// Repository handles database reads for courses.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new course repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("courses.repo")),
	}
}

// GetByID fetches a single course. The path geometry is returned as WKT.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Course, error) {
	course := new(Course)
	err := r.db.NewSelect().
		Model(course).
		Column("id", "name", "created_at", "updated_at").
		ColumnExpr("ST_AsText(path) AS path").
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("course", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return course, nil
}

// Exists reports whether a course id is present in the catalog.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Course)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}
