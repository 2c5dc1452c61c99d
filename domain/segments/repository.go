// Package segments maps courses to nearby road-catalog segments and
// provides the bulk-write strategies used to persist and benchmark the
// resulting associations.
package segments

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
)

// Repository handles database operations for course/segment mappings.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new mapping repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("segments.repo")),
	}
}

// ExistingSegmentIDs returns the set of segment ids already mapped to
// the course.
func (r *Repository) ExistingSegmentIDs(ctx context.Context, courseID uuid.UUID) (map[int64]struct{}, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*CourseSegmentMapping)(nil)).
		Column("segment_id").
		Where("course_id = ?", courseID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	existing := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// CountByCourse returns the number of mappings for a course.
func (r *Repository) CountByCourse(ctx context.Context, courseID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().
		Model((*CourseSegmentMapping)(nil)).
		Where("course_id = ?", courseID).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// DeleteByCourse removes every mapping of a course. Benchmark runs use
// it as the cleanup hook between measured iterations.
func (r *Repository) DeleteByCourse(ctx context.Context, courseID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*CourseSegmentMapping)(nil)).
		Where("course_id = ?", courseID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
