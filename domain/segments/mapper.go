package segments

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/courselab/course-core/domain/courses"
	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
)

// MappingReader exposes the already-mapped segment set for a course.
// Satisfied by Repository.
type MappingReader interface {
	ExistingSegmentIDs(ctx context.Context, courseID uuid.UUID) (map[int64]struct{}, error)
}

// Mapper associates a course with the physical segments its path passes
// near. Mapping is idempotent: segments already associated with the
// course are skipped, so repeated runs over the same course converge on
// the same row set.
type Mapper struct {
	source ProximitySource
	repo   MappingReader
	fast   BulkWriter
	safe   BulkWriter
	radius float64
	limit  int
	log    *slog.Logger
}

// MapperParams carries the mapper's collaborators. Fast is tried first
// for the whole candidate set; Safe re-attempts the identical set when
// the fast path fails.
type MapperParams struct {
	Source       ProximitySource
	Repo         MappingReader
	Fast         BulkWriter
	Safe         BulkWriter
	RadiusMeters float64
	Limit        int
	Log          *slog.Logger
}

// NewMapper creates a Mapper.
func NewMapper(p MapperParams) *Mapper {
	return &Mapper{
		source: p.Source,
		repo:   p.Repo,
		fast:   p.Fast,
		safe:   p.Safe,
		radius: p.RadiusMeters,
		limit:  p.Limit,
		log:    p.Log.With(logger.Scope("segments.mapper")),
	}
}

// MapCourse finds the segments within the configured radius of the
// course path and persists one association row per segment not already
// mapped. It returns the number of rows written. A course whose
// candidates are all mapped already is a successful no-op.
func (m *Mapper) MapCourse(ctx context.Context, course *courses.Course) (int, error) {
	if course == nil || course.Path == "" {
		return 0, apperror.ErrInvalidInput.WithMessage("course has no path geometry")
	}

	candidates, err := m.source.NearbySegmentIDs(ctx, course.Path, m.radius, m.limit)
	if err != nil {
		return 0, err
	}

	existing, err := m.repo.ExistingSegmentIDs(ctx, course.ID)
	if err != nil {
		return 0, err
	}

	toWrite := dedupNew(candidates, existing)
	if len(toWrite) == 0 {
		m.log.Debug("no new segments to map", "course_id", course.ID, "candidates", len(candidates))
		return 0, nil
	}

	if err := m.fast.Insert(ctx, course.ID, toWrite); err != nil {
		fastPathFailures.Inc()
		m.log.Warn("fast write path failed, retrying with fallback",
			"course_id", course.ID,
			"fast", m.fast.Name(),
			"fallback", m.safe.Name(),
			"rows", len(toWrite),
			logger.Error(err),
		)
		fallbackRuns.Inc()
		if err := m.safe.Insert(ctx, course.ID, toWrite); err != nil {
			return 0, err
		}
	}

	mappingsWritten.Add(float64(len(toWrite)))
	m.log.Info("mapped course segments",
		"course_id", course.ID,
		"candidates", len(candidates),
		"written", len(toWrite),
		"skipped", len(candidates)-len(toWrite),
	)
	return len(toWrite), nil
}

// MapCourseByID resolves the course first, then maps it.
func (m *Mapper) MapCourseByID(ctx context.Context, repo *courses.Repository, id uuid.UUID) (int, error) {
	course, err := repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return m.MapCourse(ctx, course)
}

// dedupNew returns the candidate ids not present in existing, keeping
// first-seen order and dropping in-slice duplicates.
func dedupNew(candidates []int64, existing map[int64]struct{}) []int64 {
	seen := make(map[int64]struct{}, len(candidates))
	out := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := existing[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}
