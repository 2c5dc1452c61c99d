package segments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/courselab/course-core/domain/courses"
	"github.com/courselab/course-core/internal/jobs"
	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
)

// MappingJob is one queued mapping run for a course.
type MappingJob struct {
	bun.BaseModel `bun:"table:mapping_jobs,alias:mj"`

	ID           uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	CourseID     uuid.UUID      `bun:"course_id,notnull,type:uuid" json:"course_id"`
	Status       jobs.JobStatus `bun:"status,notnull,default:'pending'" json:"status"`
	Priority     int            `bun:"priority,notnull,default:0" json:"priority"`
	AttemptCount int            `bun:"attempt_count,notnull,default:0" json:"attempt_count"`
	LastError    string         `bun:"last_error" json:"last_error,omitempty"`
	ScheduledAt  *time.Time     `bun:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt    *time.Time     `bun:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `bun:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time      `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// mappingJobQueueConfig bounds retries: a course whose mapping fails five
// times needs a human, not a sixth attempt.
func mappingJobQueueConfig() jobs.QueueConfig {
	cfg := jobs.DefaultQueueConfig("mapping_jobs", "course_id")
	cfg.MaxAttempts = 5
	cfg.BaseRetryDelaySec = 30
	cfg.MaxRetryDelaySec = 900
	return cfg
}

// JobService runs queued mapping jobs.
type JobService struct {
	queue     *jobs.Queue
	db        bun.IDB
	courses   *courses.Repository
	mapper    *Mapper
	batchSize func() int
	log       *slog.Logger
}

// NewJobService creates the mapping job service.
func NewJobService(db bun.IDB, courseRepo *courses.Repository, mapper *Mapper, log *slog.Logger) *JobService {
	scoped := log.With(logger.Scope("segments.jobs"))
	return &JobService{
		queue:     jobs.NewQueue(db, mappingJobQueueConfig(), scoped),
		db:        db,
		courses:   courseRepo,
		mapper:    mapper,
		batchSize: func() int { return 0 },
		log:       scoped,
	}
}

// SetBatchSizer installs a dynamic batch size, typically driven by the
// system health scaler. Zero falls back to the queue default.
func (s *JobService) SetBatchSizer(fn func() int) {
	if fn != nil {
		s.batchSize = fn
	}
}

// Enqueue schedules a mapping run for one course. Idempotent: a course
// with an active job is not enqueued again. Unknown course ids fail with
// a not-found error instead of the insert's FK violation.
func (s *JobService) Enqueue(ctx context.Context, courseID uuid.UUID) error {
	exists, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NewNotFound("course", courseID.String())
	}

	job := &MappingJob{CourseID: courseID}
	_, err = s.db.NewInsert().
		Model(job).
		Column("course_id").
		On("CONFLICT (course_id) WHERE status IN ('pending', 'processing') DO NOTHING").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// EnqueueAll schedules a mapping run for every course without an active
// job. Returns the number of jobs created.
func (s *JobService) EnqueueAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mapping_jobs (course_id)
		SELECT id FROM courses
		ON CONFLICT (course_id) WHERE status IN ('pending', 'processing') DO NOTHING`)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ProcessBatch claims and runs one batch of pending jobs. Used as the
// worker's process function.
func (s *JobService) ProcessBatch(ctx context.Context) error {
	ids, err := s.queue.Dequeue(ctx, s.batchSize())
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.processJob(ctx, id); err != nil {
			s.log.Warn("mapping job failed", "job_id", id, logger.Error(err))
		}
	}
	return nil
}

func (s *JobService) processJob(ctx context.Context, id string) error {
	job := new(MappingJob)
	if err := s.queue.GetJobByID(ctx, id, job); err != nil {
		return err
	}

	course, err := s.courses.GetByID(ctx, job.CourseID)
	if err != nil {
		// A deleted course makes its job permanently unrunnable
		return s.queue.MarkFailed(ctx, id, mappingJobQueueConfig().MaxAttempts, err.Error())
	}

	written, err := s.mapper.MapCourse(ctx, course)
	if err != nil {
		if markErr := s.queue.MarkFailed(ctx, id, job.AttemptCount, err.Error()); markErr != nil {
			s.log.Error("cannot mark job failed", "job_id", id, logger.Error(markErr))
		}
		return err
	}

	s.log.Info("mapping job completed", "job_id", id, "course_id", job.CourseID, "written", written)
	return s.queue.MarkCompleted(ctx, id)
}

// Stats reports queue depth by status.
func (s *JobService) Stats(ctx context.Context) (*jobs.Stats, error) {
	return s.queue.GetStats(ctx)
}

// RecoverStale requeues jobs stuck in processing, typically after a
// crashed worker.
func (s *JobService) RecoverStale(ctx context.Context) (int, error) {
	return s.queue.RecoverStaleJobs(ctx, 10)
}

// NewMappingWorker builds the polling worker that drains the queue.
func NewMappingWorker(svc *JobService, log *slog.Logger) *jobs.Worker {
	cfg := jobs.DefaultWorkerConfig("segment-mapping")
	cfg.PollInterval = 2 * time.Second
	return jobs.NewWorker(cfg, log, svc.ProcessBatch)
}
