// map-segments: runs the course-to-segment mapper.
//
// Modes:
//   -course <uuid>  map one course synchronously and exit
//   -enqueue-all    enqueue a mapping job for every course and exit
//   -worker         run the polling worker until interrupted
//
// Environment: POSTGRES_* and MAPPING_* (see internal/config).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/courselab/course-core/domain/courses"
	"github.com/courselab/course-core/domain/segments"
	"github.com/courselab/course-core/internal/config"
	"github.com/courselab/course-core/internal/database"
	"github.com/courselab/course-core/internal/jobs"
	"github.com/courselab/course-core/internal/migrate"
	"github.com/courselab/course-core/pkg/logger"
	"github.com/courselab/course-core/pkg/syshealth"
)

func main() {
	courseFlag := flag.String("course", "", "Course UUID to map synchronously")
	enqueueAll := flag.Bool("enqueue-all", false, "Enqueue a mapping job for every course")
	worker := flag.Bool("worker", false, "Run the mapping worker until interrupted")
	flag.Parse()

	if *courseFlag == "" && !*enqueueAll && !*worker {
		fmt.Fprintln(os.Stderr, "Usage: map-segments [-course <uuid>] [-enqueue-all] [-worker]")
		os.Exit(1)
	}

	_ = godotenv.Load()

	base := []fx.Option{
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		jobs.Module,
		courses.Module,
		segments.Module,
		// Schema is brought up to date before any mode runs
		fx.Invoke(func(lc fx.Lifecycle, m *migrate.Migrator) {
			lc.Append(fx.Hook{OnStart: m.Up})
		}),
	}

	switch {
	case *worker:
		fx.New(append(base, fx.Invoke(runWorker))...).Run()
	case *enqueueAll:
		runOneShot(base, func(ctx context.Context, deps oneShotDeps) error {
			n, err := deps.JobService.EnqueueAll(ctx)
			if err != nil {
				return err
			}
			deps.Log.Info("mapping jobs enqueued", "count", n)
			return nil
		})
	default:
		courseID, err := uuid.Parse(*courseFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid course id %q: %v\n", *courseFlag, err)
			os.Exit(1)
		}
		runOneShot(base, func(ctx context.Context, deps oneShotDeps) error {
			written, err := deps.Mapper.MapCourseByID(ctx, deps.Courses, courseID)
			if err != nil {
				return err
			}
			deps.Log.Info("course mapped", "course_id", courseID, "written", written)
			return nil
		})
	}
}

// workerMaxBatch is the dequeue batch size under a healthy system; the
// scaler shrinks it when the host is under pressure.
const workerMaxBatch = 10

// runWorker recovers stale jobs and keeps the polling worker alive under
// the fx lifecycle until the process is signalled. Batch size follows
// the host health monitor.
func runWorker(lc fx.Lifecycle, svc *segments.JobService, w *jobs.Worker, db *bun.DB, log *slog.Logger) {
	monitor := syshealth.NewMonitor(nil, db, log)
	scaler := syshealth.NewConcurrencyScaler(monitor, "segment-mapping", true, 1, workerMaxBatch)
	svc.SetBatchSizer(func() int {
		n := scaler.GetConcurrency(workerMaxBatch)
		syshealth.WorkerConcurrency.WithLabelValues("segment-mapping").Set(float64(n))
		return n
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := monitor.Start(); err != nil {
				return err
			}
			if n, err := svc.RecoverStale(ctx); err != nil {
				log.Warn("stale job recovery failed", logger.Error(err))
			} else if n > 0 {
				log.Info("stale jobs recovered", "count", n)
			}
			return w.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			_ = monitor.Stop()
			return w.Stop(ctx)
		},
	})
}

type oneShotDeps struct {
	fx.In

	Mapper     *segments.Mapper
	JobService *segments.JobService
	Courses    *courses.Repository
	Log        *slog.Logger
}

// runOneShot starts the app, executes fn once, and shuts the app down,
// exiting nonzero when fn fails.
func runOneShot(base []fx.Option, fn func(context.Context, oneShotDeps) error) {
	var runErr error
	app := fx.New(append(base,
		fx.Invoke(func(deps oneShotDeps, shutdowner fx.Shutdowner) {
			go func() {
				runErr = fn(context.Background(), deps)
				if runErr != nil {
					deps.Log.Error("map-segments failed", logger.Error(runErr))
				}
				_ = shutdowner.Shutdown()
			}()
		}),
	)...)

	app.Run()
	if runErr != nil {
		os.Exit(1)
	}
}
