// Package benchmark runs registered methods across a matrix of data
// sizes and collects comparable resource measurements for each cell.
package benchmark

import (
	"fmt"
	"log/slog"

	"github.com/courselab/course-core/pkg/apperror"
	"github.com/courselab/course-core/pkg/logger"
	"github.com/courselab/course-core/pkg/sysmetrics"
)

// Config describes one harness run. It is read-only once handed to a
// Runner.
type Config struct {
	// Name labels the run in logs and reports.
	Name string
	// DataSizes is the ordered list of sizes to sweep.
	DataSizes []int
	// WarmupRuns is the number of discarded executions per (method,
	// size) cell before the measured one. Default 0.
	WarmupRuns int
	// SetupBeforeEach runs before every execution, warm-up or measured.
	SetupBeforeEach func() error
	// CleanupAfterEach runs after every execution and once more at the
	// end of each size pass, so it must tolerate back-to-back calls.
	CleanupAfterEach func() error
}

// Method is one benchmarked behavior. Stateless: the harness invokes
// Action once per data size (plus warm-ups).
type Method struct {
	Name string
	// QueryCount estimates the store round trips for a size. Reported,
	// never enforced.
	QueryCount func(size int) int
	// Action performs the measured work for a size.
	Action func(size int) error
}

// Result is the measurement for one (method, size) cell.
type Result struct {
	Method   string
	DataSize int
	Perf     sysmetrics.PerformanceResult
}

// sampler is the measurement window used around each measured action.
type sampler interface {
	Start()
	End(queryCount int) sysmetrics.PerformanceResult
}

// Runner executes methods size by size, method by method, in
// registration order. It is single-threaded: one runner owns one
// sampler, and nothing here is safe for concurrent use.
type Runner struct {
	cfg     Config
	methods []Method
	sampler sampler
	log     *slog.Logger
}

// NewRunner creates a runner for the given config.
func NewRunner(cfg Config, log *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		sampler: sysmetrics.NewSampler(log),
		log:     log.With(logger.Scope("benchmark"), slog.String("run", cfg.Name)),
	}
}

// Register appends a method. Registration order is the execution and
// reporting order before any sort applied by renderers.
func (r *Runner) Register(m Method) error {
	if m.Name == "" || m.Action == nil {
		return apperror.ErrInvalidInput.WithMessage("benchmark method needs a name and an action")
	}
	if m.QueryCount == nil {
		m.QueryCount = func(int) int { return 0 }
	}
	r.methods = append(r.methods, m)
	return nil
}

// Run sweeps every registered method across every configured size and
// returns size → results in registration order.
//
// Any failing action or hook aborts the whole run: a partially filled
// matrix would be misleading to compare, so nothing is returned.
func (r *Runner) Run() (map[int][]Result, error) {
	if len(r.methods) == 0 {
		return nil, apperror.ErrInvalidInput.WithMessage("no benchmark methods registered")
	}

	results := make(map[int][]Result, len(r.cfg.DataSizes))

	for _, size := range r.cfg.DataSizes {
		r.log.Info("benchmarking size", slog.Int("size", size))

		for _, m := range r.methods {
			for i := 0; i < r.cfg.WarmupRuns; i++ {
				if err := r.runOnce(m, size); err != nil {
					return nil, fmt.Errorf("warmup %d of %s at size %d: %w", i+1, m.Name, size, err)
				}
			}

			if err := r.hook(r.cfg.SetupBeforeEach, m.Name, size, "setup"); err != nil {
				return nil, err
			}

			r.sampler.Start()
			err := m.Action(size)
			perf := r.sampler.End(m.QueryCount(size))
			if err != nil {
				return nil, apperror.ErrBenchAction.
					WithMessage(fmt.Sprintf("method %s failed at size %d", m.Name, size)).
					WithInternal(err)
			}

			if err := r.hook(r.cfg.CleanupAfterEach, m.Name, size, "cleanup"); err != nil {
				return nil, err
			}

			results[size] = append(results[size], Result{Method: m.Name, DataSize: size, Perf: perf})

			r.log.Debug("method measured",
				slog.String("method", m.Name),
				slog.Int("size", size),
				slog.Float64("ms", perf.ExecutionTimeMs),
			)
		}

		// Trailing pass-boundary cleanup so no size leaks state into the
		// next one even if a caller's cleanup depends on ordering.
		if err := r.hook(r.cfg.CleanupAfterEach, "", size, "pass cleanup"); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// runOnce executes one discarded warm-up iteration.
func (r *Runner) runOnce(m Method, size int) error {
	if err := r.hook(r.cfg.SetupBeforeEach, m.Name, size, "setup"); err != nil {
		return err
	}
	if err := m.Action(size); err != nil {
		return apperror.ErrBenchAction.
			WithMessage(fmt.Sprintf("method %s failed at size %d", m.Name, size)).
			WithInternal(err)
	}
	return r.hook(r.cfg.CleanupAfterEach, m.Name, size, "cleanup")
}

func (r *Runner) hook(fn func() error, method string, size int, kind string) error {
	if fn == nil {
		return nil
	}
	if err := fn(); err != nil {
		return apperror.ErrBenchAction.
			WithMessage(fmt.Sprintf("%s hook failed (method=%s size=%d)", kind, method, size)).
			WithInternal(err)
	}
	return nil
}
