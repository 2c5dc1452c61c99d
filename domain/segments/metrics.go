package segments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mappingsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_segment_mappings_written_total",
		Help: "Association rows persisted by the segment mapper.",
	})
	fastPathFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_segment_mapper_fast_path_failures_total",
		Help: "Primary bulk-write attempts that failed and triggered the fallback.",
	})
	fallbackRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_segment_mapper_fallback_runs_total",
		Help: "Fallback bulk-write attempts, successful or not.",
	})
)
