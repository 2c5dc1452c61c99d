// Package sysmetrics measures wall clock, heap and CPU cost of a code
// section between a Start/End pair.
package sysmetrics

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/courselab/course-core/pkg/logger"
)

// settleDelay is the pause after the forced collection in Start. Without
// it the heap baseline races the collector and memory deltas measure
// collector timing instead of the workload.
const settleDelay = 100 * time.Millisecond

// PerformanceResult is one finished measurement window.
type PerformanceResult struct {
	// ExecutionTimeMs is the wall-clock duration of the window.
	ExecutionTimeMs float64
	// MemoryUsedMB is the heap-alloc delta across the window. Signed: a
	// collection inside the window can reclaim more than was allocated.
	MemoryUsedMB float64
	// CPUTimeMs is the CPU time consumed during the window.
	CPUTimeMs float64
	// CPUUsagePercent is 100 * CPUTimeMs / ExecutionTimeMs clamped into
	// [0, 100]; defined as 0 when the wall time is 0.
	CPUUsagePercent float64
	// QueryCount is supplied by the caller at End; it is reported, never
	// enforced.
	QueryCount int
}

// Sampler captures a resource baseline on Start and produces the delta
// on End.
//
// Start/End are not re-entrant: a second Start overwrites the previous
// baseline. One sampler instance must not be shared across goroutines;
// independent samplers are fine.
type Sampler struct {
	log *slog.Logger

	// Swappable readings so tests can drive the arithmetic.
	now       func() time.Time
	heapAlloc func() uint64
	cpuTimeMs func() (float64, bool)
	settle    func()

	baseWall     time.Time
	baseHeap     uint64
	baseCPUMs    float64
	cpuSupported bool
}

// NewSampler creates a sampler bound to the current process.
//
// The Go runtime does not expose per-thread CPU time, so the CPU reading
// is the process-wide user+system time from the OS (via gopsutil). On
// platforms where even that counter is unavailable the CPU fields of
// every result are zero and CPUSupported reports false.
func NewSampler(log *slog.Logger) *Sampler {
	s := &Sampler{
		log:       log.With(logger.Scope("sysmetrics")),
		now:       time.Now,
		heapAlloc: readHeapAlloc,
		settle:    func() { time.Sleep(settleDelay) },
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.Warn("process CPU time unavailable, CPU fields will be zero", logger.Error(err))
		s.cpuTimeMs = func() (float64, bool) { return 0, false }
		return s
	}
	s.cpuTimeMs = func() (float64, bool) {
		times, err := proc.Times()
		if err != nil {
			return 0, false
		}
		return (times.User + times.System) * 1000, true
	}
	return s
}

func readHeapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// Start forces a full collection, waits for it to settle and records the
// baseline readings. Calling Start again without End silently replaces
// the baseline.
func (s *Sampler) Start() {
	runtime.GC()
	s.settle()

	s.baseHeap = s.heapAlloc()
	s.baseCPUMs, s.cpuSupported = s.cpuTimeMs()
	s.baseWall = s.now()
}

// End closes the window opened by the last Start and returns the deltas.
func (s *Sampler) End(queryCount int) PerformanceResult {
	wallMs := float64(s.now().Sub(s.baseWall)) / float64(time.Millisecond)
	memMB := (float64(s.heapAlloc()) - float64(s.baseHeap)) / (1024 * 1024)

	var cpuMs float64
	if s.cpuSupported {
		if end, ok := s.cpuTimeMs(); ok {
			cpuMs = end - s.baseCPUMs
		}
	}

	return PerformanceResult{
		ExecutionTimeMs: wallMs,
		MemoryUsedMB:    memMB,
		CPUTimeMs:       cpuMs,
		CPUUsagePercent: cpuPercent(cpuMs, wallMs),
		QueryCount:      queryCount,
	}
}

// CPUSupported reports whether the platform exposes a CPU time counter
// for this process.
func (s *Sampler) CPUSupported() bool {
	_, ok := s.cpuTimeMs()
	return ok
}

func cpuPercent(cpuMs, wallMs float64) float64 {
	if wallMs == 0 {
		return 0
	}
	pct := 100 * cpuMs / wallMs
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
