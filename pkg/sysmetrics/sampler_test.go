package sysmetrics

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSampler returns a sampler with deterministic readings. Each call to
// a reading advances through the supplied values.
func fakeSampler(wall []time.Time, heap []uint64, cpuMs []float64, cpuOK bool) *Sampler {
	wallIdx, heapIdx, cpuIdx := 0, 0, 0
	return &Sampler{
		log:    slog.Default(),
		settle: func() {},
		now: func() time.Time {
			v := wall[wallIdx]
			wallIdx++
			return v
		},
		heapAlloc: func() uint64 {
			v := heap[heapIdx]
			heapIdx++
			return v
		},
		cpuTimeMs: func() (float64, bool) {
			v := cpuMs[cpuIdx]
			cpuIdx++
			return v, cpuOK
		},
	}
}

func TestEndComputesDeltas(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fakeSampler(
		[]time.Time{t0, t0.Add(200 * time.Millisecond)},
		[]uint64{10 * 1024 * 1024, 14 * 1024 * 1024},
		[]float64{1000, 1100},
		true,
	)

	s.Start()
	// The forced GC in Start runs against the real runtime; the fake
	// readings keep the arithmetic deterministic regardless.
	res := s.End(7)

	assert.InDelta(t, 200.0, res.ExecutionTimeMs, 1e-9)
	assert.InDelta(t, 4.0, res.MemoryUsedMB, 1e-9)
	assert.InDelta(t, 100.0, res.CPUTimeMs, 1e-9)
	assert.InDelta(t, 50.0, res.CPUUsagePercent, 1e-9)
	assert.Equal(t, 7, res.QueryCount)
}

func TestNegativeMemoryDelta(t *testing.T) {
	t0 := time.Now()
	s := fakeSampler(
		[]time.Time{t0, t0.Add(50 * time.Millisecond)},
		[]uint64{20 * 1024 * 1024, 12 * 1024 * 1024},
		[]float64{0, 10},
		true,
	)

	s.Start()
	res := s.End(0)

	assert.InDelta(t, -8.0, res.MemoryUsedMB, 1e-9)
}

func TestZeroWallTimeUtilization(t *testing.T) {
	t0 := time.Now()
	s := fakeSampler(
		[]time.Time{t0, t0},
		[]uint64{0, 0},
		[]float64{0, 500},
		true,
	)

	s.Start()
	res := s.End(1)

	assert.Equal(t, 0.0, res.ExecutionTimeMs)
	assert.Equal(t, 0.0, res.CPUUsagePercent)
}

func TestUtilizationClamp(t *testing.T) {
	tests := []struct {
		name   string
		cpuMs  float64
		wallMs float64
		want   float64
	}{
		{"over 100 clamps down", 500, 100, 100},
		{"negative clamps to zero", -10, 100, 0},
		{"in range untouched", 25, 100, 25},
		{"zero wall defined as zero", 50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cpuPercent(tt.cpuMs, tt.wallMs))
		})
	}
}

func TestStartRebaselines(t *testing.T) {
	t0 := time.Now()
	s := fakeSampler(
		// First Start consumes one wall reading, second Start another,
		// End the third.
		[]time.Time{t0, t0.Add(time.Hour), t0.Add(time.Hour + 100*time.Millisecond)},
		[]uint64{1 << 20, 2 << 20, 2 << 20},
		[]float64{0, 40, 60},
		true,
	)

	s.Start()
	s.Start() // silently replaces the first baseline
	res := s.End(0)

	assert.InDelta(t, 100.0, res.ExecutionTimeMs, 1e-9)
	assert.InDelta(t, 20.0, res.CPUTimeMs, 1e-9)
	assert.InDelta(t, 0.0, res.MemoryUsedMB, 1e-9)
}

func TestUnsupportedCPUCounter(t *testing.T) {
	t0 := time.Now()
	s := fakeSampler(
		[]time.Time{t0, t0.Add(100 * time.Millisecond)},
		[]uint64{0, 0},
		[]float64{0, 0},
		false,
	)

	s.Start()
	res := s.End(0)

	assert.Equal(t, 0.0, res.CPUTimeMs)
	assert.Equal(t, 0.0, res.CPUUsagePercent)
	assert.False(t, s.CPUSupported())
}

func TestNewSamplerRealProcess(t *testing.T) {
	s := NewSampler(slog.Default())
	require.NotNil(t, s)

	s.Start()
	res := s.End(3)

	assert.GreaterOrEqual(t, res.ExecutionTimeMs, 0.0)
	assert.GreaterOrEqual(t, res.CPUUsagePercent, 0.0)
	assert.LessOrEqual(t, res.CPUUsagePercent, 100.0)
	assert.Equal(t, 3, res.QueryCount)
}
