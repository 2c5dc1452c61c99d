package benchmark

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courselab/course-core/pkg/sysmetrics"
)

func sampleResults() map[int][]Result {
	return map[int][]Result{
		1000: {
			{Method: "copy-stream", DataSize: 1000, Perf: sysmetrics.PerformanceResult{ExecutionTimeMs: 3, MemoryUsedMB: 1.5, CPUUsagePercent: 40, QueryCount: 1}},
			{Method: "multi-row", DataSize: 1000, Perf: sysmetrics.PerformanceResult{ExecutionTimeMs: 4, MemoryUsedMB: 0.5, CPUUsagePercent: 55, QueryCount: 1}},
			{Method: "row-loop", DataSize: 1000, Perf: sysmetrics.PerformanceResult{ExecutionTimeMs: 558, MemoryUsedMB: 2.0, CPUUsagePercent: 20, QueryCount: 1000}},
		},
	}
}

func TestComparisonRatios(t *testing.T) {
	out := FormatComparison(sampleResults())

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4) // header + 3 entries

	assert.Contains(t, lines[1], "1. copy-stream")
	assert.Contains(t, lines[1], "(fastest)")
	// 3/4 and 3/558, i.e. values below 1 mark slower methods.
	assert.Contains(t, lines[2], "2. multi-row")
	assert.Contains(t, lines[2], "ratio 0.7500")
	assert.Contains(t, lines[3], "3. row-loop")
	assert.Contains(t, lines[3], "ratio 0.0054")
}

func TestRenderersAgreeOnRanking(t *testing.T) {
	results := sampleResults()
	wantOrder := []string{"copy-stream", "multi-row", "row-loop"}

	for name, out := range map[string]string{
		"table":    FormatTable(results),
		"markdown": FormatMarkdown(results),
		"csv":      FormatCSV(results),
	} {
		t.Run(name, func(t *testing.T) {
			last := -1
			for _, method := range wantOrder {
				idx := strings.Index(out, method)
				require.GreaterOrEqual(t, idx, 0, "%s output missing %s", name, method)
				assert.Greater(t, idx, last, "%s ranks %s out of order", name, method)
				last = idx
			}
		})
	}
}

func TestTableBlocksPerSize(t *testing.T) {
	results := sampleResults()
	results[50] = []Result{
		{Method: "row-loop", DataSize: 50, Perf: sysmetrics.PerformanceResult{ExecutionTimeMs: 12}},
	}

	out := FormatTable(results)

	// Sizes render in ascending order, one block each.
	idx50 := strings.Index(out, "=== 50 rows ===")
	idx1000 := strings.Index(out, "=== 1000 rows ===")
	require.GreaterOrEqual(t, idx50, 0)
	require.Greater(t, idx1000, idx50)
}

func TestCSVFormat(t *testing.T) {
	out := FormatCSV(sampleResults())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "data_size,method,time_ms,memory_mb,cpu_percent,query_count", lines[0])
	assert.Equal(t, "1000,copy-stream,3.00,1.50,40.00,1", lines[1])
	assert.Equal(t, "1000,multi-row,4.00,0.50,55.00,1", lines[2])
	assert.Equal(t, "1000,row-loop,558.00,2.00,20.00,1000", lines[3])
}

func TestMarkdownShape(t *testing.T) {
	out := FormatMarkdown(sampleResults())

	assert.Contains(t, out, "### 1000 rows")
	assert.Contains(t, out, "| Method | Time (ms) | Memory (MB) | CPU % | Queries |")
	assert.Contains(t, out, "| copy-stream | 3.00 | 1.50 | 40.00 | 1 |")
}

func TestAnalysisSummary(t *testing.T) {
	out := FormatAnalysis(sampleResults())

	assert.Contains(t, out, "Analysis for 1000 rows:")
	assert.Contains(t, out, "fastest: copy-stream (3.00 ms)")
	assert.Contains(t, out, "slowest: row-loop (558.00 ms, 186.00x slower)")
	assert.Contains(t, out, "least memory: multi-row (0.50 MB)")
	assert.Contains(t, out, "fewest queries: copy-stream (1)")
}

func TestAnalysisTieBreaksByInputOrder(t *testing.T) {
	results := map[int][]Result{
		10: {
			{Method: "a", Perf: sysmetrics.PerformanceResult{ExecutionTimeMs: 5, MemoryUsedMB: 1, QueryCount: 2}},
			{Method: "b", Perf: sysmetrics.PerformanceResult{ExecutionTimeMs: 6, MemoryUsedMB: 1, QueryCount: 2}},
		},
	}

	out := FormatAnalysis(results)
	assert.Contains(t, out, "least memory: a")
	assert.Contains(t, out, "fewest queries: a")
}

func TestEmptySizeBlockSkipped(t *testing.T) {
	out := FormatAnalysis(map[int][]Result{10: {}})
	assert.Empty(t, out)
}
