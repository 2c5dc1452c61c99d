package benchmark

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Reporters are pure functions over a harness result set. Every rendering
// sorts the methods of a size block by ascending execution time; the
// Format* variants return the rendering as a string, the Write* variants
// stream it to a writer, and the Print* variants go to stdout.

// sortedSizes returns the data sizes in ascending order.
func sortedSizes(results map[int][]Result) []int {
	sizes := make([]int, 0, len(results))
	for size := range results {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	return sizes
}

// byTime returns a copy of rs sorted by ascending execution time. The
// sort is stable so registration order breaks ties.
func byTime(rs []Result) []Result {
	sorted := make([]Result, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Perf.ExecutionTimeMs < sorted[j].Perf.ExecutionTimeMs
	})
	return sorted
}

// WriteTable renders fixed-width result blocks, one per data size.
func WriteTable(w io.Writer, results map[int][]Result) {
	for _, size := range sortedSizes(results) {
		fmt.Fprintf(w, "=== %d rows ===\n", size)
		fmt.Fprintf(w, "%-28s %12s %12s %8s %9s\n", "Method", "Time (ms)", "Mem (MB)", "CPU %", "Queries")
		for _, r := range byTime(results[size]) {
			fmt.Fprintf(w, "%-28s %12.2f %12.2f %8.2f %9d\n",
				r.Method,
				r.Perf.ExecutionTimeMs,
				r.Perf.MemoryUsedMB,
				r.Perf.CPUUsagePercent,
				r.Perf.QueryCount,
			)
		}
		fmt.Fprintln(w)
	}
}

// FormatTable returns the table rendering as a string.
func FormatTable(results map[int][]Result) string {
	var b strings.Builder
	WriteTable(&b, results)
	return b.String()
}

// PrintTable writes the table rendering to stdout.
func PrintTable(results map[int][]Result) {
	WriteTable(os.Stdout, results)
}

// WriteComparison renders a minimal ranked list per size. Every entry
// after rank 1 carries a speed ratio of fastest time divided by its own
// time, so slower methods report values below 1. The ratio definition is
// load-bearing for downstream consumers; do not invert it.
func WriteComparison(w io.Writer, results map[int][]Result) {
	for _, size := range sortedSizes(results) {
		fmt.Fprintf(w, "--- %d rows ---\n", size)
		sorted := byTime(results[size])
		for rank, r := range sorted {
			if rank == 0 {
				fmt.Fprintf(w, "%d. %s: %.2f ms (fastest)\n", rank+1, r.Method, r.Perf.ExecutionTimeMs)
				continue
			}
			ratio := speedRatio(sorted[0].Perf.ExecutionTimeMs, r.Perf.ExecutionTimeMs)
			fmt.Fprintf(w, "%d. %s: %.2f ms (ratio %.4f)\n", rank+1, r.Method, r.Perf.ExecutionTimeMs, ratio)
		}
		fmt.Fprintln(w)
	}
}

// FormatComparison returns the ranked comparison as a string.
func FormatComparison(results map[int][]Result) string {
	var b strings.Builder
	WriteComparison(&b, results)
	return b.String()
}

// PrintComparison writes the ranked comparison to stdout.
func PrintComparison(results map[int][]Result) {
	WriteComparison(os.Stdout, results)
}

func speedRatio(fastestMs, thisMs float64) float64 {
	if thisMs == 0 {
		return 1
	}
	return fastestMs / thisMs
}

// WriteMarkdown renders one markdown table per data size, for embedding
// into docs.
func WriteMarkdown(w io.Writer, results map[int][]Result) {
	for _, size := range sortedSizes(results) {
		fmt.Fprintf(w, "### %d rows\n\n", size)
		fmt.Fprintln(w, "| Method | Time (ms) | Memory (MB) | CPU % | Queries |")
		fmt.Fprintln(w, "|--------|-----------|-------------|-------|---------|")
		for _, r := range byTime(results[size]) {
			fmt.Fprintf(w, "| %s | %.2f | %.2f | %.2f | %d |\n",
				r.Method,
				r.Perf.ExecutionTimeMs,
				r.Perf.MemoryUsedMB,
				r.Perf.CPUUsagePercent,
				r.Perf.QueryCount,
			)
		}
		fmt.Fprintln(w)
	}
}

// FormatMarkdown returns the markdown rendering as a string.
func FormatMarkdown(results map[int][]Result) string {
	var b strings.Builder
	WriteMarkdown(&b, results)
	return b.String()
}

// WriteCSV renders one flat record per (size, method) tuple. Fractional
// fields use two decimal places.
func WriteCSV(w io.Writer, results map[int][]Result) {
	fmt.Fprintln(w, "data_size,method,time_ms,memory_mb,cpu_percent,query_count")
	for _, size := range sortedSizes(results) {
		for _, r := range byTime(results[size]) {
			fmt.Fprintf(w, "%d,%s,%.2f,%.2f,%.2f,%d\n",
				size,
				r.Method,
				r.Perf.ExecutionTimeMs,
				r.Perf.MemoryUsedMB,
				r.Perf.CPUUsagePercent,
				r.Perf.QueryCount,
			)
		}
	}
}

// FormatCSV returns the delimited rendering as a string.
func FormatCSV(results map[int][]Result) string {
	var b strings.Builder
	WriteCSV(&b, results)
	return b.String()
}

// WriteAnalysis renders a textual summary per size: fastest and slowest
// method with their time ratio, plus the methods with minimum memory use
// and minimum query count. Ties keep the first minimal element in input
// order.
func WriteAnalysis(w io.Writer, results map[int][]Result) {
	for _, size := range sortedSizes(results) {
		rs := results[size]
		if len(rs) == 0 {
			continue
		}

		sorted := byTime(rs)
		fastest, slowest := sorted[0], sorted[len(sorted)-1]

		ratio := 1.0
		if fastest.Perf.ExecutionTimeMs > 0 {
			ratio = slowest.Perf.ExecutionTimeMs / fastest.Perf.ExecutionTimeMs
		}

		minMem := rs[0]
		minQueries := rs[0]
		for _, r := range rs[1:] {
			if r.Perf.MemoryUsedMB < minMem.Perf.MemoryUsedMB {
				minMem = r
			}
			if r.Perf.QueryCount < minQueries.Perf.QueryCount {
				minQueries = r
			}
		}

		fmt.Fprintf(w, "Analysis for %d rows:\n", size)
		fmt.Fprintf(w, "  fastest: %s (%.2f ms)\n", fastest.Method, fastest.Perf.ExecutionTimeMs)
		fmt.Fprintf(w, "  slowest: %s (%.2f ms, %.2fx slower)\n", slowest.Method, slowest.Perf.ExecutionTimeMs, ratio)
		fmt.Fprintf(w, "  least memory: %s (%.2f MB)\n", minMem.Method, minMem.Perf.MemoryUsedMB)
		fmt.Fprintf(w, "  fewest queries: %s (%d)\n", minQueries.Method, minQueries.Perf.QueryCount)
		fmt.Fprintln(w)
	}
}

// FormatAnalysis returns the analysis summary as a string.
func FormatAnalysis(results map[int][]Result) string {
	var b strings.Builder
	WriteAnalysis(&b, results)
	return b.String()
}
