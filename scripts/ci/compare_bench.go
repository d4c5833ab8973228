// compare_bench compares `go test -bench` output for the history and
// coordinator benchmarks against a baseline run and fails on regressions.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	benchmarkLinePattern = regexp.MustCompile(`^(Benchmark(?:History|Coordinator)/\S+)\s+\d+\s+(\d+(?:\.\d+)?)\s+ns/op(?:\s+\d+\s+B/op\s+(\d+)\s+allocs/op)?`)
	cpuSuffixPattern     = regexp.MustCompile(`-\d+$`)
	expectedBenchmarks   = []string{
		"BenchmarkHistory/small/push-capped",
		"BenchmarkHistory/small/undo-redo",
		"BenchmarkHistory/large/push-capped",
		"BenchmarkHistory/large/undo-redo",
		"BenchmarkCoordinator/add-note",
		"BenchmarkCoordinator/undo-redo",
	}
)

type benchResult struct {
	nsPerOp     float64
	allocsPerOp int
}

type comparisonRow struct {
	name           string
	baseline       benchResult
	current        benchResult
	deltaPct       float64
	allocsIncrease bool
	pass           bool
}

func main() {
	baselinePath := flag.String("baseline", "", "path to baseline benchmark output")
	currentPath := flag.String("current", "", "path to current benchmark output")
	maxRegressionPct := flag.Float64("max-regression-pct", 20, "maximum allowed ns/op regression percent before failing")
	strictAllocs := flag.Bool("strict-allocs", false, "fail when allocs/op grows")
	flag.Parse()

	if *baselinePath == "" || *currentPath == "" {
		fatalf("both -baseline and -current are required")
	}
	if *maxRegressionPct < 0 {
		fatalf("-max-regression-pct must be non-negative")
	}

	baseline, err := parseBenchmarkFile(*baselinePath)
	if err != nil {
		fatalf("parse baseline: %v", err)
	}
	current, err := parseBenchmarkFile(*currentPath)
	if err != nil {
		fatalf("parse current: %v", err)
	}

	rows, err := compareBenchmarks(baseline, current, *maxRegressionPct, *strictAllocs)
	if err != nil {
		fatalf("compare benchmarks: %v", err)
	}

	writeMarkdownReport(os.Stdout, rows, *maxRegressionPct)
	if stepSummary := os.Getenv("GITHUB_STEP_SUMMARY"); stepSummary != "" {
		f, err := os.OpenFile(stepSummary, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			fatalf("open step summary: %v", err)
		}
		defer f.Close()
		writeMarkdownReport(f, rows, *maxRegressionPct)
	}

	for _, row := range rows {
		if !row.pass {
			os.Exit(1)
		}
	}
}

func parseBenchmarkFile(path string) (map[string]benchResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()
	results, err := parseBenchmarkOutput(file)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return results, nil
}

func parseBenchmarkOutput(r io.Reader) (map[string]benchResult, error) {
	results := make(map[string]benchResult, len(expectedBenchmarks))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		matches := benchmarkLinePattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if matches == nil {
			continue
		}

		name := cpuSuffixPattern.ReplaceAllString(matches[1], "")
		ns, err := strconv.ParseFloat(matches[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parse ns/op for %q: %w", name, err)
		}
		res := benchResult{nsPerOp: ns, allocsPerOp: -1}
		if matches[3] != "" {
			if res.allocsPerOp, err = strconv.Atoi(matches[3]); err != nil {
				return nil, fmt.Errorf("parse allocs/op for %q: %w", name, err)
			}
		}
		results[name] = res
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New("no history or coordinator benchmark results found")
	}
	return results, nil
}

func compareBenchmarks(baseline, current map[string]benchResult, maxRegressionPct float64, strictAllocs bool) ([]comparisonRow, error) {
	for _, name := range expectedBenchmarks {
		if _, ok := current[name]; !ok {
			return nil, fmt.Errorf("missing current benchmark %q", name)
		}
	}

	rows := make([]comparisonRow, 0, len(expectedBenchmarks))
	for _, name := range expectedBenchmarks {
		curr := current[name]
		base, ok := baseline[name]
		if !ok {
			// No baseline yet: compare the run with itself.
			base = curr
		}
		if base.nsPerOp <= 0 {
			return nil, fmt.Errorf("non-positive baseline ns/op for %q", name)
		}
		row := comparisonRow{
			name:     name,
			baseline: base,
			current:  curr,
			deltaPct: ((curr.nsPerOp - base.nsPerOp) / base.nsPerOp) * 100,
		}
		row.allocsIncrease = base.allocsPerOp >= 0 && curr.allocsPerOp > base.allocsPerOp
		row.pass = row.deltaPct <= maxRegressionPct && !(strictAllocs && row.allocsIncrease)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].name < rows[j].name
	})
	return rows, nil
}

func writeMarkdownReport(out io.Writer, rows []comparisonRow, maxRegressionPct float64) {
	fmt.Fprintf(out, "## Editor Benchmark Comparison\n\n")
	fmt.Fprintf(out, "Allowed regression threshold: %.2f%%\n\n", maxRegressionPct)
	fmt.Fprintf(out, "| Benchmark | Baseline ns/op | Current ns/op | Delta | Allocs/op | Result |\n")
	fmt.Fprintf(out, "|---|---:|---:|---:|---:|---|\n")
	for _, row := range rows {
		result := "PASS"
		if !row.pass {
			result = "FAIL"
		}
		delta := 0.0
		if !math.IsNaN(row.deltaPct) && !math.IsInf(row.deltaPct, 0) {
			delta = row.deltaPct
		}
		fmt.Fprintf(out, "| %s | %.0f | %.0f | %+0.2f%% | %s | %s |\n",
			row.name, row.baseline.nsPerOp, row.current.nsPerOp, delta, allocsCell(row), result)
	}
	fmt.Fprintln(out)
}

func allocsCell(row comparisonRow) string {
	if row.current.allocsPerOp < 0 {
		return "n/a"
	}
	if row.baseline.allocsPerOp < 0 || row.baseline.allocsPerOp == row.current.allocsPerOp {
		return strconv.Itoa(row.current.allocsPerOp)
	}
	return fmt.Sprintf("%d → %d", row.baseline.allocsPerOp, row.current.allocsPerOp)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
