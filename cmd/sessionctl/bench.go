package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// trackedBenchmarks are the hot paths guarded against regressions, with the units compared.
var trackedBenchmarks = map[string][]string{
	"BenchmarkEvaluateExact":   {"ns/op", "allocs/op"},
	"BenchmarkEvaluatePattern": {"ns/op", "allocs/op"},
	"BenchmarkValidate":        {"ns/op", "allocs/op"},
	"BenchmarkMetricsInc":      {"ns/op"},
	"BenchmarkRender":          {"ns/op"},
}

// samples maps benchmark name to unit to every observed value.
type samples map[string]map[string][]float64

type benchDelta struct {
	Benchmark string
	Unit      string
	Baseline  float64
	Candidate float64
	Delta     float64
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark tooling",
	}
	cmd.AddCommand(newBenchCompareCmd())
	return cmd
}

func newBenchCompareCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "compare BASELINE CANDIDATE",
		Short: "Fail when tracked benchmarks regress past a threshold",
		Long: `Compare two "go test -bench" outputs. Medians of repeated runs (-count) are
compared per benchmark and unit; a candidate slower than the baseline by more than
--threshold fails the command.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 {
				return errors.New("--threshold must be >= 0")
			}
			baseline, err := parseBenchFile(args[0])
			if err != nil {
				return fmt.Errorf("baseline: %w", err)
			}
			candidate, err := parseBenchFile(args[1])
			if err != nil {
				return fmt.Errorf("candidate: %w", err)
			}

			deltas, failures := compareBench(baseline, candidate, threshold)
			out := cmd.OutOrStdout()
			for _, d := range deltas {
				fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", d.Benchmark, d.Unit, d.Baseline, d.Candidate, d.Delta*100)
			}
			if len(failures) > 0 {
				for _, f := range failures {
					fmt.Fprintln(out, "regression:", f)
				}
				return fmt.Errorf("%d benchmark checks failed", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.30, "maximum allowed regression ratio (0.30 = +30%)")
	return cmd
}

func compareBench(baseline, candidate samples, threshold float64) ([]benchDelta, []string) {
	names := make([]string, 0, len(trackedBenchmarks))
	for name := range trackedBenchmarks {
		names = append(names, name)
	}
	slices.Sort(names)

	var (
		deltas   []benchDelta
		failures []string
	)
	for _, name := range names {
		if _, ok := baseline[name]; !ok {
			continue
		}
		for _, unit := range trackedBenchmarks[name] {
			base, cand := median(baseline[name][unit]), median(candidate[name][unit])
			switch {
			case len(candidate[name][unit]) == 0:
				failures = append(failures, fmt.Sprintf("%s %s missing from candidate", name, unit))
				continue
			case base <= 0:
				// zero-alloc baselines may not grow at all
				if cand > 0 {
					failures = append(failures, fmt.Sprintf("%s %s grew from 0 to %.3f", name, unit, cand))
				}
				continue
			}
			d := benchDelta{Benchmark: name, Unit: unit, Baseline: base, Candidate: cand, Delta: (cand - base) / base}
			deltas = append(deltas, d)
			if d.Delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, d.Delta*100, threshold*100))
			}
		}
	}
	return deltas, failures
}

func parseBenchFile(path string) (samples, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return parseBench(fh)
}

// parseBench reads benchmark result lines such as
//
//	BenchmarkValidate-8   1000000   1032 ns/op   480 B/op   9 allocs/op
func parseBench(r io.Reader) (samples, error) {
	out := samples{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := trimProcs(fields[0])
		if _, ok := trackedBenchmarks[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, sc.Err()
}

// trimProcs drops the -GOMAXPROCS suffix go test appends to benchmark names.
func trimProcs(name string) string {
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			return name[:i]
		}
	}
	return name
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
