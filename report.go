package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

const (
	globalKey = "global"
	sceneKey  = "scene"
)

// BenchmarkerReport holds one benchmarker's aggregates: a global aggregate and,
// per scene or house, aggregates keyed by "scene", action group or action name.
type BenchmarkerReport struct {
	Global Aggregate
	Scopes map[string]map[string]Aggregate
}

// MarshalJSON flattens the global aggregate next to the scopes.
func (r BenchmarkerReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Scopes)+1)
	for scope, entries := range r.Scopes {
		out[scope] = entries
	}
	if r.Global != nil {
		out[globalKey] = r.Global
	}
	return json.Marshal(out)
}

type Report struct {
	Title            string                        `json:"title"`
	Benchmarks       map[string]*BenchmarkerReport `json:"benchmarks"`
	ControllerParams map[string]any                `json:"controller_params"`
	BenchmarkParams  map[string]any                `json:"benchmark_params"`
	ActionGroups     map[string][]string           `json:"action_groups"`
	ControllerStats  map[string]Aggregate          `json:"controller_stats,omitempty"`
}

func NewReport(title string) *Report {
	return &Report{
		Title:            title,
		Benchmarks:       make(map[string]*BenchmarkerReport),
		ControllerParams: make(map[string]any),
		BenchmarkParams:  make(map[string]any),
		ActionGroups:     make(map[string][]string),
	}
}

func (r *Report) benchmarker(name string) *BenchmarkerReport {
	report, ok := r.Benchmarks[name]
	if !ok {
		report = &BenchmarkerReport{Scopes: make(map[string]map[string]Aggregate)}
		r.Benchmarks[name] = report
	}
	return report
}

func (r *Report) Set(benchmarker, scope, key string, aggregate Aggregate) {
	report := r.benchmarker(benchmarker)
	entries, ok := report.Scopes[scope]
	if !ok {
		entries = make(map[string]Aggregate)
		report.Scopes[scope] = entries
	}
	entries[key] = aggregate
}

func (r *Report) SetGlobal(benchmarker string, aggregate Aggregate) {
	r.benchmarker(benchmarker).Global = aggregate
}

func (r *Report) Get(benchmarker, scope, key string) (Aggregate, bool) {
	report, ok := r.Benchmarks[benchmarker]
	if !ok {
		return nil, false
	}
	aggregate, ok := report.Scopes[scope][key]
	return aggregate, ok
}

// WriteReport writes the report as indented JSON, creating parent directories.
func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report dir %v: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %v: %w", path, err)
	}
	return nil
}

// GenerateSummary writes a markdown table per benchmarker.
func GenerateSummary(w io.Writer, report *Report) error {
	if len(report.Benchmarks) == 0 {
		return fmt.Errorf("no results to report")
	}

	title := report.Title
	if title == "" {
		title = "Benchmark Results"
	}
	fmt.Fprintf(w, "## %v\n\n", title)

	for _, name := range sortedKeys(report.Benchmarks) {
		benchmarker := report.Benchmarks[name]
		columns := metricColumns(benchmarker)

		fmt.Fprintf(w, "### %v\n\n", name)
		fmt.Fprintf(w, "| Scope | Entry | Count | %v |\n", strings.Join(columns, " | "))
		fmt.Fprintf(w, "|-------|-------|-------|%v\n", strings.Repeat("------|", len(columns)))

		if benchmarker.Global != nil {
			writeSummaryRow(w, globalKey, "-", benchmarker.Global, columns)
		}
		for _, scope := range sortedKeys(benchmarker.Scopes) {
			entries := benchmarker.Scopes[scope]
			for _, key := range sortedKeys(entries) {
				writeSummaryRow(w, scope, key, entries[key], columns)
			}
		}
		fmt.Fprintln(w)
	}

	if len(report.ControllerStats) > 0 {
		fmt.Fprintf(w, "### Controller\n\n")
		fmt.Fprintf(w, "| Call | Count | Failures | Mean ms |\n")
		fmt.Fprintf(w, "|------|-------|----------|---------|\n")
		for _, call := range sortedKeys(report.ControllerStats) {
			stat := report.ControllerStats[call]
			failures, _ := stat.Float("failures")
			mean, _ := stat.Float("average_duration_ms")
			fmt.Fprintf(w, "| %v | %v | %v | %.3f |\n", call, stat.Count(), failures, mean)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeSummaryRow(w io.Writer, scope, key string, aggregate Aggregate, columns []string) {
	cells := make([]string, 0, len(columns))
	for _, column := range columns {
		if value, ok := aggregate.Float(column); ok {
			cells = append(cells, fmt.Sprintf("%.4f", value))
		} else {
			cells = append(cells, "-")
		}
	}
	fmt.Fprintf(w, "| %v | %v | %v | %v |\n", scope, key, aggregate.Count(), strings.Join(cells, " | "))
}

func metricColumns(report *BenchmarkerReport) []string {
	seen := make(map[string]bool)
	collect := func(aggregate Aggregate) {
		for key, value := range aggregate {
			if key == countKey {
				continue
			}
			if _, ok := toFloat(value); ok {
				seen[key] = true
			}
		}
	}
	collect(report.Global)
	for _, entries := range report.Scopes {
		for _, aggregate := range entries {
			collect(aggregate)
		}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
