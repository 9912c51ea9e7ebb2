package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidBenchmarker = errors.New("invalid benchmarker")

type benchmarkerFactory func(onlyTransformed bool, logger *zap.SugaredLogger) Benchmarker

var benchmarkers = map[string]benchmarkerFactory{
	"SimsPerSecondBenchmarker": func(onlyTransformed bool, logger *zap.SugaredLogger) Benchmarker {
		return &SimsPerSecondBenchmarker{OnlyTransformedKey: onlyTransformed, Logger: logger}
	},
}

func BenchmarkerNames() []string {
	names := make([]string, 0, len(benchmarkers))
	for name := range benchmarkers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewBenchmarkers resolves benchmarker class names, failing on the first unknown one.
func NewBenchmarkers(names []string, onlyTransformed bool, logger *zap.SugaredLogger) ([]Benchmarker, error) {
	result := make([]Benchmarker, 0, len(names))
	for _, name := range names {
		factory, ok := benchmarkers[name]
		if !ok {
			return nil, fmt.Errorf("%w %q (valid: %v)", ErrInvalidBenchmarker, name, strings.Join(BenchmarkerNames(), ", "))
		}
		result = append(result, factory(onlyTransformed, logger))
	}
	return result, nil
}

// SimsPerSecondBenchmarker measures the wall time of a single simulator step.
type SimsPerSecondBenchmarker struct {
	OnlyTransformedKey bool
	Logger             *zap.SugaredLogger
}

func (b *SimsPerSecondBenchmarker) Name() string           { return "Simulations Per Second" }
func (b *SimsPerSecondBenchmarker) AggregateKey() string   { return "average_frametime" }
func (b *SimsPerSecondBenchmarker) TransformedKey() string { return "average_sims_per_second" }

func (b *SimsPerSecondBenchmarker) Benchmark(
	ctx context.Context,
	env Controller,
	action ActionConfig,
	extra map[string]any,
) (Record, error) {
	start := time.Now()
	event, err := env.Step(ctx, action.Action, action.Args)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("step %v failed: %w", action.Action, err)
	}
	if !event.LastActionSuccess() && b.Logger != nil {
		b.Logger.Debugf("action %v failed: %v", action.Action, event.ErrorMessage())
	}

	record := Record{
		"action":         action.Action,
		countKey:         1,
		b.AggregateKey(): elapsed.Seconds(),
	}
	return record.With(extra), nil
}

// TransformAggregate turns the mean frame time into a rate. A non-positive
// mean has no rate and is left as is.
func (b *SimsPerSecondBenchmarker) TransformAggregate(aggregate Aggregate) Aggregate {
	frametime, ok := aggregate.Float(b.AggregateKey())
	if !ok || frametime <= 0 {
		return aggregate
	}
	aggregate[b.TransformedKey()] = 1 / frametime
	if b.OnlyTransformedKey {
		delete(aggregate, b.AggregateKey())
	}
	return aggregate
}
