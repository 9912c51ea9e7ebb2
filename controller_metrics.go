package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MeteredController emits OpenTelemetry metrics for every controller call.
type MeteredController struct {
	next      Controller
	calls     metric.Int64Counter
	durations metric.Float64Histogram
}

func NewMeteredController(next Controller, meter metric.Meter) (*MeteredController, error) {
	calls, err := meter.Int64Counter("thor.controller.calls")
	if err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	durations, err := meter.Float64Histogram("thor.controller.duration.ms")
	if err != nil {
		return nil, fmt.Errorf("create histogram: %w", err)
	}
	return &MeteredController{next: next, calls: calls, durations: durations}, nil
}

func (c *MeteredController) Reset(ctx context.Context, scene string) error {
	start := time.Now()
	err := c.next.Reset(ctx, scene)
	c.rec(ctx, "Reset", start, attribute.String("scene", scene), attribute.Bool("success", err == nil))
	return err
}

func (c *MeteredController) Step(ctx context.Context, action string, args map[string]any) (*Event, error) {
	start := time.Now()
	event, err := c.next.Step(ctx, action, args)
	c.rec(ctx, "Step", start, attribute.String("action", action), attribute.Bool("success", err == nil && event.LastActionSuccess()))
	return event, err
}

func (c *MeteredController) Stop(ctx context.Context) error {
	start := time.Now()
	err := c.next.Stop(ctx)
	c.rec(ctx, "Stop", start, attribute.Bool("success", err == nil))
	return err
}

func (c *MeteredController) rec(ctx context.Context, method string, start time.Time, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("method", method))
	c.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	c.durations.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(attrs...))
}

// ControllerMetrics owns the meter provider behind MeteredController and
// turns the collected instruments into per-call aggregates for the report.
type ControllerMetrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

func NewControllerMetrics() *ControllerMetrics {
	reader := sdkmetric.NewManualReader()
	return &ControllerMetrics{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

func (m *ControllerMetrics) Meter() metric.Meter {
	return m.provider.Meter("github.com/sivukhin/thor-benchmark")
}

func (m *ControllerMetrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

type callStat struct {
	calls         int64
	failures      int64
	durationSum   float64
	durationCount uint64
}

// Collect aggregates controller calls by method ("Step/<action>" for steps):
// count, failures and average_duration_ms.
func (m *ControllerMetrics) Collect(ctx context.Context) (map[string]Aggregate, error) {
	var data metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &data); err != nil {
		return nil, fmt.Errorf("collect controller metrics: %w", err)
	}

	stats := make(map[string]*callStat)
	stat := func(attrs attribute.Set) (*callStat, bool) {
		key := callKey(attrs)
		s, ok := stats[key]
		if !ok {
			s = &callStat{}
			stats[key] = s
		}
		success, _ := attrs.Value("success")
		return s, success.AsBool()
	}
	for _, scope := range data.ScopeMetrics {
		for _, instrument := range scope.Metrics {
			switch points := instrument.Data.(type) {
			case metricdata.Sum[int64]:
				for _, point := range points.DataPoints {
					s, success := stat(point.Attributes)
					s.calls += point.Value
					if !success {
						s.failures += point.Value
					}
				}
			case metricdata.Histogram[float64]:
				for _, point := range points.DataPoints {
					s, _ := stat(point.Attributes)
					s.durationSum += point.Sum
					s.durationCount += point.Count
				}
			}
		}
	}

	result := make(map[string]Aggregate, len(stats))
	for key, s := range stats {
		aggregate := Aggregate{
			countKey:   int(s.calls),
			"failures": int(s.failures),
		}
		if s.durationCount > 0 {
			aggregate["average_duration_ms"] = s.durationSum / float64(s.durationCount)
		}
		result[key] = aggregate
	}
	return result, nil
}

func callKey(attrs attribute.Set) string {
	method, _ := attrs.Value("method")
	if action, ok := attrs.Value("action"); ok {
		return method.AsString() + "/" + action.AsString()
	}
	return method.AsString()
}
