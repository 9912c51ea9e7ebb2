package main

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	ErrMissingKey = errors.New("record is missing key")
	ErrNotNumeric = errors.New("metric value is not numeric")
)

const countKey = "count"

// Record is a single measurement produced by a benchmarker for one action.
type Record map[string]any

// With returns a copy of the record extended by extra; the receiver is not modified.
func (r Record) With(extra map[string]any) Record {
	merged := make(Record, len(r)+len(extra))
	maps.Copy(merged, r)
	maps.Copy(merged, extra)
	return merged
}

// Aggregate is the summary of one group: at least "count" and the mean of the
// aggregated metric, possibly rewritten by a benchmarker transform.
type Aggregate map[string]any

func (a Aggregate) Count() int {
	count, _ := a[countKey].(int)
	return count
}

func (a Aggregate) Float(key string) (float64, bool) {
	return toFloat(a[key])
}

func (a Aggregate) Clone() Aggregate {
	return maps.Clone(a)
}

// GroupKey is the tuple of dimension values shared by all records of a group.
// A single dimension produces the bare value.
type GroupKey string

const groupKeySeparator = "\x1f"

func NewGroupKey(values ...string) GroupKey {
	return GroupKey(strings.Join(values, groupKeySeparator))
}

func (k GroupKey) Values() []string {
	return strings.Split(string(k), groupKeySeparator)
}

// AggregateBy groups records by the dimension values and averages the
// benchmarker's metric per group. The benchmarker transform is applied when
// transform is set.
func AggregateBy(records []Record, dimensions []string, benchmarker Benchmarker, transform bool) (map[GroupKey]Aggregate, error) {
	var transformFn func(Aggregate) Aggregate
	if transform {
		transformFn = benchmarker.TransformAggregate
	}
	key := benchmarker.AggregateKey()
	return AggregateByKey(records, dimensions, key, key, transformFn)
}

// AggregateByKey is AggregateBy with an explicit metric key, output key and
// transform (nil means identity).
func AggregateByKey(
	records []Record,
	dimensions []string,
	metricKey string,
	outKey string,
	transform func(Aggregate) Aggregate,
) (map[GroupKey]Aggregate, error) {
	type group struct {
		count int
		sum   float64
	}
	groups := make(map[GroupKey]*group)
	values := make([]string, len(dimensions))
	for i, record := range records {
		for j, dimension := range dimensions {
			value, ok := record[dimension]
			if !ok {
				return nil, fmt.Errorf("record #%v: %w %q", i, ErrMissingKey, dimension)
			}
			values[j] = fmt.Sprintf("%v", value)
		}
		raw, ok := record[metricKey]
		if !ok {
			return nil, fmt.Errorf("record #%v: %w %q", i, ErrMissingKey, metricKey)
		}
		metric, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("record #%v: %w: %v=%v", i, ErrNotNumeric, metricKey, raw)
		}

		key := NewGroupKey(values...)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.count++
		g.sum += metric
	}

	aggregates := make(map[GroupKey]Aggregate, len(groups))
	for key, g := range groups {
		aggregate := Aggregate{
			countKey: g.count,
			outKey:   g.sum / float64(g.count),
		}
		if transform != nil {
			aggregate = transform(aggregate)
		}
		aggregates[key] = aggregate
	}
	return aggregates, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case time.Duration:
		return v.Seconds(), true
	}
	return 0, false
}
