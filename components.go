package main

import "context"

// Event is the result of a single simulator action.
type Event struct {
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata"`
}

func (e *Event) LastActionSuccess() bool {
	if e == nil {
		return false
	}
	if value, ok := e.Metadata["lastActionSuccess"].(bool); ok {
		return value
	}
	return e.Success
}

func (e *Event) ErrorMessage() string {
	if e == nil {
		return ""
	}
	message, _ := e.Metadata["errorMessage"].(string)
	return message
}

func (e *Event) ActionReturn() any {
	if e == nil {
		return nil
	}
	return e.Metadata["actionReturn"]
}

// Controller is the remote simulator. Calls are issued one at a time and each
// completes (or fails) before the next one starts.
type Controller interface {
	Reset(ctx context.Context, scene string) error
	Step(ctx context.Context, action string, args map[string]any) (*Event, error)
	Stop(ctx context.Context) error
}

type ActionConfig struct {
	Action string         `json:"action" yaml:"action"`
	Args   map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

type Benchmarker interface {
	Name() string
	AggregateKey() string
	TransformedKey() string
	Benchmark(ctx context.Context, env Controller, action ActionConfig, extra map[string]any) (Record, error)
	TransformAggregate(aggregate Aggregate) Aggregate
}

// House is a procedural house definition passed verbatim to CreateHouse.
type House map[string]any

func (h House) ID() string {
	id, _ := h["id"].(string)
	return id
}

type HouseSource interface {
	Name() string
	Load(path string) ([]House, error)
}
