package main

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
)

var ErrInvalidSelector = errors.New("invalid action selector")

// ActionGroupSpec is the configured form of an action group. Actions are either
// bare action names or {action, args} maps.
type ActionGroupSpec struct {
	Actions     []any  `json:"actions" yaml:"actions"`
	SampleCount *int   `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`
	Selector    string `json:"selector,omitempty" yaml:"selector,omitempty"`
}

type Selector func(actions []ActionConfig) ActionConfig

type ActionGroup struct {
	Name        string
	Actions     []ActionConfig
	SampleCount int
	Selector    Selector
}

func (g ActionGroup) ActionNames() []string {
	names := make([]string, 0, len(g.Actions))
	for _, action := range g.Actions {
		names = append(names, action.Action)
	}
	return names
}

func DefaultActionGroups() map[string]ActionGroupSpec {
	return map[string]ActionGroupSpec{
		"move":   {Actions: []any{"MoveAhead", "MoveBack", "MoveLeft", "MoveRight"}},
		"rotate": {Actions: []any{"RotateRight", "RotateLeft"}},
		"look":   {Actions: []any{"LookUp", "LookDown"}},
	}
}

func RandomSelector(rng *rand.Rand) Selector {
	return func(actions []ActionConfig) ActionConfig {
		return actions[rng.Intn(len(actions))]
	}
}

func SequentialSelector() Selector {
	next := 0
	return func(actions []ActionConfig) ActionConfig {
		action := actions[next%len(actions)]
		next++
		return action
	}
}

func NewSelector(name string, rng *rand.Rand) (Selector, error) {
	switch name {
	case "", "random":
		return RandomSelector(rng), nil
	case "sequential":
		return SequentialSelector(), nil
	}
	return nil, fmt.Errorf("%w %q (valid: random, sequential)", ErrInvalidSelector, name)
}

// CompleteActionGroups normalizes configured groups, sorted by name. Entries
// without an action name are dropped.
func CompleteActionGroups(specs map[string]ActionGroupSpec, defaultSampleCount int, rng *rand.Rand) ([]ActionGroup, error) {
	if len(specs) == 0 {
		specs = DefaultActionGroups()
	}
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	slices.Sort(names)

	groups := make([]ActionGroup, 0, len(specs))
	for _, name := range names {
		spec := specs[name]
		actions := make([]ActionConfig, 0, len(spec.Actions))
		for _, raw := range spec.Actions {
			action, ok := parseAction(raw)
			if !ok {
				continue
			}
			actions = append(actions, action)
		}
		if len(actions) == 0 {
			return nil, fmt.Errorf("action group %v has no actions", name)
		}
		sampleCount := defaultSampleCount
		if spec.SampleCount != nil {
			sampleCount = *spec.SampleCount
		}
		selector, err := NewSelector(spec.Selector, rng)
		if err != nil {
			return nil, fmt.Errorf("action group %v: %w", name, err)
		}
		groups = append(groups, ActionGroup{
			Name:        name,
			Actions:     actions,
			SampleCount: sampleCount,
			Selector:    selector,
		})
	}
	return groups, nil
}

func parseAction(raw any) (ActionConfig, bool) {
	switch v := raw.(type) {
	case string:
		return ActionConfig{Action: v, Args: map[string]any{}}, true
	case ActionConfig:
		if v.Action == "" {
			return ActionConfig{}, false
		}
		if v.Args == nil {
			v.Args = map[string]any{}
		}
		return v, true
	case map[string]any:
		name, ok := v["action"].(string)
		if !ok || name == "" {
			return ActionConfig{}, false
		}
		args, _ := v["args"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		return ActionConfig{Action: name, Args: args}, true
	}
	return ActionConfig{}, false
}
