package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type BenchmarkConfig struct {
	Name         string         `json:"name" yaml:"name"`
	Benchmarkers []string       `json:"benchmarkers" yaml:"benchmarkers"`
	InitParams   map[string]any `json:"init_params" yaml:"init_params"`

	Scenes     []string `json:"scenes" yaml:"scenes"`
	HousesFile string   `json:"houses_file" yaml:"houses_file"`

	ActionSampleCount           int    `json:"action_sample_count" yaml:"action_sample_count"`
	ExperimentSampleCount       int    `json:"experiment_sample_count" yaml:"experiment_sample_count"`
	FilterObjectTypes           string `json:"filter_object_types" yaml:"filter_object_types"`
	TeleportRandomBeforeActions bool   `json:"teleport_random_before_actions" yaml:"teleport_random_before_actions"`
	Seed                        int64  `json:"seed" yaml:"seed"`

	ActionGroups map[string]ActionGroupSpec `json:"action_groups" yaml:"action_groups"`

	IncludePerActionBreakdown bool `json:"include_per_action_breakdown" yaml:"include_per_action_breakdown"`
	OnlyTransformedAggregates bool `json:"only_transformed_aggregates" yaml:"only_transformed_aggregates"`

	Verbose    bool   `json:"verbose" yaml:"verbose"`
	OutputFile string `json:"output_file" yaml:"output_file"`

	ControllerURL     string        `json:"controller_url" yaml:"controller_url"`
	ControllerTimeout time.Duration `json:"controller_timeout" yaml:"controller_timeout"`
	ResultsDb         string        `json:"results_db" yaml:"results_db"`
}

func DefaultConfig() *BenchmarkConfig {
	return &BenchmarkConfig{
		Benchmarkers:              []string{"SimsPerSecondBenchmarker"},
		InitParams:                map[string]any{},
		ActionSampleCount:         1,
		ExperimentSampleCount:     100,
		OnlyTransformedAggregates: true,
		OutputFile:                "benchmark.json",
		ControllerURL:             "http://localhost:8200",
		ControllerTimeout:         60 * time.Second,
	}
}

// LoadConfig reads a YAML config on top of the defaults.
func LoadConfig(path string) (*BenchmarkConfig, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %v: %w", path, err)
	}
	return config, nil
}

func (c *BenchmarkConfig) Validate() error {
	if len(c.Benchmarkers) == 0 {
		return fmt.Errorf("at least one benchmarker must be specified")
	}
	for _, name := range c.Benchmarkers {
		if _, ok := benchmarkers[name]; !ok {
			return fmt.Errorf("%w %q (valid: %v)", ErrInvalidBenchmarker, name, strings.Join(BenchmarkerNames(), ", "))
		}
	}
	if c.ActionSampleCount < 0 {
		return fmt.Errorf("action_sample_count must be non-negative, got %v", c.ActionSampleCount)
	}
	if c.ExperimentSampleCount < 0 {
		return fmt.Errorf("experiment_sample_count must be non-negative, got %v", c.ExperimentSampleCount)
	}
	if len(c.Scenes) == 0 && c.HousesFile == "" {
		return fmt.Errorf("no scenes or houses file configured")
	}
	for name, group := range c.ActionGroups {
		if group.SampleCount != nil && *group.SampleCount < 0 {
			return fmt.Errorf("action group %v: sample_count must be non-negative, got %v", name, *group.SampleCount)
		}
		if group.Selector != "" && group.Selector != "random" && group.Selector != "sequential" {
			return fmt.Errorf("action group %v: %w %q (valid: random, sequential)", name, ErrInvalidSelector, group.Selector)
		}
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output_file must not be empty")
	}
	return nil
}
