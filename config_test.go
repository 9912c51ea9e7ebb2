package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
name: nightly
scenes: [FloorPlan1, FloorPlan2]
experiment_sample_count: 5
filter_object_types: "*"
controller_timeout: 5s
init_params:
  gridSize: 0.25
  width: 300
action_groups:
  rotate:
    actions:
      - RotateRight
      - action: RotateLeft
        args:
          degrees: 30
    sample_count: 4
    selector: sequential
`)

	config, err := LoadConfig(path)
	require.Nil(t, err)
	require.Nil(t, config.Validate())

	require.Equal(t, "nightly", config.Name)
	require.Equal(t, []string{"FloorPlan1", "FloorPlan2"}, config.Scenes)
	require.Equal(t, 5, config.ExperimentSampleCount)
	require.Equal(t, 1, config.ActionSampleCount)
	require.Equal(t, "*", config.FilterObjectTypes)
	require.Equal(t, 5*time.Second, config.ControllerTimeout)
	require.Equal(t, []string{"SimsPerSecondBenchmarker"}, config.Benchmarkers)
	require.Equal(t, map[string]any{"gridSize": 0.25, "width": 300}, config.InitParams)

	group := config.ActionGroups["rotate"]
	require.Equal(t, 4, *group.SampleCount)
	require.Equal(t, "sequential", group.Selector)
	require.Equal(t, []any{
		"RotateRight",
		map[string]any{"action": "RotateLeft", "args": map[string]any{"degrees": 30}},
	}, group.Actions)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.Nil(t, err)
	require.Equal(t, DefaultConfig(), config)

	_, err = LoadConfig(t.TempDir() + "/missing.yaml")
	require.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeTemp(t, "config-*.yaml", "scenes: {"))
	require.ErrorContains(t, err, "failed to parse config file")
}

func TestConfigValidate(t *testing.T) {
	valid := func() *BenchmarkConfig {
		config := DefaultConfig()
		config.Scenes = []string{"FloorPlan1"}
		return config
	}
	negative := -1

	tests := []struct {
		name   string
		modify func(config *BenchmarkConfig)
		err    string
	}{
		{"no benchmarkers", func(c *BenchmarkConfig) { c.Benchmarkers = nil }, "at least one benchmarker"},
		{"unknown benchmarker", func(c *BenchmarkConfig) { c.Benchmarkers = []string{"Unknown"} }, `invalid benchmarker "Unknown"`},
		{"negative experiments", func(c *BenchmarkConfig) { c.ExperimentSampleCount = -1 }, "experiment_sample_count"},
		{"negative actions", func(c *BenchmarkConfig) { c.ActionSampleCount = -1 }, "action_sample_count"},
		{"no scenes", func(c *BenchmarkConfig) { c.Scenes = nil }, "no scenes or houses file"},
		{"no output", func(c *BenchmarkConfig) { c.OutputFile = "" }, "output_file"},
		{"negative group samples", func(c *BenchmarkConfig) {
			c.ActionGroups = map[string]ActionGroupSpec{"move": {Actions: []any{"MoveAhead"}, SampleCount: &negative}}
		}, "action group move: sample_count"},
		{"unknown selector", func(c *BenchmarkConfig) {
			c.ActionGroups = map[string]ActionGroupSpec{"move": {Actions: []any{"MoveAhead"}, Selector: "weighted"}}
		}, `invalid action selector "weighted"`},
	}

	require.Nil(t, valid().Validate())

	houses := valid()
	houses.Scenes = nil
	houses.HousesFile = "houses.jsonl"
	require.Nil(t, houses.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.modify(config)
			require.ErrorContains(t, config.Validate(), tt.err)
		})
	}
}
