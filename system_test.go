package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const simsPerSecond = "Simulations Per Second"

func testConfig() *BenchmarkConfig {
	config := DefaultConfig()
	config.Name = "test"
	config.Scenes = []string{"FloorPlan1", "FloorPlan2"}
	config.ExperimentSampleCount = 2
	config.ActionSampleCount = 3
	config.Seed = 1
	config.InitParams = map[string]any{"gridSize": 0.25}
	return config
}

func newTestSystem(t *testing.T, config *BenchmarkConfig, env Controller, houses []House) *System {
	system, err := NewSystem(config, env, houses, testLogger(t))
	require.Nil(t, err)
	system.hostStat = func() SysInfo {
		return SysInfo{Arch: "amd64", Hostname: "bench", Platform: "linux", CPUCount: 8, CPUFreq: 2400, RAM: 16}
	}
	return system
}

func TestSystemExperiments(t *testing.T) {
	system := newTestSystem(t, testConfig(), &fakeController{}, []House{{"id": "house-1"}})

	experiments := system.Experiments()
	require.Len(t, experiments, 6)
	scenes := make([]string, 0)
	for _, experiment := range experiments {
		scenes = append(scenes, houseOrScene(experiment.Scene, experiment.House.ID()))
		require.Equal(t, simsPerSecond, experiment.Benchmarker.Name())
	}
	require.Equal(t, []string{"FloorPlan1", "FloorPlan1", "FloorPlan2", "FloorPlan2", "house-1", "house-1"}, scenes)
	require.Equal(t, proceduralScene, experiments[4].Scene)
	require.Equal(t, 1, experiments[5].Index)
}

func TestSystemRun(t *testing.T) {
	env := &fakeController{}
	system := newTestSystem(t, testConfig(), env, nil)
	system.SetBuild(BuildInfo{CommitID: "5e43486", Platform: "Linux64"})

	report, err := system.Run(context.Background())
	require.Nil(t, err)

	require.Equal(t, []string{"FloorPlan1", "FloorPlan1", "FloorPlan2", "FloorPlan2"}, env.resets)
	require.Len(t, env.steps, 36)
	require.Equal(t, 1, env.stopped)

	require.Equal(t, "test", report.Title)
	require.Equal(t, map[string]any{"gridSize": 0.25}, report.ControllerParams)
	require.Equal(t, system.ID(), report.BenchmarkParams["run_id"])
	require.Equal(t, 8, report.BenchmarkParams["cpu"])
	require.Equal(t, 2400.0, report.BenchmarkParams["cpu_freq"])
	require.Equal(t, "5e43486", report.BenchmarkParams["commit_id"])
	require.Equal(t, "Linux64", report.BenchmarkParams["build_platform"])
	require.Equal(t, 3, report.BenchmarkParams["action_sample_number"])
	require.Equal(t, 2, report.BenchmarkParams["experiment_sample_count"])
	require.Equal(t, []string{"MoveAhead", "MoveBack", "MoveLeft", "MoveRight"}, report.ActionGroups["move"])

	benchmarker := report.Benchmarks[simsPerSecond]
	require.NotNil(t, benchmarker)
	require.Equal(t, 36, benchmarker.Global.Count())
	require.Len(t, benchmarker.Scopes, 2)
	for _, scene := range []string{"FloorPlan1", "FloorPlan2"} {
		entries := benchmarker.Scopes[scene]
		require.Equal(t, []string{"look", "move", "rotate", "scene"}, sortedKeys(entries))
		require.Equal(t, 18, entries["scene"].Count())
		require.NotContains(t, entries["scene"], "procedural")
		for _, group := range []string{"look", "move", "rotate"} {
			require.Equal(t, 6, entries[group].Count())
		}
	}
}

func TestSystemRunProceduralHouses(t *testing.T) {
	env := &fakeController{handler: func(action string, args map[string]any) (*Event, error) {
		if action == "CreateHouse" && args["house"].(map[string]any)["id"] == "broken" {
			return failedEvent("invalid house"), nil
		}
		return successEvent(nil), nil
	}}
	config := testConfig()
	config.Scenes = []string{"FloorPlan1"}
	config.ExperimentSampleCount = 1
	system := newTestSystem(t, config, env, []House{{"id": "house-1"}, {"id": "broken"}})

	report, err := system.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, []string{"FloorPlan1", proceduralScene, proceduralScene}, env.resets)
	require.Equal(t, 2, env.count("CreateHouse"))

	benchmarker := report.Benchmarks[simsPerSecond]
	require.Equal(t, 18, benchmarker.Global.Count())
	require.NotContains(t, benchmarker.Scopes, "broken")
	require.NotContains(t, benchmarker.Scopes, proceduralScene)

	house := benchmarker.Scopes["house-1"]
	require.Equal(t, 9, house["scene"].Count())
	require.Equal(t, true, house["scene"]["procedural"])
}

func TestSystemRunPerActionBreakdown(t *testing.T) {
	env := &fakeController{}
	config := testConfig()
	config.IncludePerActionBreakdown = true
	config.OnlyTransformedAggregates = false
	system := newTestSystem(t, config, env, nil)

	report, err := system.Run(context.Background())
	require.Nil(t, err)

	entries := report.Benchmarks[simsPerSecond].Scopes["FloorPlan1"]
	perAction := 0
	for key, aggregate := range entries {
		switch key {
		case "scene", "look", "move", "rotate":
		default:
			require.Contains(t, []string{"MoveAhead", "MoveBack", "MoveLeft", "MoveRight", "RotateRight", "RotateLeft", "LookUp", "LookDown"}, key)
			perAction += aggregate.Count()
		}
		require.Contains(t, aggregate, "average_frametime")
	}
	require.Equal(t, 18, perAction)
}

func TestSystemRunSetupSteps(t *testing.T) {
	env := &fakeController{}
	config := testConfig()
	config.FilterObjectTypes = "*"
	config.TeleportRandomBeforeActions = true
	system := newTestSystem(t, config, env, nil)

	_, err := system.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, 4, env.count("SetObjectFilter"))
	require.Equal(t, 12, env.count("GetReachablePositions"))
}

func TestSystemRunSkipsFailures(t *testing.T) {
	steps := 0
	env := &fakeController{
		resetErr: map[string]error{"FloorPlan2": errTransport},
		handler: func(string, map[string]any) (*Event, error) {
			steps++
			if steps%2 == 0 {
				return nil, errTransport
			}
			return successEvent(nil), nil
		},
	}
	system := newTestSystem(t, testConfig(), env, nil)

	report, err := system.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, 1, env.stopped)

	benchmarker := report.Benchmarks[simsPerSecond]
	require.NotContains(t, benchmarker.Scopes, "FloorPlan2")
	require.Equal(t, 9, benchmarker.Global.Count())
}

func TestSystemRunCancelled(t *testing.T) {
	env := &fakeController{}
	system := newTestSystem(t, testConfig(), env, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := system.Run(ctx)
	require.Nil(t, err)
	require.Empty(t, env.resets)
	require.Equal(t, 1, env.stopped)
	require.Empty(t, report.Benchmarks)
}
