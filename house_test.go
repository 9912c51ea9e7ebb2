package main

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHouse() House {
	return House{
		"id": "house-1",
		"rooms": []any{
			map[string]any{"floorPolygon": []any{
				map[string]any{"x": 0.0, "y": 0.0, "z": 0.0},
				map[string]any{"x": 4.0, "y": 0.0, "z": 0.0},
				map[string]any{"x": 4.0, "y": 0.0, "z": 4.0},
				map[string]any{"x": 0.0, "y": 0.0, "z": 4.0},
			}},
		},
	}
}

func positions(points ...Vec3) []any {
	result := make([]any, 0, len(points))
	for _, p := range points {
		result = append(result, map[string]any{"x": p.X, "y": p.Y, "z": p.Z})
	}
	return result
}

func TestFloorCentroid(t *testing.T) {
	require.Equal(t, Vec3{X: 2, Y: 0.5, Z: 2}, FloorCentroid([]Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 4, Y: 0, Z: 0},
		{X: 4, Y: 0, Z: 4},
		{X: 0, Y: 0, Z: 4},
	}))
	require.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, FloorCentroid([]Vec3{{X: 1, Y: 0, Z: 3}}))
	require.Equal(t, Vec3{Y: 2}, FloorCentroid(nil))
}

func TestCreateProceduralHouse(t *testing.T) {
	env := &fakeController{}
	require.True(t, CreateProceduralHouse(context.Background(), env, testHouse(), testLogger(t)))
	require.Equal(t, []string{"CreateHouse"}, env.actions())
	require.Equal(t, map[string]any(testHouse()), env.steps[0].Args["house"])

	failing := &fakeController{handler: func(string, map[string]any) (*Event, error) {
		return failedEvent("invalid house"), nil
	}}
	require.False(t, CreateProceduralHouse(context.Background(), failing, testHouse(), testLogger(t)))

	broken := &fakeController{handler: func(string, map[string]any) (*Event, error) {
		return nil, errTransport
	}}
	require.False(t, CreateProceduralHouse(context.Background(), broken, testHouse(), testLogger(t)))
}

func TestApplyObjectFilter(t *testing.T) {
	env := &fakeController{}
	ApplyObjectFilter(context.Background(), env, "", testLogger(t))
	require.Empty(t, env.steps)

	ApplyObjectFilter(context.Background(), env, "*", testLogger(t))
	require.Equal(t, fakeStep{Action: "SetObjectFilter", Args: map[string]any{"objectIds": []string{}}}, env.steps[0])

	ApplyObjectFilter(context.Background(), env, "Chair, Table", testLogger(t))
	require.Equal(t, fakeStep{
		Action: "SetObjectFilterForType",
		Args:   map[string]any{"objectTypes": []string{"Chair", "Table"}},
	}, env.steps[1])
}

func TestTeleportToRandomReachable(t *testing.T) {
	reachablePositions := positions(Vec3{X: 1, Y: 0.9, Z: 1}, Vec3{X: 2, Y: 0.9, Z: 2})
	env := &fakeController{handler: func(action string, _ map[string]any) (*Event, error) {
		if action == "GetReachablePositions" {
			return successEvent(reachablePositions), nil
		}
		return successEvent(nil), nil
	}}

	TeleportToRandomReachable(context.Background(), env, nil, rand.New(rand.NewSource(1)), testLogger(t))
	require.Equal(t, []string{"GetReachablePositions", "TeleportFull"}, env.actions())

	args := env.steps[1].Args
	require.Contains(t, []float64{1, 2}, args["x"])
	require.Equal(t, 0.9, args["y"])
	require.NotContains(t, args, "forceAction")
	rotation := args["rotation"].(map[string]any)
	require.Contains(t, []float64{0, 90, 180, 270}, rotation["y"])
}

func TestTeleportToRandomReachableHouseFallback(t *testing.T) {
	queries := 0
	env := &fakeController{handler: func(action string, _ map[string]any) (*Event, error) {
		if action != "GetReachablePositions" {
			return successEvent(nil), nil
		}
		queries++
		if queries == 1 {
			return failedEvent("agent is outside the house"), nil
		}
		return successEvent(positions(Vec3{X: 3, Y: 0.9, Z: 3})), nil
	}}

	TeleportToRandomReachable(context.Background(), env, testHouse(), rand.New(rand.NewSource(1)), testLogger(t))
	require.Equal(t, []string{"GetReachablePositions", "TeleportFull", "GetReachablePositions", "TeleportFull"}, env.actions())

	centroid := env.steps[1].Args
	require.Equal(t, 2.0, centroid["x"])
	require.Equal(t, 0.5, centroid["y"])
	require.Equal(t, 2.0, centroid["z"])
	require.Equal(t, true, centroid["forceAction"])

	final := env.steps[3].Args
	require.Equal(t, 3.0, final["x"])
}

func TestTeleportToRandomReachableAgentPose(t *testing.T) {
	house := testHouse()
	house["metadata"] = map[string]any{"agent": map[string]any{"horizon": 30}}

	queries := 0
	env := &fakeController{handler: func(action string, _ map[string]any) (*Event, error) {
		switch action {
		case "GetReachablePositions":
			queries++
			return failedEvent("no reachable positions"), nil
		case "TeleportFull":
			return successEvent(nil), nil
		}
		return successEvent(nil), nil
	}}

	TeleportToRandomReachable(context.Background(), env, house, rand.New(rand.NewSource(1)), testLogger(t))
	require.Equal(t, []string{"GetReachablePositions", "TeleportFull", "TeleportFull", "GetReachablePositions"}, env.actions())
	require.Equal(t, map[string]any{"agent": map[string]any{"horizon": 30}, "forceAction": true}, env.steps[1].Args)
	require.Equal(t, 2, queries)

	metadata := house["metadata"].(map[string]any)
	require.NotContains(t, metadata, "forceAction")
}

func TestTeleportToRandomReachableUsesReturnedPositions(t *testing.T) {
	env := &fakeController{handler: func(action string, _ map[string]any) (*Event, error) {
		if action == "GetReachablePositions" {
			event := failedEvent("partial")
			event.Metadata["actionReturn"] = positions(Vec3{X: 5, Y: 0.9, Z: 5})
			return event, nil
		}
		return successEvent(nil), nil
	}}

	TeleportToRandomReachable(context.Background(), env, nil, rand.New(rand.NewSource(1)), testLogger(t))
	require.Equal(t, []string{"GetReachablePositions", "TeleportFull"}, env.actions())
	require.Equal(t, 5.0, env.steps[1].Args["x"])
}
