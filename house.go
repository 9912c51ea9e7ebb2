package main

import (
	"context"
	"maps"
	"math/rand"
	"strings"

	"go.uber.org/zap"
)

type Vec3 struct {
	X, Y, Z float64
}

func vec3(raw any) (Vec3, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Vec3{}, false
	}
	x, okX := toFloat(m["x"])
	y, okY := toFloat(m["y"])
	z, okZ := toFloat(m["z"])
	return Vec3{X: x, Y: y, Z: z}, okX && okY && okZ
}

func vec3List(raw any) []Vec3 {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	result := make([]Vec3, 0, len(items))
	for _, item := range items {
		if v, ok := vec3(item); ok {
			result = append(result, v)
		}
	}
	return result
}

// CreateProceduralHouse loads the house into the current scene and reports
// whether the simulator accepted it.
func CreateProceduralHouse(ctx context.Context, env Controller, house House, logger *zap.SugaredLogger) bool {
	logger.Infof("creating procedural house %v", house.ID())
	event, err := env.Step(ctx, "CreateHouse", map[string]any{"house": map[string]any(house)})
	if err != nil {
		logger.Warnf("CreateHouse request failed for house %v: %v", house.ID(), err)
		return false
	}
	if !event.LastActionSuccess() {
		logger.Warnf("CreateHouse failed for house %v: %v", house.ID(), event.ErrorMessage())
		return false
	}
	return true
}

// ApplyObjectFilter restricts object metadata to the given comma separated
// types; "*" filters out every object.
func ApplyObjectFilter(ctx context.Context, env Controller, filter string, logger *zap.SugaredLogger) {
	if filter == "" {
		return
	}
	var event *Event
	var err error
	if filter == "*" {
		logger.Info("filter all objects from metadata")
		event, err = env.Step(ctx, "SetObjectFilter", map[string]any{"objectIds": []string{}})
	} else {
		types := strings.Split(filter, ",")
		for i := range types {
			types[i] = strings.TrimSpace(types[i])
		}
		event, err = env.Step(ctx, "SetObjectFilterForType", map[string]any{"objectTypes": types})
	}
	if err != nil {
		logger.Warnf("object filter request failed: %v", err)
		return
	}
	logger.Infof("object filter %q, success: %v, error: %v", filter, event.LastActionSuccess(), event.ErrorMessage())
}

// FloorCentroid averages the polygon vertices. The sum starts at y=2 so that an
// empty room is approached from above the floor.
func FloorCentroid(polygon []Vec3) Vec3 {
	total := Vec3{Y: 2}
	if len(polygon) == 0 {
		return total
	}
	for _, p := range polygon {
		total.X += p.X
		total.Y += p.Y
		total.Z += p.Z
	}
	n := float64(len(polygon))
	return Vec3{X: total.X / n, Y: total.Y / n, Z: total.Z / n}
}

func firstRoomFloor(house House) []Vec3 {
	rooms, ok := house["rooms"].([]any)
	if !ok || len(rooms) == 0 {
		return nil
	}
	room, ok := rooms[0].(map[string]any)
	if !ok {
		return nil
	}
	return vec3List(room["floorPolygon"])
}

func reachable(event *Event) []Vec3 {
	if !event.LastActionSuccess() {
		return nil
	}
	return vec3List(event.ActionReturn())
}

func teleportFull(position Vec3, yaw float64, force bool) map[string]any {
	args := map[string]any{
		"x":        position.X,
		"y":        position.Y,
		"z":        position.Z,
		"rotation": map[string]any{"x": 0, "y": yaw, "z": 0},
		"horizon":  0.0,
		"standing": true,
	}
	if force {
		args["forceAction"] = true
	}
	return args
}

// TeleportToRandomReachable moves the agent to a random reachable position. For
// houses where reachability cannot be computed from the spawn point, the agent
// is first placed at the house's agent pose or in the middle of the first room.
func TeleportToRandomReachable(ctx context.Context, env Controller, house House, rng *rand.Rand, logger *zap.SugaredLogger) {
	event, err := env.Step(ctx, "GetReachablePositions", nil)
	if err != nil {
		logger.Warnf("GetReachablePositions request failed: %v", err)
		return
	}

	if house != nil && !event.LastActionSuccess() {
		if metadata, ok := house["metadata"].(map[string]any); ok {
			if _, ok := metadata["agent"]; ok {
				logger.Info("teleporting to house agent pose")
				args := maps.Clone(metadata)
				args["forceAction"] = true
				if event, err = env.Step(ctx, "TeleportFull", args); err != nil {
					logger.Warnf("TeleportFull request failed: %v", err)
					return
				}
			}
		}
	}

	if house != nil && len(reachable(event)) == 0 {
		position := FloorCentroid(firstRoomFloor(house))
		event, err = env.Step(ctx, "TeleportFull", teleportFull(position, 0, true))
		if err != nil {
			logger.Warnf("TeleportFull request failed: %v", err)
			return
		}
		logger.Infof("teleport to room centroid %+v, error: %v", position, event.ErrorMessage())
		if event, err = env.Step(ctx, "GetReachablePositions", nil); err != nil {
			logger.Warnf("GetReachablePositions request failed: %v", err)
			return
		}
	}

	logger.Infof("GetReachablePositions success: %v, message: %v", event.LastActionSuccess(), event.ErrorMessage())

	positions := vec3List(event.ActionReturn())
	if len(positions) == 0 {
		return
	}
	position := positions[rng.Intn(len(positions))]
	yaw := float64(rng.Intn(4) * 90)
	if _, err := env.Step(ctx, "TeleportFull", teleportFull(position, yaw, false)); err != nil {
		logger.Warnf("TeleportFull request failed: %v", err)
	}
}
