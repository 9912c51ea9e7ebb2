package main

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeStep struct {
	Action string
	Args   map[string]any
}

type fakeController struct {
	resets  []string
	steps   []fakeStep
	stopped int

	resetErr map[string]error
	handler  func(action string, args map[string]any) (*Event, error)
}

func (c *fakeController) Reset(_ context.Context, scene string) error {
	c.resets = append(c.resets, scene)
	if err := c.resetErr[scene]; err != nil {
		return err
	}
	return nil
}

func (c *fakeController) Step(_ context.Context, action string, args map[string]any) (*Event, error) {
	c.steps = append(c.steps, fakeStep{Action: action, Args: args})
	if c.handler != nil {
		return c.handler(action, args)
	}
	return successEvent(nil), nil
}

func (c *fakeController) Stop(_ context.Context) error {
	c.stopped++
	return nil
}

func (c *fakeController) actions() []string {
	actions := make([]string, 0, len(c.steps))
	for _, step := range c.steps {
		actions = append(actions, step.Action)
	}
	return actions
}

func (c *fakeController) count(action string) int {
	count := 0
	for _, step := range c.steps {
		if step.Action == action {
			count++
		}
	}
	return count
}

func successEvent(actionReturn any) *Event {
	return &Event{Success: true, Metadata: map[string]any{
		"lastActionSuccess": true,
		"errorMessage":      "",
		"actionReturn":      actionReturn,
	}}
}

func failedEvent(message string) *Event {
	return &Event{Success: false, Metadata: map[string]any{
		"lastActionSuccess": false,
		"errorMessage":      message,
		"actionReturn":      nil,
	}}
}

var errTransport = fmt.Errorf("connection refused")

func testLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}
