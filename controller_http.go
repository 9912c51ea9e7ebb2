package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// HTTPController talks to a simulator controller exposed over HTTP with JSON bodies.
type HTTPController struct {
	BaseURL    string
	InitParams map[string]any
	client     *http.Client
}

func NewHTTPController(baseURL string, timeout time.Duration, initParams map[string]any) *HTTPController {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPController{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		InitParams: initParams,
		client:     &http.Client{Timeout: timeout},
	}
}

// BuildInfo identifies the simulator build reported by /init. Both fields are
// empty when the controller does not report them.
type BuildInfo struct {
	CommitID string `json:"commit_id"`
	Platform string `json:"platform"`
}

// Init starts the simulator with the controller parameters.
func (c *HTTPController) Init(ctx context.Context) (BuildInfo, error) {
	params := c.InitParams
	if params == nil {
		params = map[string]any{}
	}
	var build BuildInfo
	if err := c.post(ctx, "/init", params, &build); err != nil {
		return BuildInfo{}, err
	}
	return build, nil
}

func (c *HTTPController) Reset(ctx context.Context, scene string) error {
	return c.post(ctx, "/reset", map[string]any{"scene": scene}, nil)
}

func (c *HTTPController) Step(ctx context.Context, action string, args map[string]any) (*Event, error) {
	body := make(map[string]any, len(args)+1)
	maps.Copy(body, args)
	body["action"] = action
	var event Event
	if err := c.post(ctx, "/step", body, &event); err != nil {
		return nil, err
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	return &event, nil
}

func (c *HTTPController) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop", map[string]any{}, nil)
}

func (c *HTTPController) post(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %v request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %v for %v: %v", resp.StatusCode, path, string(body))
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %v response: %w", path, err)
	}
	return nil
}
