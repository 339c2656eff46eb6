package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/engine"
	"github.com/vyrodovalexey/avamapper/internal/middleware"
	"github.com/vyrodovalexey/avamapper/internal/server"
)

// runner executes engine operations in process or over HTTP.
type runner interface {
	Transform(ctx context.Context, source []byte, cfg *config.MappingConfig) (*engine.Result, error)
	Parse(ctx context.Context, source []byte, sourceType string) ([]byte, error)
	Functions(ctx context.Context) (map[string]string, error)
}

type localRunner struct {
	engine *engine.Engine
}

func (r *localRunner) Transform(ctx context.Context, source []byte, cfg *config.MappingConfig) (*engine.Result, error) {
	return r.engine.Transform(ctx, source, cfg), nil
}

func (r *localRunner) Parse(ctx context.Context, source []byte, sourceType string) ([]byte, error) {
	return r.engine.Parse(ctx, source, sourceType)
}

func (r *localRunner) Functions(context.Context) (map[string]string, error) {
	return engine.Functions(), nil
}

// remoteRunner talks to the /api/v2 endpoints of an avamapper server.
type remoteRunner struct {
	baseURL string
	client  *http.Client
}

func newRemoteRunner(baseURL string, timeout time.Duration) *remoteRunner {
	return &remoteRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *remoteRunner) Transform(ctx context.Context, source []byte, cfg *config.MappingConfig) (*engine.Result, error) {
	rawSource, err := json.Marshal(string(source))
	if err != nil {
		return nil, err
	}
	rawConfig, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping config: %w", err)
	}

	var res engine.Result
	err = r.do(ctx, http.MethodPost, "/api/v2/transform",
		server.TransformRequest{SourceData: rawSource, MappingConfig: rawConfig}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *remoteRunner) Parse(ctx context.Context, source []byte, sourceType string) ([]byte, error) {
	rawSource, err := json.Marshal(string(source))
	if err != nil {
		return nil, err
	}

	var res server.ParseResponse
	err = r.do(ctx, http.MethodPost, "/api/v2/transform/debug/parse",
		server.ParseRequest{SourceData: rawSource, SourceType: sourceType}, &res)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, errors.New(res.Error)
	}
	return []byte(res.ParsedJSON), nil
}

func (r *remoteRunner) Functions(ctx context.Context) (map[string]string, error) {
	var res map[string]string
	if err := r.do(ctx, http.MethodGet, "/api/v2/functions", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// do sends body as JSON and decodes a 200 answer into out. Other statuses
// are returned as errors carrying the server's message.
func (r *remoteRunner) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", r.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb middleware.ErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.ErrorMessage != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, eb.ErrorMessage)
		}
		var pr server.ParseResponse
		if json.Unmarshal(data, &pr) == nil && pr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, pr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
