package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/engine"
	"github.com/vyrodovalexey/avamapper/internal/middleware"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

const probeCacheTTL = 5 * time.Second

var errNotFound = errors.New("no route matched the request")

// TransformRequest is the body of POST /api/v2/transform. SourceData is
// either a JSON string holding the document text, or a JSON object or
// array taken as the document itself.
type TransformRequest struct {
	SourceData    json.RawMessage `json:"sourceData"`
	MappingConfig json.RawMessage `json:"mappingConfig"`
}

// ParseRequest is the body of POST /api/v2/transform/debug/parse.
type ParseRequest struct {
	SourceData json.RawMessage `json:"sourceData"`
	SourceType string          `json:"sourceType"`
}

// ParseResponse is the answer of the parse endpoint.
type ParseResponse struct {
	Success    bool   `json:"success"`
	ParsedJSON string `json:"parsedJson,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleTransform(c *gin.Context) {
	var req TransformRequest
	if !s.bindJSON(c, &req) {
		return
	}

	source, err := sourceBytes(req.SourceData)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	if isMissing(req.MappingConfig) {
		s.badRequest(c, util.NewConfigError("mappingConfig", "is required"))
		return
	}
	cfg, err := config.ParseMappingConfig(req.MappingConfig)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	res := s.engine.Transform(c.Request.Context(), source, cfg)
	if !res.Success {
		_ = c.Error(res.Err)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if !s.bindJSON(c, &req) {
		return
	}

	source, err := sourceBytes(req.SourceData)
	if err != nil {
		c.JSON(http.StatusBadRequest, ParseResponse{Error: err.Error()})
		return
	}
	if req.SourceType == "" {
		c.JSON(http.StatusBadRequest, ParseResponse{Error: "sourceType is required"})
		return
	}

	out, err := s.engine.Parse(c.Request.Context(), source, req.SourceType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, ParseResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ParseResponse{Success: true, ParsedJSON: string(out)})
}

func (s *Server) handleFunctions(c *gin.Context) {
	c.JSON(http.StatusOK, engine.Functions())
}

// probeEngine runs a one-rule transformation, exercising decode, path
// resolution and encode.
func (s *Server) probeEngine(ctx context.Context) error {
	res := s.engine.Transform(ctx, probeSource, probeConfig)
	if !res.Success {
		return fmt.Errorf("probe transformation failed: %s", res.ErrorMessage)
	}
	if res.TransformedData != probeWant {
		return fmt.Errorf("probe transformation returned %s", res.TransformedData)
	}
	return nil
}

var (
	probeSource = []byte(`{"probe":{"ok":true}}`)
	probeWant   = `{"ok":true}`
	probeConfig = &config.MappingConfig{
		Name:  "readiness-probe",
		Rules: []config.Rule{{SourcePath: "$.probe.ok", TargetPath: "ok"}},
	}
)

// bindJSON decodes the body into v and answers 400 when it is not a JSON
// object.
func (s *Server) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			middleware.AbortWithError(c, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: request body exceeds %d bytes", util.ErrInvalidInput, maxBytes.Limit))
			return false
		}
		s.badRequest(c, fmt.Errorf("%w: request body is not valid JSON: %v", util.ErrInvalidInput, err))
		return false
	}
	return true
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.WithContext(c.Request.Context()).Debug("rejected request",
		observability.String("path", c.Request.URL.Path),
		observability.Error(err),
	)
	middleware.AbortWithError(c, http.StatusBadRequest, err)
}

// sourceBytes unwraps sourceData. A JSON string yields its content; an
// object or array is used verbatim.
func sourceBytes(raw json.RawMessage) ([]byte, error) {
	if isMissing(raw) {
		return nil, fmt.Errorf("%w: sourceData is required", util.ErrInvalidInput)
	}
	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%w: sourceData: %v", util.ErrInvalidInput, err)
		}
		return []byte(s), nil
	case '{', '[':
		return trimmed, nil
	default:
		return nil, fmt.Errorf("%w: sourceData must be a string, an object or an array", util.ErrInvalidInput)
	}
}

func isMissing(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
