package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

// maxResponseBytes caps response bodies carried into the run state
const maxResponseBytes = 4 << 20

// HTTPRequest calls an external HTTP endpoint. Non-2xx responses fail
// the node unless ignore_status is set.
type HTTPRequest struct {
	Client *http.Client
}

func (h *HTTPRequest) TypeName() string                  { return "http_request" }
func (h *HTTPRequest) Category() registry.Category       { return registry.CategoryAction }
func (h *HTTPRequest) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (h *HTTPRequest) RequiredCredentialType() string    { return "" }

func (h *HTTPRequest) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"url"},
		"properties": map[string]interface{}{
			"url":    map[string]interface{}{"type": "string"},
			"method": map[string]interface{}{"type": "string"},
			"headers": map[string]interface{}{
				"type": "object",
			},
			"ignore_status": map[string]interface{}{"type": "boolean"},
		},
	}
}

func (h *HTTPRequest) Validate(parameters map[string]interface{}) error {
	raw := stringParam(parameters, "url", "")
	// References resolve at run time; only literal URLs are checkable here
	if strings.Contains(raw, "$") {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid url: %q", raw)
	}
	return nil
}

func (h *HTTPRequest) Execute(ctx context.Context, _ *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	method := strings.ToUpper(stringParam(parameters, "method", "GET"))
	target := stringParam(parameters, "url", "")

	var body io.Reader
	if raw, present := parameters["body"]; present && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return models.Fail(fmt.Sprintf("invalid request body: %v", err)), nil
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return models.Fail(fmt.Sprintf("invalid request: %v", err)), nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range mapParam(parameters, "headers") {
		if s, ok := value.(string); ok {
			req.Header.Set(key, s)
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return models.Fail(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Fail(fmt.Sprintf("failed to read response: %v", err)), nil
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		parsed = string(raw)
	}

	data := map[string]interface{}{
		"status": resp.StatusCode,
		"body":   parsed,
	}

	if resp.StatusCode >= 400 && !boolParam(parameters, "ignore_status", false) {
		out := models.Fail(fmt.Sprintf("http status %d", resp.StatusCode))
		out.Data = data
		return out, nil
	}
	return models.OK(data), nil
}
