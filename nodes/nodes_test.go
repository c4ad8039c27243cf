package nodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowd/condition"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

func nodeCtx(inputs, vars map[string]interface{}) *models.NodeContext {
	return &models.NodeContext{
		NodeID:    "test",
		Inputs:    inputs,
		Variables: vars,
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := registry.New()
	RegisterBuiltins(r, Options{})

	for _, name := range []string{
		"manual_trigger", "webhook_trigger", "schedule_trigger",
		"mock", "http_request", "transform", "set_variable", "delay", "log",
		"condition", "switch", "merge", "split", "retry", "openai_chat",
	} {
		assert.True(t, r.Has(name), name)
	}
}

func TestMockReturnsOutputParameter(t *testing.T) {
	m := &Mock{}
	out, err := m.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"output": map[string]interface{}{"value": float64(7)},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, float64(7), out.Data["value"])
}

func TestMockReturnParameterIsThePayload(t *testing.T) {
	m := &Mock{}
	out, err := m.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"return": map[string]interface{}{"v": float64(7)},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, float64(7), out.Data["v"])
}

func TestMockEchoesResolvedParameters(t *testing.T) {
	m := &Mock{}
	out, err := m.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"echo": float64(7),
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, map[string]interface{}{"echo": float64(7)}, out.Data)
}

func TestMockDefaultOutput(t *testing.T) {
	m := &Mock{}
	out, err := m.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, out.Data)
}

func TestMockFailure(t *testing.T) {
	m := &Mock{}
	out, err := m.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"fail":  true,
		"error": "boom",
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "boom", out.Error)
}

func TestTransformExpression(t *testing.T) {
	tr := &Transform{}
	inputs := map[string]interface{}{
		"main": map[string]interface{}{"count": 2},
	}
	out, err := tr.Execute(context.Background(), nodeCtx(inputs, nil), map[string]interface{}{
		"expression": "input.count * 3",
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 6, out.Data["result"])
}

func TestTransformMapResultBecomesOutput(t *testing.T) {
	tr := &Transform{}
	out, err := tr.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"expression": `{"a": 1, "b": "two"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Data["a"])
	assert.Equal(t, "two", out.Data["b"])
}

func TestTransformValidateRejectsBadExpression(t *testing.T) {
	tr := &Transform{}
	require.Error(t, tr.Validate(map[string]interface{}{"expression": "1 +"}))
	require.NoError(t, tr.Validate(map[string]interface{}{"expression": "input.x"}))
}

func TestConditionSelectsPort(t *testing.T) {
	c := &Condition{Evaluator: condition.NewEvaluator()}
	inputs := map[string]interface{}{
		"main": map[string]interface{}{"total": 10},
	}

	out, err := c.Execute(context.Background(), nodeCtx(inputs, nil), map[string]interface{}{
		"expression": "input.total > 5",
	})
	require.NoError(t, err)
	port, ok := c.SelectedPort(out)
	require.True(t, ok)
	assert.Equal(t, "true", port)

	out, err = c.Execute(context.Background(), nodeCtx(inputs, nil), map[string]interface{}{
		"expression": "input.total > 50",
	})
	require.NoError(t, err)
	port, _ = c.SelectedPort(out)
	assert.Equal(t, "false", port)
}

func TestConditionEvaluationErrorFailsNode(t *testing.T) {
	c := &Condition{Evaluator: condition.NewEvaluator()}
	out, err := c.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"expression": "input.x +",
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestSwitchMatchesCase(t *testing.T) {
	s := &Switch{}
	params := map[string]interface{}{
		"value": "eu",
		"cases": []interface{}{
			map[string]interface{}{"value": "us", "port": "us_route"},
			map[string]interface{}{"value": "eu", "port": "eu_route"},
		},
	}
	out, err := s.Execute(context.Background(), nodeCtx(nil, nil), params)
	require.NoError(t, err)
	port, ok := s.SelectedPort(out)
	require.True(t, ok)
	assert.Equal(t, "eu_route", port)
}

func TestSwitchFallsBackToDefault(t *testing.T) {
	s := &Switch{}
	params := map[string]interface{}{
		"value": "jp",
		"cases": []interface{}{
			map[string]interface{}{"value": "us", "port": "us_route"},
		},
		"default": "other",
	}
	out, err := s.Execute(context.Background(), nodeCtx(nil, nil), params)
	require.NoError(t, err)
	port, _ := s.SelectedPort(out)
	assert.Equal(t, "other", port)
}

func TestMergeCombineModes(t *testing.T) {
	m := &Merge{}
	inputs := map[string]interface{}{
		"a": map[string]interface{}{"x": 1},
		"b": map[string]interface{}{"y": 2},
	}

	out, err := m.Execute(context.Background(), nodeCtx(inputs, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, inputs["a"], out.Data["a"])
	assert.Equal(t, inputs["b"], out.Data["b"])

	out, err = m.Execute(context.Background(), nodeCtx(inputs, nil), map[string]interface{}{"combine": "array"})
	require.NoError(t, err)
	items := out.Data["items"].([]interface{})
	require.Len(t, items, 2)
	// Port order is deterministic: a before b
	assert.Equal(t, inputs["a"], items[0])

	out, err = m.Execute(context.Background(), nodeCtx(inputs, nil), map[string]interface{}{"combine": "first"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Data["x"])
}

func TestMergeSpecDefaults(t *testing.T) {
	m := &Merge{}
	spec := m.MergeSpec(nil)
	assert.Equal(t, "all", spec.Strategy)
	assert.Equal(t, "object", spec.CombineMode)
}

func TestSplitItems(t *testing.T) {
	s := &Split{}
	items, err := s.Items(nodeCtx(nil, nil), map[string]interface{}{
		"items": []interface{}{"a", "b"},
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = s.Items(nodeCtx(nil, nil), map[string]interface{}{"items": nil})
	require.Error(t, err)

	_, err = s.Items(nodeCtx(nil, nil), map[string]interface{}{"items": "not-a-list"})
	require.Error(t, err)
}

func TestSplitExecuteExposesIterationScope(t *testing.T) {
	s := &Split{}
	vars := map[string]interface{}{"item": "x", "index": 1}
	out, err := s.Execute(context.Background(), nodeCtx(nil, vars), nil)
	require.NoError(t, err)
	assert.Equal(t, "x", out.Data["item"])
	assert.Equal(t, 1, out.Data["index"])
}

func TestRetryPolicyFromParameters(t *testing.T) {
	r := &Retry{}
	policy := r.RetryPolicy(map[string]interface{}{
		"max_attempts":  float64(4),
		"initial_delay": "100ms",
		"multiplier":    float64(3),
	})
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, policy.InitialDelay)
	assert.Equal(t, 3.0, policy.Multiplier)

	defaults := r.RetryPolicy(nil)
	assert.Equal(t, 3, defaults.MaxAttempts)
	assert.Equal(t, time.Second, defaults.InitialDelay)
}

func TestScheduleTriggerCronValidation(t *testing.T) {
	s := &ScheduleTrigger{}
	require.NoError(t, s.Validate(map[string]interface{}{"cron": "0 */5 * * * *"}))
	require.Error(t, s.Validate(map[string]interface{}{"cron": "not a cron"}))
	require.Error(t, s.Validate(map[string]interface{}{}))
}

func TestTriggersPassInputThrough(t *testing.T) {
	vars := map[string]interface{}{
		"input": map[string]interface{}{"user": "ada"},
	}
	for _, h := range []registry.Handler{&ManualTrigger{}, &WebhookTrigger{}, &ScheduleTrigger{}} {
		out, err := h.Execute(context.Background(), nodeCtx(nil, vars), nil)
		require.NoError(t, err)
		assert.Equal(t, "ada", out.Data["user"], h.TypeName())
	}
}

func TestSetVariable(t *testing.T) {
	s := &SetVariable{}
	out, err := s.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"variables": map[string]interface{}{"env": "prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, "prod", out.Data["env"])
}

func TestHTTPRequestSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	h := &HTTPRequest{Client: server.Client()}
	out, err := h.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"url":     server.URL,
		"method":  "POST",
		"body":    map[string]interface{}{"hello": "world"},
		"headers": map[string]interface{}{"X-Token": "secret"},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 200, out.Data["status"])
	body := out.Data["body"].(map[string]interface{})
	assert.Equal(t, true, body["ok"])
}

func TestHTTPRequestErrorStatusFailsNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	h := &HTTPRequest{Client: server.Client()}
	out, err := h.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"url": server.URL,
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, 502, out.Data["status"])

	out, err = h.Execute(context.Background(), nodeCtx(nil, nil), map[string]interface{}{
		"url":           server.URL,
		"ignore_status": true,
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestHTTPRequestValidate(t *testing.T) {
	h := &HTTPRequest{}
	require.NoError(t, h.Validate(map[string]interface{}{"url": "https://example.com"}))
	require.NoError(t, h.Validate(map[string]interface{}{"url": "https://api/$input.id"}))
	require.Error(t, h.Validate(map[string]interface{}{"url": "not a url"}))
}

func TestDelayRespectsCancellation(t *testing.T) {
	d := &Delay{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Execute(ctx, nodeCtx(nil, nil), map[string]interface{}{"duration": "10s"})
	require.ErrorIs(t, err, context.Canceled)
}
