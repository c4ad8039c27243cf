package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

// Mock is a configurable stand-in used in tests and while sketching
// workflows: it returns its return/output parameter, echoes any other
// resolved parameters, or fails on demand.
type Mock struct{}

func (m *Mock) TypeName() string                       { return "mock" }
func (m *Mock) Category() registry.Category            { return registry.CategoryAction }
func (m *Mock) Subcategory() registry.Subcategory      { return registry.SubcategoryGeneral }
func (m *Mock) ParameterSchema() map[string]interface{} { return nil }
func (m *Mock) RequiredCredentialType() string         { return "" }
func (m *Mock) Validate(map[string]interface{}) error  { return nil }

func (m *Mock) Execute(ctx context.Context, _ *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	if d := durationParam(parameters, "delay", 0); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if boolParam(parameters, "fail", false) {
		return models.Fail(stringParam(parameters, "error", "mock failure")), nil
	}
	if ret, ok := parameters["return"]; ok {
		if data, isMap := ret.(map[string]interface{}); isMap {
			return models.OK(data), nil
		}
		return models.OK(map[string]interface{}{"value": ret}), nil
	}
	if output := mapParam(parameters, "output"); output != nil {
		return models.OK(output), nil
	}
	echo := make(map[string]interface{})
	for key, value := range parameters {
		switch key {
		case "fail", "error", "delay", "timeout":
		default:
			echo[key] = value
		}
	}
	if len(echo) == 0 {
		echo["ok"] = true
	}
	return models.OK(echo), nil
}

// Transform evaluates an expression over the node's inputs and
// variables and returns the result
type Transform struct{}

func (t *Transform) TypeName() string                  { return "transform" }
func (t *Transform) Category() registry.Category       { return registry.CategoryAction }
func (t *Transform) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (t *Transform) RequiredCredentialType() string    { return "" }

func (t *Transform) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"expression"},
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{"type": "string"},
		},
	}
}

func (t *Transform) Validate(parameters map[string]interface{}) error {
	if _, err := expr.Compile(stringParam(parameters, "expression", "")); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}

func (t *Transform) Execute(_ context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	env := map[string]interface{}{
		"input":  mainInput(nodeCtx.Inputs),
		"inputs": nodeCtx.Inputs,
		"vars":   nodeCtx.Variables,
	}
	result, err := expr.Eval(stringParam(parameters, "expression", ""), env)
	if err != nil {
		return models.Fail(fmt.Sprintf("expression error: %v", err)), nil
	}
	if m, ok := result.(map[string]interface{}); ok {
		return models.OK(m), nil
	}
	return models.OK(map[string]interface{}{"result": result}), nil
}

// SetVariable publishes its variables parameter as output data, making
// the values referenceable downstream as $<node_id>.<key>
type SetVariable struct{}

func (s *SetVariable) TypeName() string                  { return "set_variable" }
func (s *SetVariable) Category() registry.Category       { return registry.CategoryAction }
func (s *SetVariable) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (s *SetVariable) RequiredCredentialType() string    { return "" }

func (s *SetVariable) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"variables"},
		"properties": map[string]interface{}{
			"variables": map[string]interface{}{"type": "object"},
		},
	}
}

func (s *SetVariable) Validate(map[string]interface{}) error { return nil }

func (s *SetVariable) Execute(_ context.Context, _ *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	return models.OK(mapParam(parameters, "variables")), nil
}

// Delay pauses the walk for a fixed duration
type Delay struct{}

func (d *Delay) TypeName() string                  { return "delay" }
func (d *Delay) Category() registry.Category       { return registry.CategoryAction }
func (d *Delay) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (d *Delay) RequiredCredentialType() string    { return "" }

func (d *Delay) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"duration"},
		"properties": map[string]interface{}{
			"duration": map[string]interface{}{"type": "string"},
		},
	}
}

func (d *Delay) Validate(parameters map[string]interface{}) error {
	if _, err := time.ParseDuration(stringParam(parameters, "duration", "")); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return nil
}

func (d *Delay) Execute(ctx context.Context, _ *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	duration := durationParam(parameters, "duration", time.Second)
	select {
	case <-time.After(duration):
		return models.OK(map[string]interface{}{"waited": duration.String()}), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Log writes a message to the service log and passes its input through
type Log struct {
	Logger interface {
		Info(msg string, keysAndValues ...interface{})
		Warn(msg string, keysAndValues ...interface{})
	}
}

func (l *Log) TypeName() string                       { return "log" }
func (l *Log) Category() registry.Category            { return registry.CategoryAction }
func (l *Log) Subcategory() registry.Subcategory      { return registry.SubcategoryGeneral }
func (l *Log) ParameterSchema() map[string]interface{} { return nil }
func (l *Log) RequiredCredentialType() string         { return "" }
func (l *Log) Validate(map[string]interface{}) error  { return nil }

func (l *Log) Execute(_ context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	message := stringParam(parameters, "message", "")
	if l.Logger != nil {
		switch stringParam(parameters, "level", "info") {
		case "warn":
			l.Logger.Warn(message, "node_id", nodeCtx.NodeID)
		default:
			l.Logger.Info(message, "node_id", nodeCtx.NodeID)
		}
	}
	return models.OK(mainInput(nodeCtx.Inputs)), nil
}
