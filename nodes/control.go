package nodes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lyzr/flowd/condition"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

// Condition evaluates a boolean expression and routes the walk through
// its true or false port
type Condition struct {
	Evaluator *condition.Evaluator
}

func (c *Condition) TypeName() string                  { return "condition" }
func (c *Condition) Category() registry.Category       { return registry.CategoryCondition }
func (c *Condition) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (c *Condition) RequiredCredentialType() string    { return "" }

func (c *Condition) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"expression"},
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{"type": "string"},
		},
	}
}

func (c *Condition) Validate(parameters map[string]interface{}) error {
	expression := stringParam(parameters, "expression", "")
	if expression == "" {
		return fmt.Errorf("expression is required")
	}
	return nil
}

func (c *Condition) Execute(_ context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	result, err := c.Evaluator.Evaluate(
		stringParam(parameters, "expression", ""),
		mainInput(nodeCtx.Inputs),
		nodeCtx.Variables,
	)
	if err != nil {
		return models.Fail(err.Error()), nil
	}
	port := "false"
	if result {
		port = "true"
	}
	return models.OK(map[string]interface{}{"result": result, "port": port}), nil
}

// SelectedPort routes through "true" or "false"
func (c *Condition) SelectedPort(output *models.NodeOutput) (string, bool) {
	port, ok := output.Data["port"].(string)
	return port, ok
}

// Switch matches a value against a case table and routes through the
// matching port, or the default port when nothing matches
type Switch struct{}

func (s *Switch) TypeName() string                  { return "switch" }
func (s *Switch) Category() registry.Category       { return registry.CategoryCondition }
func (s *Switch) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (s *Switch) RequiredCredentialType() string    { return "" }

func (s *Switch) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"cases"},
		"properties": map[string]interface{}{
			"value": map[string]interface{}{},
			"cases": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"value", "port"},
				},
			},
			"default": map[string]interface{}{"type": "string"},
		},
	}
}

func (s *Switch) Validate(parameters map[string]interface{}) error {
	cases := listParam(parameters, "cases")
	if len(cases) == 0 {
		return fmt.Errorf("at least one case is required")
	}
	for i, raw := range cases {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("case %d must be an object", i)
		}
		if stringParam(entry, "port", "") == "" {
			return fmt.Errorf("case %d: port is required", i)
		}
	}
	return nil
}

func (s *Switch) Execute(_ context.Context, _ *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	value := parameters["value"]
	for _, raw := range listParam(parameters, "cases") {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if fmt.Sprint(entry["value"]) == fmt.Sprint(value) {
			port := stringParam(entry, "port", "")
			return models.OK(map[string]interface{}{"value": value, "port": port}), nil
		}
	}
	port := stringParam(parameters, "default", "default")
	return models.OK(map[string]interface{}{"value": value, "port": port}), nil
}

func (s *Switch) SelectedPort(output *models.NodeOutput) (string, bool) {
	port, ok := output.Data["port"].(string)
	return port, ok
}

// Merge joins parallel branches. The strategy parameter decides when it
// fires (all, any, majority) and combine decides the output shape.
type Merge struct{}

func (m *Merge) TypeName() string                  { return "merge" }
func (m *Merge) Category() registry.Category       { return registry.CategoryControl }
func (m *Merge) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (m *Merge) RequiredCredentialType() string    { return "" }

func (m *Merge) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"strategy": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"all", "any", "majority"},
			},
			"combine": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"object", "array", "first", "last"},
			},
		},
	}
}

func (m *Merge) Validate(map[string]interface{}) error { return nil }

func (m *Merge) MergeSpec(parameters map[string]interface{}) registry.MergeSpec {
	return registry.MergeSpec{
		Strategy:    stringParam(parameters, "strategy", "all"),
		CombineMode: stringParam(parameters, "combine", "object"),
	}
}

func (m *Merge) Execute(_ context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	ports := make([]string, 0, len(nodeCtx.Inputs))
	for port := range nodeCtx.Inputs {
		ports = append(ports, port)
	}
	sort.Strings(ports)

	switch m.MergeSpec(parameters).CombineMode {
	case "array":
		items := make([]interface{}, 0, len(ports))
		for _, port := range ports {
			items = append(items, nodeCtx.Inputs[port])
		}
		return models.OK(map[string]interface{}{"items": items}), nil
	case "first":
		if len(ports) > 0 {
			return models.OK(asMap(nodeCtx.Inputs[ports[0]])), nil
		}
		return models.OK(nil), nil
	case "last":
		if len(ports) > 0 {
			return models.OK(asMap(nodeCtx.Inputs[ports[len(ports)-1]])), nil
		}
		return models.OK(nil), nil
	default: // object: port name -> branch output
		return models.OK(nodeCtx.Inputs), nil
	}
}

func asMap(value interface{}) map[string]interface{} {
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"value": value}
}

// Split iterates over a list: the scheduler invokes it once per item
// with item and index in scope, and downstream sees the union of
// iteration outputs keyed by index
type Split struct{}

func (s *Split) TypeName() string                  { return "split" }
func (s *Split) Category() registry.Category       { return registry.CategoryControl }
func (s *Split) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (s *Split) RequiredCredentialType() string    { return "" }

func (s *Split) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"items"},
	}
}

func (s *Split) Validate(parameters map[string]interface{}) error {
	if _, present := parameters["items"]; !present {
		return fmt.Errorf("items is required")
	}
	return nil
}

// Items resolves the iteration source. A string parameter means the
// reference resolved to nothing.
func (s *Split) Items(_ *models.NodeContext, parameters map[string]interface{}) ([]interface{}, error) {
	switch v := parameters["items"].(type) {
	case []interface{}:
		return v, nil
	case nil:
		return nil, fmt.Errorf("items resolved to null")
	default:
		return nil, fmt.Errorf("items must be a list, got %T", v)
	}
}

func (s *Split) Execute(_ context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
	return models.OK(map[string]interface{}{
		"item":  nodeCtx.Variables["item"],
		"index": nodeCtx.Variables["index"],
	}), nil
}

// Retry passes its input through; its policy applies to the actions
// directly downstream of it
type Retry struct{}

func (r *Retry) TypeName() string                  { return "retry" }
func (r *Retry) Category() registry.Category       { return registry.CategoryControl }
func (r *Retry) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (r *Retry) RequiredCredentialType() string    { return "" }

func (r *Retry) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"max_attempts":  map[string]interface{}{"type": "integer", "minimum": 1},
			"initial_delay": map[string]interface{}{"type": "string"},
			"max_delay":     map[string]interface{}{"type": "string"},
			"multiplier":    map[string]interface{}{"type": "number"},
		},
	}
}

func (r *Retry) Validate(parameters map[string]interface{}) error {
	if intParam(parameters, "max_attempts", 3) < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	return nil
}

func (r *Retry) RetryPolicy(parameters map[string]interface{}) registry.RetryPolicy {
	return registry.RetryPolicy{
		MaxAttempts:  intParam(parameters, "max_attempts", 3),
		InitialDelay: durationParam(parameters, "initial_delay", time.Second),
		MaxDelay:     durationParam(parameters, "max_delay", 30*time.Second),
		Multiplier:   floatParam(parameters, "multiplier", 2.0),
	}
}

func (r *Retry) Execute(_ context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
	return models.OK(mainInput(nodeCtx.Inputs)), nil
}
