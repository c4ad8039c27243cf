package nodes

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

// Triggers are entry points: they run first and pass the run input
// downstream unchanged. Which trigger fires is decided by the caller
// (webhook surface, scheduler, CLI); by the time the graph runs, a
// trigger node is just the seed of the walk.

// ManualTrigger starts a workflow from the CLI or API
type ManualTrigger struct{}

func (t *ManualTrigger) TypeName() string                       { return "manual_trigger" }
func (t *ManualTrigger) Category() registry.Category            { return registry.CategoryTrigger }
func (t *ManualTrigger) Subcategory() registry.Subcategory      { return registry.SubcategoryGeneral }
func (t *ManualTrigger) ParameterSchema() map[string]interface{} { return nil }
func (t *ManualTrigger) RequiredCredentialType() string         { return "" }
func (t *ManualTrigger) Validate(map[string]interface{}) error  { return nil }

func (t *ManualTrigger) Execute(_ context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
	return models.OK(triggerInput(nodeCtx)), nil
}

// WebhookTrigger starts a workflow from an inbound HTTP request. The
// webhook surface routes the request to this node and passes the
// request body as run input.
type WebhookTrigger struct{}

func (t *WebhookTrigger) TypeName() string                  { return "webhook_trigger" }
func (t *WebhookTrigger) Category() registry.Category       { return registry.CategoryTrigger }
func (t *WebhookTrigger) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (t *WebhookTrigger) RequiredCredentialType() string    { return "" }

func (t *WebhookTrigger) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"method": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"GET", "POST", "PUT", "DELETE", "PATCH"},
			},
		},
	}
}

func (t *WebhookTrigger) Validate(map[string]interface{}) error { return nil }

func (t *WebhookTrigger) Execute(_ context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
	return models.OK(triggerInput(nodeCtx)), nil
}

// scheduleParser accepts 6-field cron expressions (seconds included)
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ScheduleTrigger starts a workflow on a cron schedule. The expression
// is validated at import; firing is the scheduler process's concern.
type ScheduleTrigger struct{}

func (t *ScheduleTrigger) TypeName() string                  { return "schedule_trigger" }
func (t *ScheduleTrigger) Category() registry.Category       { return registry.CategoryTrigger }
func (t *ScheduleTrigger) Subcategory() registry.Subcategory { return registry.SubcategoryGeneral }
func (t *ScheduleTrigger) RequiredCredentialType() string    { return "" }

func (t *ScheduleTrigger) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"cron"},
		"properties": map[string]interface{}{
			"cron": map[string]interface{}{"type": "string"},
		},
	}
}

func (t *ScheduleTrigger) Validate(parameters map[string]interface{}) error {
	expr := stringParam(parameters, "cron", "")
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

func (t *ScheduleTrigger) Execute(_ context.Context, nodeCtx *models.NodeContext, _ map[string]interface{}) (*models.NodeOutput, error) {
	return models.OK(triggerInput(nodeCtx)), nil
}

func triggerInput(nodeCtx *models.NodeContext) map[string]interface{} {
	if input, ok := nodeCtx.Variables["input"].(map[string]interface{}); ok {
		return input
	}
	return map[string]interface{}{}
}
