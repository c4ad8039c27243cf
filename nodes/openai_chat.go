package nodes

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/registry"
)

// ChatCompleter is the slice of the OpenAI client the handler needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIChat sends a chat completion request. The credential supplies
// api_key and optionally base_url, so the handler also works against
// OpenAI-compatible endpoints.
type OpenAIChat struct {
	// NewClient overrides client construction in tests
	NewClient func(apiKey, baseURL string) ChatCompleter
}

func (o *OpenAIChat) TypeName() string                  { return "openai_chat" }
func (o *OpenAIChat) Category() registry.Category       { return registry.CategoryAction }
func (o *OpenAIChat) Subcategory() registry.Subcategory { return registry.SubcategoryAI }
func (o *OpenAIChat) RequiredCredentialType() string    { return "openai" }

func (o *OpenAIChat) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"prompt"},
		"properties": map[string]interface{}{
			"prompt":      map[string]interface{}{"type": "string"},
			"system":      map[string]interface{}{"type": "string"},
			"model":       map[string]interface{}{"type": "string"},
			"temperature": map[string]interface{}{"type": "number"},
			"max_tokens":  map[string]interface{}{"type": "integer"},
		},
	}
}

func (o *OpenAIChat) Validate(parameters map[string]interface{}) error {
	if stringParam(parameters, "prompt", "") == "" {
		return fmt.Errorf("prompt is required")
	}
	return nil
}

func (o *OpenAIChat) Execute(ctx context.Context, nodeCtx *models.NodeContext, parameters map[string]interface{}) (*models.NodeOutput, error) {
	fields, err := nodeCtx.Credentials.Resolve(ctx, "")
	if err != nil {
		return nil, err
	}
	apiKey, _ := fields["api_key"].(string)
	if apiKey == "" {
		return nil, fmt.Errorf("credential is missing api_key")
	}
	baseURL, _ := fields["base_url"].(string)

	client := o.client(apiKey, baseURL)

	messages := []openai.ChatCompletionMessage{}
	if system := stringParam(parameters, "system", ""); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: stringParam(parameters, "prompt", ""),
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       stringParam(parameters, "model", openai.GPT4oMini),
		Messages:    messages,
		Temperature: float32(floatParam(parameters, "temperature", 0)),
		MaxTokens:   intParam(parameters, "max_tokens", 0),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return models.Fail(fmt.Sprintf("chat completion failed: %v", err)), nil
	}
	if len(resp.Choices) == 0 {
		return models.Fail("chat completion returned no choices"), nil
	}

	return models.OK(map[string]interface{}{
		"reply": resp.Choices[0].Message.Content,
		"model": resp.Model,
		"usage": map[string]interface{}{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		},
	}), nil
}

func (o *OpenAIChat) client(apiKey, baseURL string) ChatCompleter {
	if o.NewClient != nil {
		return o.NewClient(apiKey, baseURL)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
