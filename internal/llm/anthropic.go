package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// messagesClient captures the subset of the Anthropic SDK client this
// adapter calls, so tests can substitute a stub without a live API key.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on top of Anthropic's Messages API.
type AnthropicClient struct {
	msg          messagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// AnthropicOptions configures an AnthropicClient.
type AnthropicOptions struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// NewAnthropic builds a client from an already-constructed Anthropic
// Messages service, so callers (and tests) can inject any implementation
// satisfying messagesClient.
func NewAnthropic(msg messagesClient, opts AnthropicOptions) (*AnthropicClient, error) {
	if msg == nil {
		return nil, errors.New("llm: anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("llm: anthropic default model is required")
	}
	return &AnthropicClient{msg: msg, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewAnthropicFromAPIKey constructs a client using the SDK's default HTTP
// transport, reading ANTHROPIC_API_KEY conventions from apiKey directly.
func NewAnthropicFromAPIKey(apiKey string, opts AnthropicOptions) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&c.Messages, opts)
}

// Complete issues a non-streaming Messages.New call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("llm: messages are required")
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return Response{}, errors.New("llm: max_tokens must be positive")
	}

	msgs, system := encodeAnthropicMessages(req.Messages)
	if len(msgs) == 0 {
		return Response{}, errors.New("llm: at least one user/assistant message is required")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if temp := req.Temperature; temp > 0 {
		params.Temperature = sdk.Float(temp)
	} else if c.temperature > 0 {
		params.Temperature = sdk.Float(c.temperature)
	}
	if tools := encodeAnthropicTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return Response{}, fmt.Errorf("llm: anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg), nil
}

func encodeAnthropicMessages(msgs []Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0)
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case RoleUser:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case RoleTool:
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out, system
}

func encodeAnthropicTools(defs []ToolDefinition) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: def.InputSchema}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out
}

func translateAnthropicResponse(msg *sdk.Message) Response {
	var resp Response
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var payload map[string]any
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &payload)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Payload: payload})
		}
	}
	resp.StopReason = string(msg.StopReason)
	resp.Usage = TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return resp
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
