package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatClient captures the subset of the OpenAI SDK client this adapter
// calls, so tests can substitute a stub without a live API key.
type chatClient interface {
	New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error)
}

// OpenAIClient implements Client on top of OpenAI's Chat Completions API.
type OpenAIClient struct {
	chat         chatClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// NewOpenAI builds a client from an already-constructed Chat Completions
// service, so callers (and tests) can inject any implementation
// satisfying chatClient.
func NewOpenAI(chat chatClient, opts OpenAIOptions) (*OpenAIClient, error) {
	if chat == nil {
		return nil, errors.New("llm: openai client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("llm: openai default model is required")
	}
	return &OpenAIClient{chat: chat, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewOpenAIFromAPIKey constructs a client using the SDK's default HTTP
// transport.
func NewOpenAIFromAPIKey(apiKey string, opts OpenAIOptions) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	c := openaisdk.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAI(&c.Chat.Completions, opts)
}

// Complete issues a non-streaming Chat Completions request.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("llm: messages are required")
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(modelID),
		Messages: encodeOpenAIMessages(req.Messages),
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(maxTokens))
	} else if c.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(c.maxTokens))
	}
	if temp := req.Temperature; temp > 0 {
		params.Temperature = openaisdk.Float(temp)
	} else if c.temperature > 0 {
		params.Temperature = openaisdk.Float(c.temperature)
	}
	if tools := encodeOpenAITools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if isOpenAIRateLimited(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return Response{}, fmt.Errorf("llm: openai chat completion: %w", err)
	}
	return translateOpenAIResponse(resp), nil
}

func encodeOpenAIMessages(msgs []Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openaisdk.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openaisdk.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func encodeOpenAITools(defs []ToolDefinition) []openaisdk.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openaisdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openaisdk.String(def.Description),
				Parameters:  openaisdk.FunctionParameters(def.InputSchema),
			},
		})
	}
	return out
}

func translateOpenAIResponse(resp *openaisdk.ChatCompletion) Response {
	var out Response
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = string(choice.FinishReason)
	for _, call := range choice.Message.ToolCalls {
		var payload map[string]any
		if call.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(call.Function.Arguments), &payload)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: call.ID, Name: call.Function.Name, Payload: payload})
	}
	out.Usage = TokenUsage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	return out
}

func isOpenAIRateLimited(err error) bool {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
