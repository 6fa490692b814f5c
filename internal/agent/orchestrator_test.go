package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentflow/internal/llm"
	"agentflow/internal/tools"
)

// scriptedClient replays a fixed sequence of responses, one per Complete
// call, so a test can drive the orchestrator through a specific number of
// tool-call round trips.
type scriptedClient struct {
	responses []llm.Response
	calls     int
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c.calls >= len(c.responses) {
		return c.responses[len(c.responses)-1], nil
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func newRegistryWithEcho(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register("echo", "echoes its input", map[string]any{
		"type":     "object",
		"required": []any{"text"},
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	}))
	return reg
}

func TestOrchestrator_RunReturnsPlainReplyWithNoToolCalls(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{Content: "hello there"}}}
	o := NewOrchestrator(client, newRegistryWithEcho(t), "you are a helpful assistant", nil)

	result, err := o.Run(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Reply)
	assert.Empty(t, result.ToolCalls)
}

func TestOrchestrator_RunDispatchesToolCallThenReturnsReply(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Payload: map[string]any{"text": "ping"}}}},
		{Content: "done"},
	}}
	o := NewOrchestrator(client, newRegistryWithEcho(t), "", nil)

	result, err := o.Run(context.Background(), nil, "say ping")
	require.NoError(t, err)
	assert.Equal(t, "done", result.Reply)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "echo", result.ToolCalls[0].Name)
	assert.Equal(t, "ping", result.ToolCalls[0].Result)
	assert.Empty(t, result.ToolCalls[0].Error)
}

func TestOrchestrator_RunRecordsUnknownToolAsError(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "does_not_exist", Payload: nil}}},
		{Content: "fallback"},
	}}
	o := NewOrchestrator(client, newRegistryWithEcho(t), "", nil)

	result, err := o.Run(context.Background(), nil, "do something")
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.NotEmpty(t, result.ToolCalls[0].Error)
}

func TestOrchestrator_RunExhaustsIterationBudget(t *testing.T) {
	toolCall := llm.ToolCall{ID: "call-1", Name: "echo", Payload: map[string]any{"text": "loop"}}
	responses := make([]llm.Response, 0, maxToolIterations)
	for i := 0; i < maxToolIterations; i++ {
		responses = append(responses, llm.Response{ToolCalls: []llm.ToolCall{toolCall}})
	}
	client := &scriptedClient{responses: responses}
	o := NewOrchestrator(client, newRegistryWithEcho(t), "", nil)

	result, err := o.Run(context.Background(), nil, "loop forever")
	require.Error(t, err)
	assert.Len(t, result.ToolCalls, maxToolIterations)
}

func TestOrchestrator_RunPropagatesModelError(t *testing.T) {
	o := NewOrchestrator(failingClient{}, newRegistryWithEcho(t), "", nil)
	_, err := o.Run(context.Background(), nil, "hi")
	require.Error(t, err)
}

type failingClient struct{}

func (failingClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{}, assertErr{"upstream exploded"}
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
