package agent

import (
	"context"

	"agentflow/internal/errs"
	"agentflow/internal/llm"
	"agentflow/internal/telemetry"
	"agentflow/internal/tools"
)

// maxToolIterations bounds how many model round-trips the orchestrator
// makes in one turn. Once the budget is spent while the model is still
// calling tools, Run returns an Internal error together with the tool calls
// made so far and an empty reply — a model that never stops calling tools
// must not be allowed to loop forever.
const maxToolIterations = 15

// Orchestrator drives the system-prompt + history + tool-call loop: send
// the conversation to the model, dispatch any requested tool calls,
// append their results as tool messages, and repeat until the model
// returns a plain text reply or the iteration budget is exhausted.
type Orchestrator struct {
	llm          llm.Client
	tools        *tools.Registry
	systemPrompt string
	logger       telemetry.Logger
}

// NewOrchestrator constructs an Orchestrator bound to model and tools.
func NewOrchestrator(model llm.Client, registry *tools.Registry, systemPrompt string, logger telemetry.Logger) *Orchestrator {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Orchestrator{llm: model, tools: registry, systemPrompt: systemPrompt, logger: logger}
}

// Result is one completed orchestration turn.
type Result struct {
	Reply     string
	ToolCalls []ToolCallRecord
}

// Run sends systemPrompt + history + userMessage to the model, resolving
// tool calls via the registry until a text reply is produced or the
// iteration budget runs out.
func (o *Orchestrator) Run(ctx context.Context, history []Message, userMessage string) (Result, error) {
	msgs := make([]llm.Message, 0, len(history)+2)
	if o.systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt})
	}
	for _, h := range history {
		msgs = append(msgs, llm.Message{Role: llm.Role(h.Role), Content: h.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userMessage})

	defs := o.toolDefinitions()
	var calls []ToolCallRecord

	for i := 0; i < maxToolIterations; i++ {
		resp, err := o.llm.Complete(ctx, llm.Request{Messages: msgs, Tools: defs})
		if err != nil {
			return Result{}, errs.Wrap(errs.KindUpstream, "model completion failed", err)
		}

		if len(resp.ToolCalls) == 0 {
			return Result{Reply: resp.Content, ToolCalls: calls}, nil
		}

		if resp.Content != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
		}

		for _, call := range resp.ToolCalls {
			result, err := o.invoke(ctx, call)
			record := ToolCallRecord{Name: call.Name, Args: call.Payload, Result: result}
			content := stringify(result)
			if err != nil {
				record.Error = err.Error()
				content = "error: " + err.Error()
			}
			calls = append(calls, record)
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: call.ID, ToolName: call.Name})
		}
	}

	o.logger.Warn(ctx, "orchestration exhausted tool-call iteration budget", "max_iterations", maxToolIterations)
	return Result{Reply: "", ToolCalls: calls}, errs.Newf(errs.KindInternal, "exceeded %d tool-call iterations without a final reply", maxToolIterations)
}

func (o *Orchestrator) invoke(ctx context.Context, call llm.ToolCall) (any, error) {
	if o.tools == nil || !o.tools.Has(call.Name) {
		return nil, errs.Newf(errs.KindNotFound, "tool %q is not available", call.Name)
	}
	return o.tools.Invoke(ctx, call.Name, call.Payload)
}

func (o *Orchestrator) toolDefinitions() []llm.ToolDefinition {
	if o.tools == nil {
		return nil
	}
	list := o.tools.List()
	defs := make([]llm.ToolDefinition, 0, len(list))
	for _, t := range list {
		defs = append(defs, llm.ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: t.Schema})
	}
	return defs
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toJSON(v)
}
