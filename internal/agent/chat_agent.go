package agent

import (
	"context"

	"agentflow/internal/errs"
	"agentflow/internal/kb"
	"agentflow/internal/streambuffer"
	"agentflow/internal/tools"
	"agentflow/internal/workflow"
)

// ChatResult is the outcome of one Chat call: the conversation id (newly
// allocated if the caller did not supply one), the assistant's reply, and
// which tool calls (if any) produced it.
type ChatResult struct {
	ConversationID string
	Reply          string
	ToolCalls       []ToolCallRecord
	WorkflowID     string
}

// ChatAgent binds an Orchestrator to a ConversationStore, turning a raw
// (conversation id, user message) pair into a full turn: load history,
// run the tool-calling loop, append both sides of the exchange, and
// surface whether a workflow was triggered.
type ChatAgent struct {
	orchestrator *Orchestrator
	conversations *ConversationStore
}

// NewChatAgent constructs a ChatAgent.
func NewChatAgent(orchestrator *Orchestrator, conversations *ConversationStore) *ChatAgent {
	return &ChatAgent{orchestrator: orchestrator, conversations: conversations}
}

// Chat processes one user message within conversationID (allocating a new
// conversation when empty), returning the assistant's reply.
func (a *ChatAgent) Chat(ctx context.Context, conversationID, message string) (ChatResult, error) {
	conv, _ := a.conversations.GetOrCreate(conversationID)
	conversationID = conv.ID

	a.conversations.AddMessage(conversationID, "user", message)
	history := a.conversations.Recent(conversationID)
	// drop the just-appended user message from history; Run appends it itself
	if len(history) > 0 {
		history = history[:len(history)-1]
	}

	result, err := a.orchestrator.Run(ctx, history, message)
	if err != nil {
		return ChatResult{}, err
	}

	a.conversations.AddMessage(conversationID, "assistant", result.Reply)
	a.conversations.RecordToolCalls(conversationID, result.ToolCalls)

	workflowID := ""
	for _, call := range result.ToolCalls {
		if call.Name == "execute_workflow" {
			if id, ok := call.Args["workflow_id"].(string); ok {
				workflowID = id
				a.conversations.RecordWorkflowTriggered(conversationID, id)
			}
		}
	}

	return ChatResult{ConversationID: conversationID, Reply: result.Reply, ToolCalls: result.ToolCalls, WorkflowID: workflowID}, nil
}

// ChatStream processes message the same way as Chat but publishes the
// reply into the stream buffer registered under responseID: the caller is
// expected to have already called registry.Create for responseID (the
// handler layer does this before dispatch, matching ProcessStream's own
// buffer lifecycle); ChatStream appends the turn's reply and marks the
// buffer complete, or marks it errored if Chat fails. It makes a single
// attempt and does not retry. Since the orchestrator
// itself is not token-incremental (Orchestrator.Run returns a complete
// reply), this appends the reply as a single chunk — a model client with
// genuine token streaming would call registry.Append per chunk instead.
func (a *ChatAgent) ChatStream(ctx context.Context, registry *streambuffer.Registry, conversationID, message, responseID string) (ChatResult, error) {
	result, err := a.Chat(ctx, conversationID, message)
	if err != nil {
		registry.MarkError(responseID, err.Error())
		return ChatResult{}, err
	}
	registry.Append(responseID, result.Reply)
	registry.MarkComplete(responseID)
	return result, nil
}

// RegisterWorkflowTools wires search_workflows and execute_workflow into
// registry, bound to engine. execute_workflow's async argument replaces
// the reference implementation's event-loop-detection heuristic (see the
// redesign decision recorded alongside this package): the caller decides
// synchronous-vs-queued execution explicitly instead of it being inferred
// from runtime state.
func RegisterWorkflowTools(registry ToolRegistrar, engine *workflow.Engine, enqueue func(ctx context.Context, workflowID string, variables map[string]any) (string, error)) error {
	if err := registry.Register("search_workflows", "Search available workflows by keyword.", map[string]any{
		"type":     "object",
		"required": []any{"keyword"},
		"properties": map[string]any{
			"keyword": map[string]any{"type": "string"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		keyword, _ := args["keyword"].(string)
		found := engine.Search(keyword)
		out := make([]map[string]any, 0, len(found))
		for _, wf := range found {
			out = append(out, map[string]any{"id": wf.ID, "name": wf.Name, "description": wf.Description})
		}
		return out, nil
	}); err != nil {
		return err
	}

	return registry.Register("execute_workflow", "Execute a registered workflow, optionally asynchronously.", map[string]any{
		"type":     "object",
		"required": []any{"workflow_id"},
		"properties": map[string]any{
			"workflow_id": map[string]any{"type": "string"},
			"variables":   map[string]any{"type": "object"},
			"async":       map[string]any{"type": "boolean"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		workflowID, _ := args["workflow_id"].(string)
		variables, _ := args["variables"].(map[string]any)
		async, _ := args["async"].(bool)

		if async {
			if enqueue == nil {
				return nil, errs.New(errs.KindInternal, "asynchronous workflow execution is not configured")
			}
			taskID, err := enqueue(ctx, workflowID, variables)
			if err != nil {
				return nil, err
			}
			return map[string]any{"task_id": taskID, "status": "queued"}, nil
		}

		result, err := engine.Execute(ctx, workflowID, variables)
		if err != nil {
			return nil, err
		}
		return map[string]any{"workflow_id": result.ID, "status": string(result.Status)}, nil
	})
}

// RegisterKnowledgeTools wires search_knowledge_base and
// list_knowledge_bases into registry, bound to store.
func RegisterKnowledgeTools(registry ToolRegistrar, store *kb.Store) error {
	if err := registry.Register("list_knowledge_bases", "List all available knowledge bases.", nil, func(ctx context.Context, args map[string]any) (any, error) {
		bases := store.List()
		out := make([]map[string]any, 0, len(bases))
		for _, b := range bases {
			out = append(out, map[string]any{"id": b.ID, "name": b.Name, "description": b.Description})
		}
		return out, nil
	}); err != nil {
		return err
	}

	return registry.Register("search_knowledge_base", "Search a knowledge base for relevant context.", map[string]any{
		"type":     "object",
		"required": []any{"query", "kb_id"},
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"kb_id": map[string]any{"type": "string"},
			"top_k": map[string]any{"type": "integer"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		kbID, _ := args["kb_id"].(string)
		topK := 5
		if v, ok := args["top_k"].(float64); ok && v > 0 {
			topK = int(v)
		}
		return store.Search(ctx, kbID, query, topK)
	})
}

// ToolRegistrar is the subset of *tools.Registry the tool-wiring helpers
// above depend on.
type ToolRegistrar interface {
	Register(name, description string, schema map[string]any, handler tools.Handler) error
}
