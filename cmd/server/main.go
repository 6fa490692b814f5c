// Command server wires the orchestration core's subsystems — workflow
// engine, task queue and worker pool, streaming pipeline, conversation
// cache, agent orchestrator, and HTTP surface — into one running process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"goa.design/clue/log"

	"agentflow/internal/agent"
	"agentflow/internal/config"
	"agentflow/internal/httpapi"
	"agentflow/internal/kb"
	"agentflow/internal/llm"
	"agentflow/internal/prompt"
	"agentflow/internal/queue"
	"agentflow/internal/streambuffer"
	"agentflow/internal/telemetry"
	"agentflow/internal/tools"
	"agentflow/internal/tracing"
	"agentflow/internal/worker"
	"agentflow/internal/workflow"
)

func main() {
	var (
		addrF = flag.String("addr", ":8080", "HTTP listen address")
		dbgF  = flag.Bool("debug", false, "Log request and response bodies")
	)
	flag.Parse()

	cfg := config.Load()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	registry := tools.NewRegistry()
	engine := workflow.NewEngine(registry, logger, metrics)

	if defs, err := workflow.LoadDefinitions(workflowDir(cfg)); err != nil {
		logger.Warn(ctx, "load persisted workflow definitions failed", "error", err.Error())
	} else {
		for _, wf := range defs {
			if err := engine.Register(wf); err != nil {
				logger.Warn(ctx, "re-register persisted workflow failed", "workflow_id", wf.ID, "error", err.Error())
			}
		}
	}

	knowledge, err := kb.NewStore(cfg.StorageDir, kb.StubProvider{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "knowledge store:", err)
		os.Exit(1)
	}
	prompts, err := prompt.NewStore(cfg.StorageDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "prompt store:", err)
		os.Exit(1)
	}

	modelClient, err := newModelClient(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "model client:", err)
		os.Exit(1)
	}

	conversations := agent.NewConversationStore(cfg.MaxConversations, cfg.ConversationTTL, 20)
	if err := conversations.LoadAll(conversationDir(cfg)); err != nil {
		logger.Warn(ctx, "load persisted conversations failed", "error", err.Error())
	}

	qClient, err := queue.New(queue.Config{RedisURL: cfg.RedisURL, PoolSize: cfg.RedisPoolMax, Logger: logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, "queue client:", err)
		os.Exit(1)
	}

	enqueueWorkflow := func(ctx context.Context, workflowID string, variables map[string]any) (string, error) {
		task := queue.NewTask(queue.KindWorkflowExecute, map[string]any{
			"workflow_id": workflowID,
			"variables":   variables,
		}, cfg.MaxRetries)
		if traceID := tracing.TraceID(ctx); traceID != "" {
			task.Metadata["trace_id"] = traceID
		}
		return qClient.Enqueue(ctx, task)
	}

	if err := agent.RegisterWorkflowTools(registry, engine, enqueueWorkflow); err != nil {
		fmt.Fprintln(os.Stderr, "register workflow tools:", err)
		os.Exit(1)
	}
	if err := agent.RegisterKnowledgeTools(registry, knowledge); err != nil {
		fmt.Fprintln(os.Stderr, "register knowledge tools:", err)
		os.Exit(1)
	}

	orchestrator := agent.NewOrchestrator(modelClient, registry, defaultSystemPrompt, logger)
	chatAgent := agent.NewChatAgent(orchestrator, conversations)

	streams := streambuffer.NewRegistry()
	streamHandler := streambuffer.NewHandler(streams, cfg.LLM.MaxRetries, cfg.LLM.RetryDelay, cfg.LLM.SavePartial)

	pool := worker.New(qClient, logger, metrics)
	registerWorkers(pool, engine, knowledge, orchestrator, conversations)
	pool.Start(ctx)

	router := httpapi.NewRouter(&httpapi.Deps{
		Config:        cfg,
		Logger:        logger,
		Engine:        engine,
		ChatAgent:     chatAgent,
		Conversations: conversations,
		Streams:       streams,
		StreamHandler: streamHandler,
		Knowledge:     knowledge,
		Prompts:       prompts,
		Queue:         qClient,
		WorkflowDir:   workflowDir(cfg),
		Enqueue:       enqueueWorkflow,
	})

	if err := httpapi.Serve(ctx, *addrF, router, logger); err != nil {
		logger.Error(ctx, "http server exited with error", "error", err.Error())
	}

	if err := pool.Stop(context.Background()); err != nil {
		logger.Warn(ctx, "worker pool stop failed", "error", err.Error())
	}
}

const defaultSystemPrompt = "You are an orchestration assistant. Use the available tools to search and run workflows and knowledge bases on the user's behalf."

func workflowDir(cfg *config.Config) string {
	return cfg.StorageDir + "/workflows"
}

func conversationDir(cfg *config.Config) string {
	return cfg.StorageDir + "/conversations"
}

// newModelClient selects and constructs the configured provider adapter,
// wrapping it with the rate limiter the way the reference orchestrator
// always does regardless of backend.
func newModelClient(cfg *config.Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLM.Provider {
	case "openai":
		client, err = llm.NewOpenAIFromAPIKey(cfg.LLM.APIKey, llm.OpenAIOptions{
			DefaultModel: cfg.LLM.Model,
			MaxTokens:    4096,
			Temperature:  cfg.LLM.Temperature,
		})
	default:
		client, err = llm.NewAnthropicFromAPIKey(cfg.LLM.APIKey, llm.AnthropicOptions{
			DefaultModel: cfg.LLM.Model,
			MaxTokens:    4096,
			Temperature:  cfg.LLM.Temperature,
		})
	}
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimited(client, 60000, 120000), nil
}

// registerWorkers wires the CHAT_PROCESS, KNOWLEDGE_SEARCH, and
// WORKFLOW_EXECUTE task kinds to real handlers — the supplemental
// completeness this repository adds over the reference worker, which
// leaves these as unimplemented stubs.
func registerWorkers(pool *worker.Pool, engine *workflow.Engine, knowledge *kb.Store, orchestrator *agent.Orchestrator, conversations *agent.ConversationStore) {
	pool.Register(queue.KindWorkflowExecute, func(ctx context.Context, task *queue.Task) (any, error) {
		workflowID, _ := task.Params["workflow_id"].(string)
		variables, _ := task.Params["variables"].(map[string]any)
		result, err := engine.Execute(ctx, workflowID, variables)
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	pool.Register(queue.KindChatProcess, func(ctx context.Context, task *queue.Task) (any, error) {
		conversationID, _ := task.Params["conversation_id"].(string)
		message, _ := task.Params["message"].(string)

		conv, _ := conversations.GetOrCreate(conversationID)
		conversations.AddMessage(conv.ID, "user", message)
		history := conversations.Recent(conv.ID)
		if len(history) > 0 {
			history = history[:len(history)-1]
		}

		result, err := orchestrator.Run(ctx, history, message)
		if err != nil {
			return nil, err
		}
		conversations.AddMessage(conv.ID, "assistant", result.Reply)
		conversations.RecordToolCalls(conv.ID, result.ToolCalls)
		return map[string]any{"conversation_id": conv.ID, "response": result.Reply}, nil
	})

	pool.Register(queue.KindKnowledgeSearch, func(ctx context.Context, task *queue.Task) (any, error) {
		kbID, _ := task.Params["kb_id"].(string)
		query, _ := task.Params["query"].(string)
		topK := 5
		if v, ok := task.Params["top_k"].(float64); ok && v > 0 {
			topK = int(v)
		}
		return knowledge.Search(ctx, kbID, query, topK)
	})
}
