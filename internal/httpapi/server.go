// Package httpapi mounts the chat, workflow, knowledge-base, and
// prompt-template REST surface described in the external interfaces
// section, plus the WS /api/ws/chat socket transport. It wraps a chi
// router the way the teacher wraps goa's generated muxer: build the
// handler tree, log every mounted route, then serve with a graceful
// shutdown on context cancellation.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"agentflow/internal/agent"
	"agentflow/internal/config"
	"agentflow/internal/kb"
	"agentflow/internal/prompt"
	"agentflow/internal/queue"
	"agentflow/internal/streambuffer"
	"agentflow/internal/telemetry"
	"agentflow/internal/workflow"
)

// Deps collects every dependency the HTTP surface dispatches into.
// Construction (cmd/server) wires concrete implementations; tests wire
// fakes/stubs for the pieces they exercise.
type Deps struct {
	Config        *config.Config
	Logger        telemetry.Logger
	Engine        *workflow.Engine
	ChatAgent     *agent.ChatAgent
	Conversations *agent.ConversationStore
	Streams       *streambuffer.Registry
	StreamHandler *streambuffer.Handler
	Knowledge     *kb.Store
	Prompts       *prompt.Store
	Queue         *queue.Client
	WorkflowDir   string

	// Enqueue submits a WORKFLOW_EXECUTE task and returns its task id,
	// shared with the execute_workflow tool's async path so both entry
	// points use the same queue contract.
	Enqueue func(ctx context.Context, workflowID string, variables map[string]any) (string, error)
}

// NewRouter builds the full chi.Mux for the service.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(traceMiddleware)
	r.Use(loggingMiddleware(deps.Logger))

	h := &handlers{deps: deps}

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", h.postChat)
		api.Post("/chat/stream", h.postChatStream)

		api.Route("/workflows", func(wf chi.Router) {
			wf.Post("/", h.postWorkflow)
			wf.Post("/upload", h.postWorkflowUpload)
			wf.Get("/", h.listWorkflows)
			wf.Get("/search/{keyword}", h.searchWorkflows)
			wf.Get("/queue/stats", h.queueStats)
			wf.Get("/tasks/{taskID}", h.getTask)
			wf.Post("/tasks/{taskID}/cancel", h.cancelTask)
			wf.Get("/{id}", h.getWorkflow)
			wf.Post("/{id}/execute", h.executeWorkflow)
		})

		api.Route("/knowledge-bases", func(kbr chi.Router) {
			kbr.Post("/", h.createKnowledgeBase)
			kbr.Get("/", h.listKnowledgeBases)
			kbr.Get("/{id}", h.getKnowledgeBase)
			kbr.Delete("/{id}", h.deleteKnowledgeBase)
		})

		api.Route("/prompts", func(pr chi.Router) {
			pr.Post("/", h.createPrompt)
			pr.Get("/", h.listPrompts)
			pr.Get("/{id}", h.getPrompt)
			pr.Put("/{id}", h.updatePrompt)
			pr.Delete("/{id}", h.deletePrompt)
		})

		api.Get("/ws/chat", h.wsChat)
	})

	for _, route := range r.Routes() {
		deps.Logger.Info(context.Background(), "http route mounted", "pattern", route.Pattern)
	}

	return r
}

// Serve runs an *http.Server bound to addr until ctx is cancelled, then
// shuts it down with a 30s grace period, matching the teacher's
// handleHTTPServer shutdown pattern.
func Serve(ctx context.Context, addr string, handler http.Handler, logger telemetry.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down http server", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "http server shutdown failed", "error", err.Error())
		return err
	}
	return nil
}
