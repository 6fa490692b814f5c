package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"agentflow/internal/errs"
	"agentflow/internal/queue"
	"agentflow/internal/workflow"
)

func (h *handlers) postWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "malformed workflow body", err))
		return
	}
	h.registerWorkflow(w, r, &wf)
}

// postWorkflowUpload accepts a multipart file field named "file" containing
// a YAML or JSON workflow definition, dispatching on the file's extension
// the way the upload endpoint's original implementation does.
func (h *handlers) postWorkflowUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "missing upload file field", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "read upload body", err))
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	wf, err := workflow.ParseDefinition(data, format)
	if err != nil {
		respondError(r, w, err)
		return
	}
	h.registerWorkflow(w, r, wf)
}

func (h *handlers) registerWorkflow(w http.ResponseWriter, r *http.Request, wf *workflow.Workflow) {
	if err := h.deps.Engine.Register(wf); err != nil {
		respondError(r, w, err)
		return
	}
	if h.deps.WorkflowDir != "" {
		if err := workflow.SaveDefinition(h.deps.WorkflowDir, wf); err != nil {
			h.deps.Logger.Warn(r.Context(), "persist workflow definition failed", "workflow_id", wf.ID, "error", err.Error())
		}
	}
	respondOK(r, w, http.StatusCreated, wf)
}

func (h *handlers) listWorkflows(w http.ResponseWriter, r *http.Request) {
	respondOK(r, w, http.StatusOK, h.deps.Engine.List())
}

func (h *handlers) getWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wf, ok := h.deps.Engine.Get(id)
	if !ok {
		respondError(r, w, errs.Newf(errs.KindNotFound, "workflow %q not found", id))
		return
	}
	respondOK(r, w, http.StatusOK, wf)
}

func (h *handlers) searchWorkflows(w http.ResponseWriter, r *http.Request) {
	keyword := chi.URLParam(r, "keyword")
	respondOK(r, w, http.StatusOK, h.deps.Engine.Search(keyword))
}

// executeWorkflow runs (or, with ?async_execute=true, enqueues) a
// registered workflow's execution.
func (h *handlers) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var variables map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&variables); err != nil && err != io.EOF {
			respondError(r, w, errs.Wrap(errs.KindValidation, "malformed execute request body", err))
			return
		}
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async_execute"))
	if async {
		if h.deps.Enqueue == nil {
			respondError(r, w, errs.New(errs.KindInternal, "asynchronous workflow execution is not configured"))
			return
		}
		taskID, err := h.deps.Enqueue(r.Context(), id, variables)
		if err != nil {
			respondError(r, w, err)
			return
		}
		respondOK(r, w, http.StatusAccepted, map[string]any{"task_id": taskID, "status": "queued"})
		return
	}

	result, err := h.deps.Engine.Execute(r.Context(), id, variables)
	if err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusOK, map[string]any{"status": string(result.Status), "workflow": result})
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := h.deps.Queue.Get(r.Context(), taskID)
	if err != nil {
		respondError(r, w, err)
		return
	}
	if task == nil {
		respondError(r, w, errs.Newf(errs.KindNotFound, "task %q not found", taskID))
		return
	}
	respondOK(r, w, http.StatusOK, task)
}

func (h *handlers) cancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	cancelled, err := h.deps.Queue.Cancel(r.Context(), taskID)
	if err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusOK, map[string]any{"task_id": taskID, "cancelled": cancelled})
}

// queueStats reports the pending length of every task kind the worker
// pool knows about, matching the original admin surface.
func (h *handlers) queueStats(w http.ResponseWriter, r *http.Request) {
	kinds := []queue.Kind{queue.KindWorkflowExecute, queue.KindChatProcess, queue.KindKnowledgeSearch}
	stats := make(map[string]int64, len(kinds))
	for _, k := range kinds {
		n, err := h.deps.Queue.QueueLength(r.Context(), k)
		if err != nil {
			respondError(r, w, err)
			return
		}
		stats[string(k)] = n
	}
	respondOK(r, w, http.StatusOK, map[string]any{"queue_length": stats})
}
