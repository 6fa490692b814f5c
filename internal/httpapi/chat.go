package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"agentflow/internal/agent"
	"agentflow/internal/apitypes"
	"agentflow/internal/errs"
)

type handlers struct {
	deps *Deps
}

func (h *handlers) postChat(w http.ResponseWriter, r *http.Request) {
	var req apitypes.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "malformed chat request body", err))
		return
	}
	if req.Message == "" {
		respondError(r, w, errs.Validation("message is required", errs.FieldIssue{Field: "message", Message: "required"}))
		return
	}

	result, err := h.deps.ChatAgent.Chat(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		respondError(r, w, err)
		return
	}

	resp := apitypes.ChatResponse{
		Response:       result.Reply,
		ConversationID: result.ConversationID,
		WorkflowID:     result.WorkflowID,
		ToolCalls:      toolCallInfos(result.ToolCalls),
		Metadata:       apitypes.ChatMetadata{PromptID: req.PromptID},
	}
	if result.WorkflowID != "" {
		resp.WorkflowStatus = "triggered"
	}
	respondOK(r, w, http.StatusOK, resp)
}

func toolCallInfos(calls []agent.ToolCallRecord) []apitypes.ToolCallInfo {
	out := make([]apitypes.ToolCallInfo, 0, len(calls))
	for _, c := range calls {
		result := ""
		if c.Result != nil {
			result = fmt.Sprintf("%v", c.Result)
		}
		out = append(out, apitypes.ToolCallInfo{Name: c.Name, Result: result, Error: c.Error})
	}
	return out
}

// postChatStream streams the chat turn's reply over SSE, one data: line
// per event: an event carrying the whole reply as its chunk, then a
// terminal event with done=true. The orchestrator itself is not token-
// incremental (see ChatAgent.ChatStream), so exactly one content chunk
// precedes the terminal event. On failure only the terminal event, carrying
// the error, is written.
func (h *handlers) postChatStream(w http.ResponseWriter, r *http.Request) {
	var req apitypes.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "malformed chat request body", err))
		return
	}
	if req.Message == "" {
		respondError(r, w, errs.Validation("message is required", errs.FieldIssue{Field: "message", Message: "required"}))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(r, w, errs.New(errs.KindInternal, "streaming not supported by this transport"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	responseID := apitypes.NewRequestID()
	h.deps.Streams.Create(responseID, req.ConversationID)

	bw := bufio.NewWriter(w)
	result, err := h.deps.ChatAgent.ChatStream(r.Context(), h.deps.Streams, req.ConversationID, req.Message, responseID)
	if err != nil {
		writeSSE(bw, apitypes.StreamEvent{ResponseID: responseID, Done: true, Error: err.Error()})
		bw.Flush()
		flusher.Flush()
		return
	}

	writeSSE(bw, apitypes.StreamEvent{Chunk: result.Reply, ResponseID: responseID, Done: false})
	writeSSE(bw, apitypes.StreamEvent{ResponseID: responseID, Done: true, Complete: true})
	bw.Flush()
	flusher.Flush()
}

func writeSSE(w *bufio.Writer, ev apitypes.StreamEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
