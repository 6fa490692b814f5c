package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"agentflow/internal/apitypes"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The reference client is a same-origin web UI; this service has no
	// authentication layer (see Non-goals), so origin checking would be
	// security theater without a real allowlist to enforce.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsChat upgrades to a websocket and serves one chat turn per inbound
// frame until the client disconnects, per the WS /api/ws/chat contract:
// {message, conversation_id?} in, {response, conversation_id,
// workflow_id?, workflow_status?} or {error} out.
func (h *handlers) wsChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.deps.Logger.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	for {
		var frame apitypes.WSChatFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		result, err := h.deps.ChatAgent.Chat(r.Context(), frame.ConversationID, frame.Message)
		if err != nil {
			_ = conn.WriteJSON(apitypes.WSChatReply{Error: err.Error()})
			continue
		}

		reply := apitypes.WSChatReply{
			Response:       result.Reply,
			ConversationID: result.ConversationID,
			WorkflowID:     result.WorkflowID,
		}
		if result.WorkflowID != "" {
			reply.WorkflowStatus = "triggered"
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
