package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agentflow/internal/errs"
	"agentflow/internal/kb"
)

func (h *handlers) createKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var base kb.KnowledgeBase
	if err := json.NewDecoder(r.Body).Decode(&base); err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "malformed knowledge base body", err))
		return
	}
	if base.ID == "" {
		respondError(r, w, errs.Validation("id is required", errs.FieldIssue{Field: "id", Message: "required"}))
		return
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = time.Now()
	}
	if err := h.deps.Knowledge.Create(base); err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusCreated, base)
}

func (h *handlers) listKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	respondOK(r, w, http.StatusOK, h.deps.Knowledge.List())
}

func (h *handlers) getKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	base, ok := h.deps.Knowledge.Get(id)
	if !ok {
		respondError(r, w, errs.Newf(errs.KindNotFound, "knowledge base %q not found", id))
		return
	}
	respondOK(r, w, http.StatusOK, base)
}

func (h *handlers) deleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Knowledge.Delete(id); err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
