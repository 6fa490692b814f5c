package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentflow/internal/errs"
	"agentflow/internal/prompt"
)

func (h *handlers) createPrompt(w http.ResponseWriter, r *http.Request) {
	var tpl prompt.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "malformed prompt body", err))
		return
	}
	if tpl.ID == "" {
		respondError(r, w, errs.Validation("id is required", errs.FieldIssue{Field: "id", Message: "required"}))
		return
	}
	created, err := h.deps.Prompts.Create(tpl)
	if err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusCreated, created)
}

func (h *handlers) listPrompts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	respondOK(r, w, http.StatusOK, h.deps.Prompts.List(category))
}

func (h *handlers) getPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tpl, ok := h.deps.Prompts.Get(id)
	if !ok {
		respondError(r, w, errs.Newf(errs.KindNotFound, "prompt %q not found", id))
		return
	}
	respondOK(r, w, http.StatusOK, tpl)
}

func (h *handlers) updatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var tpl prompt.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		respondError(r, w, errs.Wrap(errs.KindValidation, "malformed prompt body", err))
		return
	}
	updated, err := h.deps.Prompts.Update(id, tpl)
	if err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusOK, updated)
}

func (h *handlers) deletePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Prompts.Delete(id); err != nil {
		respondError(r, w, err)
		return
	}
	respondOK(r, w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
