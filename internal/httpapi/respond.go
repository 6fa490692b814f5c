package httpapi

import (
	"encoding/json"
	"net/http"

	"agentflow/internal/apitypes"
	"agentflow/internal/errs"
	"agentflow/internal/tracing"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(r *http.Request, w http.ResponseWriter, code int, data any) {
	env := apitypes.Success(code, data, tracing.TraceID(r.Context()), tracing.RequestID(r.Context()))
	writeJSON(w, code, env)
}

func respondError(r *http.Request, w http.ResponseWriter, err error) {
	e := errs.FromError(err)
	env := apitypes.Failure(e, r.URL.Path, tracing.TraceID(r.Context()), tracing.RequestID(r.Context()))
	writeJSON(w, e.HTTPStatus(), env)
}
