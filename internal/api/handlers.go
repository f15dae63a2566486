package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveHeadersRequest struct {
	Headers []string `json:"headers"`
}

type resolveHeadersResponse struct {
	Suggestions model.HeaderSuggestions `json:"suggestions"`
}

func (s *Server) handleResolveHeaders(w http.ResponseWriter, r *http.Request) {
	var req resolveHeadersRequest
	if !decode(w, r, &req) {
		return
	}
	orgID, entity := chi.URLParam(r, "orgID"), chi.URLParam(r, "entity")

	out := s.engine.ResolveHeaders(r.Context(), orgID, entity, req.Headers)
	writeJSON(w, http.StatusOK, resolveHeadersResponse{Suggestions: out})
}

type resolveValuesRequest struct {
	Values []string `json:"values"`
}

type resolveValuesResponse struct {
	Field       string                 `json:"field"`
	Suggestions model.ValueSuggestions `json:"suggestions"`
}

func (s *Server) handleResolveValues(w http.ResponseWriter, r *http.Request) {
	var req resolveValuesRequest
	if !decode(w, r, &req) {
		return
	}
	orgID, entity, field := chi.URLParam(r, "orgID"), chi.URLParam(r, "entity"), chi.URLParam(r, "field")

	out := s.engine.ResolveValues(r.Context(), orgID, entity, field, req.Values)
	writeJSON(w, http.StatusOK, resolveValuesResponse{Field: field, Suggestions: out})
}

type allValuesResponse struct {
	Fields model.FieldValueSuggestions `json:"fields"`
}

func (s *Server) handleAllValues(w http.ResponseWriter, r *http.Request) {
	orgID, entity := chi.URLParam(r, "orgID"), chi.URLParam(r, "entity")
	out := s.engine.ResolveAllValues(r.Context(), orgID, entity)
	writeJSON(w, http.StatusOK, allValuesResponse{Fields: out})
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req model.Confirmation
	if !decode(w, r, &req) {
		return
	}
	if req.Empty() {
		writeError(w, http.StatusBadRequest, "confirmation has no headers or values")
		return
	}
	orgID, entity := chi.URLParam(r, "orgID"), chi.URLParam(r, "entity")

	// Write failures are logged by the engine; the caller only sees counts.
	res := s.engine.Learn(r.Context(), orgID, entity, req)
	writeJSON(w, http.StatusOK, res)
}

type patternsResponse struct {
	Headers []model.HeaderPattern `json:"headers,omitempty"`
	Values  []model.ValuePattern  `json:"values"`
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	scope := model.Scope{OrganizationID: chi.URLParam(r, "orgID"), Entity: chi.URLParam(r, "entity")}
	field := r.URL.Query().Get("field")

	var resp patternsResponse
	if field == "" {
		headers, err := s.store.ListHeaderPatterns(r.Context(), scope)
		if err != nil {
			zap.L().Error("api: list header patterns", zap.String("org_id", scope.OrganizationID), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "pattern store unavailable")
			return
		}
		resp.Headers = headers
	}
	values, err := s.store.ListValuePatterns(r.Context(), scope, field)
	if err != nil {
		zap.L().Error("api: list value patterns", zap.String("org_id", scope.OrganizationID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "pattern store unavailable")
		return
	}
	resp.Values = values
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
