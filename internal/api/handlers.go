// Package api exposes the HTTP surface of the daemon.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jheinecke/valet/internal/knowledge"
	"github.com/jheinecke/valet/internal/llm"
	"github.com/jheinecke/valet/internal/orchestrator"
	"github.com/jheinecke/valet/internal/storage"
	"github.com/jheinecke/valet/internal/tools"
)

// maxBodySize caps request bodies. Document uploads carry base64 payloads.
const maxBodySize = 16 << 20

// Answerer runs one query end to end. *orchestrator.Orchestrator satisfies it.
type Answerer interface {
	Answer(ctx context.Context, query string, history []llm.Message) (orchestrator.Answer, error)
}

// Deps carries everything the handlers need.
type Deps struct {
	Store        *storage.Store
	Learning     ContextBuilder
	Orchestrator Answerer
	Router       *llm.Router
	Registry     *tools.Registry
	Index        *knowledge.Index // nil when the knowledge base is disabled
	Token        string           // empty disables bearer auth
}

// ContextBuilder mirrors the assembler surface the API needs.
type ContextBuilder interface {
	BuildContext(limit int) (string, error)
}

type handler struct {
	deps Deps
	log  *slog.Logger
}

// NewHandler builds the chi router for the full API.
func NewHandler(deps Deps) http.Handler {
	h := &handler{deps: deps, log: slog.Default()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/v1/query", h.query)
		r.Post("/v1/feedback", h.addFeedback)
		r.Post("/v1/corrections", h.addCorrection)
		r.Get("/v1/feedback/negative", h.negativeFeedback)
		r.Get("/v1/corrections", h.listCorrections)
		r.Get("/v1/learning/context", h.learningContext)
		r.Get("/v1/learning/statistics", h.statistics)
		r.Get("/v1/tools", h.listTools)

		r.Get("/v1/facts", h.listFacts)
		r.Get("/v1/facts/{key}", h.getFact)
		r.Put("/v1/facts/{key}", h.putFact)
		r.Delete("/v1/facts/{key}", h.deleteFact)

		r.Get("/v1/preferences", h.listPreferences)
		r.Get("/v1/preferences/{key}", h.getPreference)
		r.Post("/v1/preferences", h.setPreference)

		r.Post("/v1/documents", h.addDocument)
		r.Post("/v1/search", h.searchDocuments)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":            "ok",
		"knowledge_enabled": h.deps.Index != nil,
	}
	if h.deps.Router != nil {
		hl := h.deps.Router.Health()
		resp["primary_provider"] = hl.PrimaryProvider
		resp["primary_model"] = hl.PrimaryModel
		resp["fallback_provider"] = hl.FallbackProvider
		resp["fallback_model"] = hl.FallbackModel
		resp["primary_credential_configured"] = hl.PrimaryCredentialConfigured
	}
	writeJSON(w, http.StatusOK, resp)
}

type queryRequest struct {
	Query   string        `json:"query"`
	History []llm.Message `json:"conversation_history,omitempty"`
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusBadRequest, "query must not be empty", "validation_error")
		return
	}

	ans, err := h.deps.Orchestrator.Answer(r.Context(), req.Query, req.History)
	if err != nil {
		var allFailed *llm.AllProvidersFailedError
		if errors.As(err, &allFailed) {
			httpError(w, http.StatusServiceUnavailable, allFailed.Error(), "all_providers_failed")
			return
		}
		h.log.Error("query failed", "error", err)
		httpError(w, http.StatusInternalServerError, "query failed", "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, ans)
}

type feedbackRequest struct {
	Query    string `json:"query"`
	Response string `json:"response"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func (h *handler) addFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" || req.Response == "" {
		httpError(w, http.StatusBadRequest, "query and response are required", "validation_error")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		httpError(w, http.StatusBadRequest, "rating must be between 1 and 5", "validation_error")
		return
	}

	id, err := h.deps.Store.AddFeedback(storage.Feedback{
		Query:    req.Query,
		Response: req.Response,
		Rating:   req.Rating,
		Comment:  req.Comment,
		Model:    req.Model,
		Provider: req.Provider,
	})
	if err != nil {
		h.log.Error("store feedback", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to store feedback", "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"feedback_id": id})
}

type correctionRequest struct {
	Query           string `json:"query"`
	WrongResponse   string `json:"wrong_response"`
	CorrectResponse string `json:"correct_response"`
	Context         string `json:"context,omitempty"`
}

func (h *handler) addCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" || req.WrongResponse == "" || req.CorrectResponse == "" {
		httpError(w, http.StatusBadRequest, "query, wrong_response and correct_response are required", "validation_error")
		return
	}

	id, err := h.deps.Store.AddCorrection(storage.Correction{
		Query:           req.Query,
		WrongResponse:   req.WrongResponse,
		CorrectResponse: req.CorrectResponse,
		Context:         req.Context,
	})
	if err != nil {
		h.log.Error("store correction", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to store correction", "internal_error")
		return
	}

	// A correction implies the original answer was bad. Recording the
	// implicit rating is best effort.
	if _, err := h.deps.Store.AddFeedback(storage.Feedback{
		Query:    req.Query,
		Response: req.WrongResponse,
		Rating:   1,
		Comment:  "corrected by user",
	}); err != nil {
		h.log.Warn("store implicit feedback for correction", "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"correction_id": id})
}

func (h *handler) negativeFeedback(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20, 100)
	records, err := h.deps.Store.RecentNegativeFeedback(limit)
	if err != nil {
		h.log.Error("list negative feedback", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to list feedback", "internal_error")
		return
	}
	if records == nil {
		records = []storage.Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": records})
}

func (h *handler) listCorrections(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20, 100)
	records, err := h.deps.Store.RecentCorrections(limit)
	if err != nil {
		h.log.Error("list corrections", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to list corrections", "internal_error")
		return
	}
	if records == nil {
		records = []storage.Correction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"corrections": records})
}

func (h *handler) learningContext(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 5, 50)
	block, err := h.deps.Learning.BuildContext(limit)
	if err != nil {
		h.log.Error("build learning context", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to build context", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"context": block})
}

func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Store.Statistics()
	if err != nil {
		h.log.Error("compute statistics", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to compute statistics", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.deps.Registry.Definitions()})
}

func (h *handler) getFact(w http.ResponseWriter, r *http.Request) {
	f, err := h.deps.Store.GetFact(chi.URLParam(r, "key"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "fact not found", "not_found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read fact", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) putFact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == "" {
		httpError(w, http.StatusBadRequest, "value is required", "validation_error")
		return
	}
	f, err := h.deps.Store.SetFact(chi.URLParam(r, "key"), req.Value)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to store fact", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) deleteFact(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Store.DeleteFact(chi.URLParam(r, "key"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "fact not found", "not_found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to delete fact", "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listFacts(w http.ResponseWriter, r *http.Request) {
	facts, err := h.deps.Store.ListFacts()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list facts", "internal_error")
		return
	}
	if facts == nil {
		facts = []storage.Fact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts})
}

func (h *handler) setPreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" || req.Value == "" {
		httpError(w, http.StatusBadRequest, "key and value are required", "validation_error")
		return
	}
	if err := h.deps.Store.SetPreference(req.Key, req.Value); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to store preference", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": req.Key, "value": req.Value})
}

func (h *handler) getPreference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.deps.Store.GetPreference(key)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "preference not found", "not_found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read preference", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (h *handler) listPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.deps.Store.AllPreferences()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list preferences", "internal_error")
		return
	}
	if prefs == nil {
		prefs = map[string]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

type documentRequest struct {
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"` // "text", "pdf" or "html"
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"` // base64 for pdf/html uploads
}

func (h *handler) addDocument(w http.ResponseWriter, r *http.Request) {
	if h.deps.Index == nil {
		httpError(w, http.StatusServiceUnavailable, "knowledge base is disabled", "knowledge_disabled")
		return
	}

	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	text := req.Text
	if text == "" {
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "text or content is required", "validation_error")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "content must be base64", "validation_error")
			return
		}
		text, err = knowledge.ExtractText(req.Type, raw)
		if err != nil {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("extract text: %v", err), "validation_error")
			return
		}
	}

	meta := map[string]string{}
	if req.Title != "" {
		meta["title"] = req.Title
	}
	id, err := h.deps.Index.Add(r.Context(), knowledge.Document{Content: text, Metadata: meta})
	if err != nil {
		h.log.Error("index document", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to index document", "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"document_id": id})
}

type searchRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results,omitempty"`
}

func (h *handler) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if h.deps.Index == nil {
		httpError(w, http.StatusServiceUnavailable, "knowledge base is disabled", "knowledge_disabled")
		return
	}

	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusBadRequest, "query must not be empty", "validation_error")
		return
	}
	if req.NResults <= 0 {
		req.NResults = 3
	}

	results, err := h.deps.Index.Search(r.Context(), req.Query, req.NResults)
	if err != nil {
		h.log.Error("search documents", "error", err)
		httpError(w, http.StatusInternalServerError, "search failed", "internal_error")
		return
	}
	if results == nil {
		results = []knowledge.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body", "validation_error")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
