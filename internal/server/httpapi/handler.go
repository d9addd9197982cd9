package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/logging"
	"github.com/dmitrijs2005/textshr/internal/server/services"
)

// maxTextChars caps the text length accepted at this boundary. The
// engine's byte cap is separate and larger, since multi-byte runes
// inflate the byte count.
const maxTextChars = 10000

// maxTTL bounds caller-chosen lifetimes.
const maxTTL = 7 * 24 * time.Hour

// Handler routes API requests to the storage and session services.
type Handler struct {
	storage  *services.StorageService
	sessions *services.SessionService
	logger   logging.Logger
	mux      *http.ServeMux
}

// NewHandler wires up all routes.
func NewHandler(storage *services.StorageService, sessions *services.SessionService, logger logging.Logger) *Handler {
	h := &Handler{
		storage:  storage,
		sessions: sessions,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("POST /api/session", h.handleStartSession)

	h.mux.HandleFunc("POST /api/texts", h.handleCreate)
	h.mux.HandleFunc("GET /api/texts/{key}", h.handleGet)
	h.mux.HandleFunc("POST /api/texts/{key}/verify", h.handleVerify)
	h.mux.HandleFunc("PUT /api/texts/{key}", h.handleUpdate)
	h.mux.HandleFunc("DELETE /api/texts/{key}", h.handleDelete)
}

type createRequest struct {
	Text        string `json:"text"`
	TTLSeconds  int64  `json:"ttl_seconds"`
	OnlyOneRead bool   `json:"only_one_read"`
	Password    string `json:"password,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

type createResponse struct {
	Key string `json:"key"`
}

type textResponse struct {
	Text        string `json:"text"`
	Size        int64  `json:"size"`
	Summary     string `json:"summary,omitempty"`
	OnlyOneRead bool   `json:"only_one_read"`
}

type passwordRequiredResponse struct {
	PasswordRequired bool `json:"password_required"`
}

type verifyRequest struct {
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStartSession exists so a client can obtain a cookie before its
// first write; the session middleware mints one lazily anyway.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(r.Context()); !ok {
		h.writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "session required")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg, ok := validateTextRequest(req.Text, req.TTLSeconds); !ok {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	key, err := h.storage.Create(r.Context(), &services.CreateRequest{
		Text:        req.Text,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
		OnlyOneRead: req.OnlyOneRead,
		Password:    req.Password,
		Summary:     req.Summary,
	}, caller)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createResponse{Key: key})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	content, err := h.storage.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, common.ErrPasswordRequired) {
			// the body stays gated; the caller retries through verify
			h.writeJSON(w, http.StatusOK, passwordRequiredResponse{PasswordRequired: true})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contentResponse(content))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	content, err := h.storage.Verify(r.Context(), key, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contentResponse(content))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	key := r.PathValue("key")

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg, ok := validateTextRequest(req.Text, req.TTLSeconds); !ok {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.storage.Update(r.Context(), key, &services.UpdateRequest{
		Text:        req.Text,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
		OnlyOneRead: req.OnlyOneRead,
		Password:    req.Password,
		Summary:     req.Summary,
	}, caller)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	key := r.PathValue("key")

	if err := h.storage.Delete(r.Context(), key, caller); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func contentResponse(c *services.RecordContent) textResponse {
	return textResponse{
		Text:        c.Text,
		Size:        c.Size,
		Summary:     c.Summary,
		OnlyOneRead: c.OnlyOneRead,
	}
}

func validateTextRequest(text string, ttlSeconds int64) (string, bool) {
	if text == "" {
		return "text must not be empty", false
	}
	if utf8.RuneCountInString(text) > maxTextChars {
		return "text too long", false
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 || ttl > maxTTL {
		return "ttl out of range", false
	}
	return "", true
}

// writeServiceError maps service errors onto the API surface. Forbidden
// collapses to 404 so mutating endpoints reveal nothing about keys the
// caller does not own.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrForbidden):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrNoMatch):
		h.writeError(w, http.StatusForbidden, "no match")
	case errors.Is(err, common.ErrEmptyText),
		errors.Is(err, common.ErrTextTooLarge),
		errors.Is(err, common.ErrInvalidTTL):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrKeyExhausted):
		h.writeError(w, http.StatusServiceUnavailable, "try again later")
	default:
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error(context.Background(), "encode response", "error", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg}) //nolint:errcheck
}
