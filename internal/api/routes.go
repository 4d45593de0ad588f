package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"warranty-sync-service/internal/config"
	"warranty-sync-service/internal/store"
	"warranty-sync-service/internal/sync"
)

// Handler exposes the sync trigger and read endpoints. It stands in for the
// host application's administrative surface; rendering and filtering stay on
// the caller's side.
type Handler struct {
	manager     *sync.Manager
	store       store.Store
	templateID  string
	defaultMode string
	authToken   string
	log         *zap.Logger
}

func NewHandler(manager *sync.Manager, st store.Store, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		manager:     manager,
		store:       st,
		templateID:  cfg.SafetyCulture.TemplateID,
		defaultMode: cfg.Sync.Mode,
		authToken:   cfg.Server.AuthToken,
		log:         log,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/sync/run", h.RunSync)
		r.Get("/sync/status", h.SyncStatus)
		r.Get("/sync/runs", h.ListRuns)
		r.Get("/records", h.ListRecords)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type runRequest struct {
	Mode       string `json:"mode"`
	VerifyOnly bool   `json:"verify_only"`
}

// RunSync triggers a run and blocks until it finishes, returning the summary.
// Disconnecting cancels the run before its next page fetch.
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Mode == "" {
		req.Mode = h.defaultMode
	}
	mode, err := sync.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.manager.RunSync(r.Context(), sync.RunOptions{
		TemplateID: h.templateID,
		Mode:       mode,
		VerifyOnly: req.VerifyOnly,
	})
	if errors.Is(err, sync.ErrAlreadyRunning) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, summary)
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	running, last := h.manager.Status(h.templateID)
	h.writeJSON(w, map[string]any{
		"template_id": h.templateID,
		"running":     running,
		"last_run":    last,
	})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)
	runs, err := h.store.ListSyncRuns(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("failed to list sync runs", zap.Error(err))
		http.Error(w, "failed to list sync runs", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"runs": runs})
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	records, err := h.store.ListRecords(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("failed to list records", zap.Error(err))
		http.Error(w, "failed to list records", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"records": records})
}

// AuthMiddleware enforces the static bearer token from server.auth_token.
// An empty configured token disables the check.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.authToken)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
