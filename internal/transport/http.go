package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/models"
)

// NewHTTPHandler builds the HTTP surface: the turn endpoint, a read-only
// session projection, health and metrics.
func NewHTTPHandler(engine TurnHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/v1/chat", handleChat(engine, logger))
	r.Get("/v1/sessions/{scopeKey}", handleSnapshot(engine, logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleChat(engine TurnHandler, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, models.ErrorParseError, "request body is not valid JSON")
			return
		}
		if req.UserMessage == "" || req.Meta.ClientSessionID == "" {
			writeError(w, http.StatusBadRequest, models.ErrorBadRequest, "user_message and meta.client_session_id are required")
			return
		}

		// Request logs carry routing context only. The utterance, the
		// vehicle status and the client's feature list stay out of them.
		logger.Info("chat request",
			zap.String("session", req.Meta.ClientSessionID),
			zap.String("mode", req.Meta.Mode),
			zap.Int("message_len", len(req.UserMessage)))

		resp, err := engine.HandleTurn(r.Context(), req)
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, models.ErrorTurnFailed, "turn could not be processed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSnapshot(engine TurnHandler, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scopeKey := chi.URLParam(r, "scopeKey")
		snap, err := engine.Snapshot(r.Context(), scopeKey)
		if err != nil {
			logger.Error("snapshot failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, models.ErrorStoreFailed, "session state could not be read")
			return
		}
		if snap == nil {
			writeError(w, http.StatusNotFound, models.ErrorBadRequest, "no session for that key")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, models.ErrorResponse{
		ErrorCode:    code,
		ErrorMessage: detail,
		UserMessage:  "Sorry, something went wrong. Please try again.",
	})
}
