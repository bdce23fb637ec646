// Package api exposes the message contract and the capture hook over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/application"
	"github.com/WangYihang/Catalog-Crawler/pkg/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodySize = 1 << 20

// Messages answers UI messages
type Messages interface {
	HandleJSON(ctx context.Context, raw []byte) application.Response
	Handle(ctx context.Context, req application.Request) application.Response
}

// Capturer receives observed request URLs
type Capturer interface {
	OnAPIListRequest(url string)
}

// Config holds the router dependencies. Metrics may be nil.
type Config struct {
	Messages Messages
	Capturer Capturer
	Metrics  http.Handler
	Logger   *slog.Logger
}

// NewRouter builds the HTTP surface:
//
//	POST /api/message  one message of the UI contract
//	POST /api/capture  {"url": "..."} forwarded to the pipeline
//	GET  /api/stats    shorthand for the getStats message
//	GET  /health
//	GET  /metrics
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": common.PV.Short()})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/message", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			writeJSON(w, http.StatusOK, cfg.Messages.HandleJSON(r.Context(), body))
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, cfg.Messages.Handle(r.Context(), application.Request{Action: application.ActionGetStats}))
		})

		r.Post("/capture", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				URL string `json:"url"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if req.URL == "" {
				writeError(w, http.StatusBadRequest, errors.New("url is required"))
				return
			}
			accepted := application.Classify(req.URL) != application.CaptureNone
			if accepted {
				cfg.Capturer.OnAPIListRequest(req.URL)
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"status": application.StatusOK, "accepted": accepted})
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("api: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"status": application.StatusError, "message": err.Error()})
}
