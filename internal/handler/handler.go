package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/qchecker/internal/checker"
	"github.com/pavelanni/qchecker/internal/handler/views"
	"github.com/pavelanni/qchecker/internal/model"
)

// Checker is the part of *checker.Checker the dashboard drives.
type Checker interface {
	Go(ctx context.Context, id string) bool
	StartAll(ctx context.Context) error
	Reload(ctx context.Context) error
	Snapshot() checker.State
	Subscribe() (<-chan checker.Event, func())
}

const heartbeatInterval = 25 * time.Second

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	checker Checker
	config  model.Config
	// Checks outlive the request that started them; they run under this
	// context, which is cancelled on shutdown.
	ctx context.Context
}

// New creates a new Handler. Background checks use ctx.
func New(ctx context.Context, c Checker, cfg model.Config) (*Handler, error) {
	if c == nil {
		return nil, errors.New("handler: nil checker")
	}
	return &Handler{checker: c, config: cfg, ctx: ctx}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/questions/{id}/check", h.handleCheck)
	r.Post("/check-all", h.handleCheckAll)
	r.Post("/reload", h.handleReload)
	r.Get("/state", h.handleState)
	r.Get("/events", h.handleEvents)
}

// BasePathMiddleware makes the configured URL prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := h.checker.Snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if st.LoadError != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := views.LoadErrorPage(st.LoadError).Render(r.Context(), w); err != nil {
			slog.Error("render error", "error", err)
		}
		return
	}
	if err := views.IndexPage(st).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.known(id) {
		http.Error(w, fmt.Sprintf("question %q not found", id), http.StatusNotFound)
		return
	}
	// A question already being checked is left alone.
	if !h.checker.Go(h.ctx, id) {
		slog.Debug("check already in flight", "id", id)
	}
	h.done(w, r, http.StatusAccepted)
}

func (h *Handler) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.StartAll(h.ctx); err != nil {
		if errors.Is(err, checker.ErrBatchRunning) || errors.Is(err, checker.ErrBusy) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.done(w, r, http.StatusAccepted)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Reload(r.Context()); err != nil {
		if errors.Is(err, checker.ErrBusy) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		// The load error is part of the state and rendered by the index page.
		slog.Warn("reload failed", "error", err)
	}
	h.done(w, r, http.StatusOK)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Snapshot())
}

// handleEvents streams checker events as server-sent events until the client
// goes away.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := h.checker.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) known(id string) bool {
	for _, it := range h.checker.Snapshot().Items {
		if it.Question.ID == id {
			return true
		}
	}
	return false
}

// done finishes a POST: JSON clients get the state, browsers are sent back
// to the dashboard.
func (h *Handler) done(w http.ResponseWriter, r *http.Request, status int) {
	if wantsJSON(r) {
		writeJSON(w, status, h.checker.Snapshot())
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
