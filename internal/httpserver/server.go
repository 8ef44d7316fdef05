package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
)

// Inbox is the notification state served by the status endpoints.
type Inbox interface {
	All() []domain.Notification
	Unread() []domain.Notification
	MarkRead(ctx context.Context, ids ...string) error
}

// Notices reports the transient notice being shown.
type Notices interface {
	Current() (domain.Notice, bool)
}

// Deps are the components the server reports on.
type Deps struct {
	Inbox   Inbox
	Notices Notices

	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// Status returns extra fields for /health, such as the realtime state.
	Status func() map[string]any
}

// Server is the local status server run alongside the watch command.
type Server struct {
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a status server listening on addr.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /notifications", s.handleNotifications)
	mux.HandleFunc("POST /notifications/{id}/read", s.handleMarkRead)
	mux.HandleFunc("GET /notice", s.handleNotice)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting status server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.deps.Status != nil {
		for k, v := range s.deps.Status() {
			resp[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if v := r.URL.Query().Get("unread"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.logger.Warn("invalid unread parameter", "unread", v, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", "unread must be a boolean")
			return
		}
		unreadOnly = parsed
	}

	var items []domain.Notification
	if unreadOnly {
		items = s.deps.Inbox.Unread()
	} else {
		items = s.deps.Inbox.All()
	}
	if items == nil {
		items = []domain.Notification{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"unread":        len(s.deps.Inbox.Unread()),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Inbox.MarkRead(r.Context(), id); err != nil {
		s.logger.Error("failed to mark notification read", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotice(w http.ResponseWriter, _ *http.Request) {
	n, ok := s.deps.Notices.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
