package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiolibrelab/tapedeck/internal/config"
	"github.com/audiolibrelab/tapedeck/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Server represents the web server for controlling the deck
type Server struct {
	service service.Service
	cfg     *config.Config
	port    string
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// New creates a new web server instance around svc
func New(svc service.Service, port string) *Server {
	cfg := svc.GetConfig()
	if port == "" {
		port = cfg.Server.Port
	}
	return &Server{
		service: svc,
		cfg:     cfg,
		port:    port,
	}
}

// Router builds the HTTP handler tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	if rps := s.cfg.Server.RateLimitRPS; rps > 0 {
		r.Use(httprate.Limit(
			rps,
			time.Second,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "1")
				s.sendErrorResponse(w, http.StatusTooManyRequests, "Too many requests", "path", r.URL.Path)
			}),
		))
	}

	r.Get("/", s.handleIndex)
	r.Get("/status", s.handleStatus)

	r.Route("/record", func(r chi.Router) {
		r.Post("/start", s.handleStartRecording)
		r.Post("/stop", s.handleStopRecording)
		r.Post("/toggle", s.handleToggleRecording)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/recordings", s.handleRecordings)
		r.Post("/recordings/{id}/select", s.handleSelect)
		r.Post("/recordings/{id}/delete", s.handleRequestDelete)

		r.Post("/play", s.handlePlay)
		r.Post("/pause", s.handlePause)
		r.Post("/toggle", s.handleTogglePlay)
		r.Post("/rewind", s.handleRewind)

		r.Post("/delete/confirm", s.handleConfirmDelete)
		r.Post("/delete/cancel", s.handleCancelDelete)

		r.Post("/edit/begin", s.handleBeginEdit)
		r.Post("/edit/input", s.handleEditInput)
		r.Post("/edit/commit", s.handleCommitEdit)
		r.Post("/edit/cancel", s.handleCancelEdit)

		r.Get("/handles/{token}", s.handleHandle)
		r.Get("/events", s.handleEvents)
	})

	if s.cfg.Server.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("Starting tapedeck web server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", getLocalIP(), s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("Shutting down web server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

func (s *Server) sendSuccess(w http.ResponseWriter, message string) {
	s.sendJSON(w, GenericResponse{Success: true, Message: message})
}

// sendErrorResponse logs the failure and writes a JSON error body
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(GenericResponse{
		Success: false,
		Error:   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
