package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yangwenmai/formconv/internal/model"
	"github.com/yangwenmai/formconv/internal/output"
	"github.com/yangwenmai/formconv/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Generator runs the generation pipeline synchronously.
type Generator interface {
	Run(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error)
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store      store.RunRepository
	generator  Generator
	layout     output.Layout
	corsOrigin string
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigin sets the allowed CORS origin (default "*").
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithOutputLayout sets the directory downloads are served from.
func WithOutputLayout(l output.Layout) Option {
	return func(s *Server) { s.layout = l }
}

// New creates a new API server.
func New(s store.RunRepository, gen Generator, opts ...Option) *Server {
	srv := &Server{
		store:      s,
		generator:  gen,
		layout:     output.NewLayout("output_files"),
		corsOrigin: "*",
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.corsOrigin, limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /responseAI.json", s.handleGenerate)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/runs", s.handleEnqueue)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /api/runs/{id}/artifact", s.handleDownloadArtifact)
	s.mux.HandleFunc("GET /api/runs/{id}/result", s.handleDownloadResult)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// jsonContent defaults the response type; download handlers override it.
func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
