package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/yangwenmai/formconv/internal/model"
	"github.com/yangwenmai/formconv/internal/store"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	errMissingQuery = "Missing query parameter"
	maxListLimit    = 200
)

type queryRequest struct {
	Query string `json:"query"`
}

// decodeQuery returns the trimmed query, or "" when the body is invalid or has none.
func decodeQuery(r *http.Request) string {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Query)
}

// ---------------------------------------------------------------------------
// POST /responseAI.json
// ---------------------------------------------------------------------------

type generateResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	RunID   string      `json:"run_id,omitempty"`
}

// handleGenerate runs the whole pipeline inside the request and answers with
// the converted document.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	query := decodeQuery(r)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: errMissingQuery})
		return
	}

	req := model.NewGenerationRequest(uuid.New().String(), query)
	ctx := r.Context()
	if err := s.store.CreateRun(ctx, model.NewRun(req.ID, req.Query, model.StatusRunning)); err != nil {
		slog.Warn("could not record run", "run_id", req.ID, "error", err)
	}

	res, err := s.generator.Run(ctx, req)
	if err != nil {
		if sErr := s.store.MarkFailed(ctx, req.ID, model.ErrorInfoFrom(err)); sErr != nil {
			slog.Warn("could not record run failure", "run_id", req.ID, "error", sErr)
		}
		writeJSON(w, http.StatusInternalServerError, generateResponse{Error: err.Error(), RunID: req.ID})
		return
	}

	if sErr := s.store.MarkSucceeded(ctx, req.ID, res.ArtifactPath, res.ResultPath); sErr != nil {
		slog.Warn("could not record run success", "run_id", req.ID, "error", sErr)
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, Data: documentValue(res.Document), RunID: req.ID})
}

// documentValue embeds the document as JSON when it parses, and as a string
// otherwise.
func documentValue(doc []byte) interface{} {
	if json.Valid(doc) {
		return json.RawMessage(doc)
	}
	return string(doc)
}

// ---------------------------------------------------------------------------
// GET /health, GET /api/stats
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ---------------------------------------------------------------------------
// POST /api/runs
// ---------------------------------------------------------------------------

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	query := decodeQuery(r)
	if query == "" {
		writeError(w, http.StatusBadRequest, errMissingQuery)
		return
	}

	run := model.NewRun(uuid.New().String(), query, model.StatusQueued)
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     run.ID,
		"status": run.Status,
	})
}

// ---------------------------------------------------------------------------
// GET /api/runs
// ---------------------------------------------------------------------------

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := model.RunFilter{
		Status: splitComma(r.URL.Query().Get("status")),
		Stage:  splitComma(r.URL.Query().Get("stage")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// ---------------------------------------------------------------------------
// GET /api/runs/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}
	return run, true
}

// ---------------------------------------------------------------------------
// GET /api/runs/{id}/artifact, GET /api/runs/{id}/result
// ---------------------------------------------------------------------------

func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.serveRunFile(w, r, run, run.ArtifactPath, xlsxContentType)
}

func (s *Server) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.serveRunFile(w, r, run, run.ResultPath, "application/json")
}

// serveRunFile streams a file recorded on a succeeded run. Only files inside
// the output directory are served.
func (s *Server) serveRunFile(w http.ResponseWriter, r *http.Request, run *model.Run, path, contentType string) {
	if !run.Finished() {
		writeError(w, http.StatusConflict, fmt.Sprintf("run is still %s", run.Status))
		return
	}
	if run.Status != model.StatusSucceeded || path == "" {
		writeError(w, http.StatusConflict, fmt.Sprintf("run is %s and has no files", run.Status))
		return
	}
	if !s.layout.Contains(path) {
		slog.Warn("refusing to serve file outside output dir", "run_id", run.ID, "path", path)
		writeError(w, http.StatusForbidden, "file is outside the output directory")
		return
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusGone, "file no longer exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stat file")
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
