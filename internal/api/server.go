// Package api exposes the worktree manager over HTTP. The surface is a thin
// adapter: routes map one-to-one onto manager operations and the error
// taxonomy maps onto status codes (guardrail and duplicate violations 409,
// unknown names 404, bad paths and malformed requests 400, git failures 502).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/types"
)

// Server handles HTTP requests against one repository's manager.
type Server struct {
	mgr        *manager.Manager
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer creates an API server over the given manager.
func NewServer(mgr *manager.Manager) *Server {
	s := &Server{
		mgr: mgr,
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("/worktrees", s.handleCollection)
	s.mux.HandleFunc("/worktrees/", s.handleItem)
	s.mux.HandleFunc("/health", s.handleHealth)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// listResponse is the JSON body for GET /worktrees.
type listResponse struct {
	Worktrees []*types.WorktreeInfo `json:"worktrees"`
	Total     int                   `json:"total"`
}

// transitionRequest is the JSON body for POST /worktrees/{name}/transition.
type transitionRequest struct {
	Status  types.Status `json:"status"`
	Cascade bool         `json:"cascade"`
	Force   bool         `json:"force"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleCollection handles GET and POST /worktrees.
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		filter := types.WorktreeType(r.URL.Query().Get("type"))
		if filter != "" && !filter.IsValid() {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid worktree type %q", filter))
			return
		}
		infos, err := s.mgr.List(r.Context(), filter)
		if err != nil {
			s.writeTaxonomyError(w, err)
			return
		}
		if infos == nil {
			infos = []*types.WorktreeInfo{}
		}
		s.writeJSON(w, http.StatusOK, listResponse{Worktrees: infos, Total: len(infos)})

	case http.MethodPost:
		var req types.CreateRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		info, err := s.mgr.Create(r.Context(), req)
		if err != nil {
			s.writeTaxonomyError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, info)

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleItem handles /worktrees/{name} and /worktrees/{name}/transition.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.TrimPrefix(r.URL.Path, "/worktrees/")
	name, action, _ := strings.Cut(rest, "/")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "missing worktree name in path")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		info, err := s.mgr.Get(r.Context(), name)
		if err != nil {
			s.writeTaxonomyError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, info)

	case action == "" && r.Method == http.MethodDelete:
		opts := manager.TransitionOptions{
			Cascade: r.URL.Query().Get("cascade") == "true",
			Force:   r.URL.Query().Get("force") == "true",
		}
		if err := s.mgr.Transition(r.Context(), name, types.StatusRemoved, opts); err != nil {
			s.writeTaxonomyError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case action == "transition" && r.Method == http.MethodPost:
		var req transitionRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !req.Status.IsValid() {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", req.Status))
			return
		}
		opts := manager.TransitionOptions{Cascade: req.Cascade, Force: req.Force}
		if err := s.mgr.Transition(r.Context(), name, req.Status, opts); err != nil {
			s.writeTaxonomyError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"worktree": name,
			"status":   req.Status,
		})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read request body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

// writeTaxonomyError maps a manager error onto an HTTP status.
func (s *Server) writeTaxonomyError(w http.ResponseWriter, err error) {
	var (
		vcs        *types.VCSError
		invPath    *types.InvalidPathError
		invName    *types.InvalidNameError
		transition *types.TransitionError
	)
	switch {
	case types.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case types.IsGuardrail(err):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &transition):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invPath), errors.As(err, &invName):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &vcs):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
