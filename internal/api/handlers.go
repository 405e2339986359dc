package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flowforge/flowd/internal/compiler"
	"github.com/flowforge/flowd/internal/supervisor"
	"github.com/flowforge/flowd/pkg/flow"
)

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse wraps a single error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// createProjectRequest is the body of POST /api/projects/.
type createProjectRequest struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Packages []flow.PackageRef `json:"packages"`
	Flow     *flow.Graph       `json:"flow"`
}

// runResponse is the response of POST /api/projects/{name}/run.
type runResponse struct {
	ProcessID uint32 `json:"process_id"`
}

// lastCompileResponse is the response of GET /api/projects/{name}/last_compile.
type lastCompileResponse struct {
	ModifiedTime string `json:"modified_time"`
}

// confirmationResponse is a plain acknowledgement body for operations whose
// success carries no payload of its own (delete, stop).
type confirmationResponse struct {
	Status string `json:"status"`
}

// buildKind reads the build_type query parameter, defaulting to native when
// absent, and rejects anything else as a validation error.
func buildKind(r *http.Request) (compiler.BuildKind, error) {
	v := r.URL.Query().Get("build_type")
	switch compiler.BuildKind(v) {
	case "":
		return compiler.BuildNative, nil
	case compiler.BuildNative, compiler.BuildWeb:
		return compiler.BuildKind(v), nil
	default:
		return "", fmt.Errorf("unknown build_type %q", v)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListPackages())
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pkg, ok := s.svc.GetPackage(name)
	if !ok {
		writeError(w, http.StatusNotFound, "package not found")
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) handleAddPackage(w http.ResponseWriter, r *http.Request) {
	var pkg flow.Package
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid package body: "+err.Error())
		return
	}
	if err := s.svc.AddPackage(&pkg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	project, err := s.svc.CreateProject(req.Name, req.Version, req.Packages, req.Flow)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	project, ok := s.svc.GetProject(name)
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.svc.DeleteProject(name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{Status: "deleted"})
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var graph flow.Graph
	if err := json.NewDecoder(r.Body).Decode(&graph); err != nil {
		writeError(w, http.StatusBadRequest, "invalid flow body: "+err.Error())
		return
	}
	project, err := s.svc.UpdateFlow(name, &graph)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind, err := buildKind(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result, err := s.svc.CompileProject(r.Context(), name, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := "ok"
	if !result.Success {
		status = result.Output
	}
	writeJSON(w, http.StatusOK, confirmationResponse{Status: status})
}

func (s *Server) handleLastCompile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind, err := buildKind(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ts, ok := s.svc.LastCompile(name, kind)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no recorded compile for this project")
		return
	}
	writeJSON(w, http.StatusOK, lastCompileResponse{ModifiedTime: ts})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind, err := buildKind(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	id, err := s.svc.RunProject(r.Context(), name, kind, r.URL.Query().Get("static_addr"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	numericID, err := strconv.ParseUint(string(id), 10, 32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("process id %q is not numeric", id))
		return
	}
	writeJSON(w, http.StatusCreated, runResponse{ProcessID: uint32(numericID)})
}

func (s *Server) handleStopProcess(w http.ResponseWriter, r *http.Request) {
	id, err := parseProcessID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.svc.StopProcess(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, confirmationResponse{Status: "stopped"})
}

func (s *Server) handleProcessLogs(w http.ResponseWriter, r *http.Request) {
	id, err := parseProcessID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lines, err := s.svc.ProcessLogs(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusCreated, lines)
}

// parseProcessID validates the :id path segment as a decimal process id —
// process ids are presented as decimal strings at the HTTP boundary, and a
// value that doesn't parse is rejected before it ever reaches the
// Supervisor.
func parseProcessID(r *http.Request) (supervisor.ProcessID, error) {
	raw := chi.URLParam(r, "id")
	if _, err := strconv.ParseUint(raw, 10, 32); err != nil {
		return "", fmt.Errorf("malformed process id %q", raw)
	}
	return supervisor.ProcessID(raw), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
