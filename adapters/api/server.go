// Package api exposes the core pipeline over HTTP as JSON. It consumes
// only the four core outputs (diagnostics, causal graph, simulation
// result, sensitivity result); no presentation logic lives here.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Relatronica/sdl/app"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/engine"
	"github.com/Relatronica/sdl/internal"
	"github.com/Relatronica/sdl/internal/errors"
)

// Server is the HTTP API over the scenario service.
type Server struct {
	router    *chi.Mux
	scenarios *app.ScenarioService
	log       *internal.Logger
}

// NewServer creates a server with routing and middleware configured.
func NewServer(scenarios *app.ScenarioService) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		scenarios: scenarios,
		log:       internal.DefaultLogger,
	}
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/parse", s.handleParse)
	s.router.Post("/validate", s.handleValidate)
	s.router.Post("/simulate", s.handleSimulate)
	s.router.Post("/sensitivity", s.handleSensitivity)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// scenarioRequest is the shared request body: SDL source plus optional
// engine options.
type scenarioRequest struct {
	Source            string             `json:"source"`
	Runs              int                `json:"runs,omitempty"`
	Seed              int64              `json:"seed,omitempty"`
	Percentiles       []float64          `json:"percentiles,omitempty"`
	ParameterDefaults map[string]float64 `json:"parameterDefaults,omitempty"`
}

func (req *scenarioRequest) engineOptions() engine.Options {
	return engine.Options{
		Runs:              req.Runs,
		Seed:              req.Seed,
		Percentiles:       req.Percentiles,
		ParameterDefaults: req.ParameterDefaults,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	a, err := s.scenarios.Analyze(req.Source)
	resp := struct {
		Diagnostics []diag.Diagnostic `json:"diagnostics"`
		Parsed      bool              `json:"parsed"`
	}{Diagnostics: a.Diagnostics, Parsed: err == nil}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	a, err := s.scenarios.Analyze(req.Source)
	if err != nil {
		writeJSON(w, http.StatusOK, struct {
			Diagnostics []diag.Diagnostic `json:"diagnostics"`
		}{a.Diagnostics})
		return
	}
	resp := struct {
		Diagnostics []diag.Diagnostic  `json:"diagnostics"`
		CausalGraph *graph.CausalGraph `json:"causalGraph,omitempty"`
	}{Diagnostics: a.Diagnostics, CausalGraph: a.Graph}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	a, err := s.scenarios.Analyze(req.Source)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, a.Diagnostics)
		return
	}
	res, err := s.scenarios.Simulate(r.Context(), a, req.engineOptions())
	if err != nil {
		s.writeError(w, statusFor(err), err, a.Diagnostics)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	a, err := s.scenarios.Analyze(req.Source)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, a.Diagnostics)
		return
	}
	res, err := s.scenarios.Sensitivity(r.Context(), a, req.engineOptions())
	if err != nil {
		s.writeError(w, statusFor(err), err, a.Diagnostics)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*scenarioRequest, bool) {
	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "malformed request body"), nil)
		return nil, false
	}
	if req.Source == "" {
		s.writeError(w, http.StatusBadRequest, errors.New(errors.CodeParseFailed, "source is required"), nil)
		return nil, false
	}
	return &req, true
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeParseFailed, errors.CodeValidation, errors.CodePrecondition:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, diags []diag.Diagnostic) {
	s.log.Warn("request failed: %v", err)
	writeJSON(w, status, struct {
		Error       string            `json:"error"`
		Code        string            `json:"code"`
		Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
	}{Error: err.Error(), Code: errors.GetCode(err), Diagnostics: diags})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
