// Package api is the engine's optional HTTP admin surface: a thin
// net/http.ServeMux wrapping Engine's target-registry and status
// operations in JSON, grounded on the teacher's pkg/api HealthServer
// shape (plain stdlib handlers, no router framework).
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/sentinel/pkg/engine"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
)

// Server exposes one Engine's registry over HTTP.
type Server struct {
	eng *engine.Engine
	mux *http.ServeMux
}

// NewServer builds a Server over eng, wiring /targets, /targets/status, and
// /metrics.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{eng: eng, mux: http.NewServeMux()}
	s.mux.HandleFunc("/targets", s.handleTargets)
	s.mux.HandleFunc("/targets/status", s.handleStatus)
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

// Handler returns the server's http.Handler for embedding or ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks serving addr until the listener fails or is closed.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

type targetRequest struct {
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Hostname   string `json:"hostname"`
	HostHeader string `json:"hostheader"`
	Healthy    bool   `json:"healthy"`
}

type targetListResponse struct {
	Targets []engine.TargetStatus `json:"targets"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.eng.GetTargetList()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, targetListResponse{Targets: list})

	case http.MethodPost:
		var req targetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.eng.AddTarget(r.Context(), req.IP, req.Port, req.Hostname, req.HostHeader, req.Healthy); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodDelete:
		req, err := parseTargetQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.eng.RemoveTarget(r.Context(), req.ip, req.port, req.hostname); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		req, err := parseTargetQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		healthy, err := s.eng.GetTargetStatus(req.ip, req.port, req.hostname)
		if errors.Is(err, engine.ErrTargetNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"healthy": healthy})

	case http.MethodPost:
		var req targetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.eng.SetTargetStatus(r.Context(), req.IP, req.Port, req.Hostname, req.Healthy); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type targetQuery struct {
	ip       string
	port     int
	hostname string
}

func parseTargetQuery(r *http.Request) (targetQuery, error) {
	q := r.URL.Query()
	port, err := strconv.Atoi(q.Get("port"))
	if err != nil {
		return targetQuery{}, errors.New("port must be an integer")
	}
	return targetQuery{ip: q.Get("ip"), port: port, hostname: q.Get("hostname")}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithComponent("api").Warn().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
