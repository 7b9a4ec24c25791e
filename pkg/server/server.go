// Package server exposes stored results over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/lirany1/synth-report/pkg/analytics"
	"github.com/lirany1/synth-report/pkg/evaluator"
	"github.com/lirany1/synth-report/pkg/export"
	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/storage"
)

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	PlotsDir       string
	ThresholdsFile string
}

// Server provides live result viewing
type Server struct {
	config *Config
	store  storage.Store
	router *mux.Router
	http   *http.Server
}

// NewServer creates a new result server over store
func NewServer(cfg *Config, store storage.Store) *Server {
	s := &Server{
		config: cfg,
		store:  store,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("Server running at http://%s", addr)
	logger.Infof("Press Ctrl+C to stop")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a running server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// API endpoints, registered on the root router so a method mismatch
	// is answered with 405
	s.router.HandleFunc("/api/summary/latest", s.handleLatest).Methods(http.MethodGet)
	s.router.HandleFunc("/api/summary/history", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/verdicts", s.handleVerdicts).Methods(http.MethodGet)
	s.router.HandleFunc("/api/trends", s.handleTrends).Methods(http.MethodGet)
	s.router.HandleFunc("/api/export/{format}", s.handleExport).Methods(http.MethodGet)

	// Serve chart artifacts
	if s.config.PlotsDir != "" {
		fs := http.FileServer(http.Dir(s.config.PlotsDir))
		s.router.PathPrefix("/plots/").Handler(http.StripPrefix("/plots/", fs))
	}
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Latest()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	module := r.URL.Query().Get("module")

	entries := make([]storage.Entry, 0)
	for e, err := range s.store.History() {
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if module != "" && e.Record.Module != module {
			continue
		}
		entries = append(entries, e)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// bundle evaluates the latest record against the configured thresholds
func (s *Server) bundle() (*export.Bundle, error) {
	rec, err := s.store.Latest()
	if err != nil {
		return nil, err
	}
	spec, err := evaluator.LoadThresholds(s.config.ThresholdsFile)
	if err != nil {
		logger.Warnf("Ignoring thresholds: %v", err)
		spec = evaluator.ThresholdSpec{}
	}
	return export.NewBundle(rec, spec), nil
}

func (s *Server) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	b, err := s.bundle()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := analytics.NewEngine(s.store).Analyze(r.URL.Query().Get("module"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

var contentTypes = map[string]string{
	export.FormatJSON: "application/json",
	export.FormatYAML: "application/yaml",
	export.FormatCSV:  "text/csv",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	ct, ok := contentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported export format %q", format))
		return
	}
	b, err := s.bundle()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	if err := export.Write(w, b, format); err != nil {
		logger.Errorf("Export failed: %v", err)
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeStoreError maps an empty store to 404 and anything else to 500
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrEmptyStore) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
