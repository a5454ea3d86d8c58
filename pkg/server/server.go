package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lirany1/cucumber-insights/pkg/analytics"
	"github.com/lirany1/cucumber-insights/pkg/dashboard"
	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/storage"
)

const (
	defaultRunsLimit = 20
	defaultTrendDays = 30
	shutdownTimeout  = 5 * time.Second
)

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	SummaryPath string
	Dashboard   dashboard.Options
}

// History is the run store read by the API
type History interface {
	analytics.History
	RecentRuns(limit int) ([]storage.RunRecord, error)
}

// Server renders the dashboard live from the summary JSON
type Server struct {
	config  *Config
	router  *mux.Router
	history History
	engine  *analytics.Engine
}

// NewServer creates a new dashboard server; history may be nil
func NewServer(cfg *Config, history History) *Server {
	s := &Server{
		config:  cfg,
		router:  mux.NewRouter(),
		history: history,
		engine:  analytics.NewEngine(history),
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server running at http://%s", addr)
		logger.Infof("Press Ctrl+C to stop")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")
	api.HandleFunc("/trends", s.handleTrends).Methods("GET")

	s.router.HandleFunc("/", s.handleDashboard).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readSummary(w)
	if !ok {
		return
	}

	m, err := dashboard.LoadMetrics(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page, err := dashboard.Render(m, s.engine.Analyze(m.Failures), s.config.Dashboard)
	if err != nil {
		logger.Errorf("Dashboard render failed: %v", err)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readSummary(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "run history is not configured", http.StatusNotFound)
		return
	}

	limit, err := queryInt(r, "limit", defaultRunsLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := s.history.RecentRuns(limit)
	if err != nil {
		logger.Errorf("Failed to list runs: %v", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	writeJSON(w, map[string]interface{}{"runs": runs})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "run history is not configured", http.StatusNotFound)
		return
	}

	days, err := queryInt(r, "days", defaultTrendDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trends, err := s.engine.GenerateTrends(days)
	if err != nil {
		logger.Errorf("Failed to build trends: %v", err)
		http.Error(w, "failed to build trends", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trends)
}

// readSummary loads the summary file, answering 404 when it does not exist
func (s *Server) readSummary(w http.ResponseWriter) ([]byte, bool) {
	data, err := os.ReadFile(s.config.SummaryPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, fmt.Sprintf("summary %s not found; run parse first", s.config.SummaryPath), http.StatusNotFound)
			return nil, false
		}
		logger.Errorf("Failed to read summary: %v", err)
		http.Error(w, "failed to read summary", http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
