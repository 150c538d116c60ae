// Package status exposes the read-only operational surface of the
// decision core over HTTP, plus the one privileged write: resuming a
// halted monitor.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/audit"
	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/metrics"
	"github.com/quantgate-lab/quantgate/internal/risk"
	"github.com/quantgate-lab/quantgate/internal/types"
)

// MaxRequestBodySize caps request bodies at 1 MB.
const MaxRequestBodySize = 1 << 20

const defaultDecisionLimit = 50

// DecisionReader is the slice of the audit store the server reads.
type DecisionReader interface {
	RecentDecisions(limit int) ([]audit.DecisionSummary, error)
	RejectionCounts() (map[string]int, error)
}

// Config holds the status server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" json:"addr" validate:"required"`

	// ResumeToken guards POST /api/v1/risk/resume and /halt. Requests
	// must carry it in the X-Operator-Token header. Empty disables
	// both endpoints entirely.
	ResumeToken string `yaml:"resume_token" json:"resume_token"`
}

// Server serves risk state, account state, the decision log, health
// and metrics.
type Server struct {
	cfg     Config
	monitor *risk.Monitor
	account *risk.AccountHandle
	store   DecisionReader
	metrics *metrics.Metrics
	log     *logger.Logger

	httpServer *http.Server
}

// NewServer creates a status server. store and m may be nil; the
// corresponding endpoints then answer 404.
func NewServer(cfg Config, monitor *risk.Monitor, account *risk.AccountHandle, store DecisionReader, m *metrics.Metrics, log *logger.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		monitor:    monitor,
		account:    account,
		store:      store,
		metrics:    m,
		log:        log,
		httpServer: nil,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Router builds the route table. Exposed for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/risk", s.handleRiskState).Methods(http.MethodGet)
	api.HandleFunc("/account", s.handleAccount).Methods(http.MethodGet)

	if s.store != nil {
		api.HandleFunc("/decisions", s.handleDecisions).Methods(http.MethodGet)
		api.HandleFunc("/rejections", s.handleRejections).Methods(http.MethodGet)
	}

	if s.cfg.ResumeToken != "" {
		api.HandleFunc("/risk/resume", s.handleResume).Methods(http.MethodPost)
		api.HandleFunc("/risk/halt", s.handleHalt).Methods(http.MethodPost)
	}

	return r
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.log.Info("Status server listening", zap.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.httpServer.Shutdown(shutdownCtx)

		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRiskState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.State())
}

func (s *Server) handleAccount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.account.Snapshot())
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDecisionLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})

			return
		}

		limit = parsed
	}

	decisions, err := s.store.RecentDecisions(limit)
	if err != nil {
		s.log.Error("Failed to read decisions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read decisions"})

		return
	}

	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleRejections(w http.ResponseWriter, _ *http.Request) {
	counts, err := s.store.RejectionCounts()
	if err != nil {
		s.log.Error("Failed to read rejection counts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read rejection counts"})

		return
	}

	writeJSON(w, http.StatusOK, counts)
}

type resumeRequest struct {
	Operator string `json:"operator"`
}

type haltRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid operator token"})

		return
	}

	var req resumeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodySize)).Decode(&req); err != nil || req.Operator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator is required"})

		return
	}

	if err := s.monitor.Resume(req.Operator); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})

		return
	}

	s.log.Info("Trading resumed via status API", zap.String("operator", req.Operator))
	writeJSON(w, http.StatusOK, s.monitor.State())
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid operator token"})

		return
	}

	var req haltRequest

	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodySize)).Decode(&req)

	if req.Reason == "" {
		req.Reason = types.HaltReasonManual
	}

	s.monitor.Halt(req.Reason)
	writeJSON(w, http.StatusOK, s.monitor.State())
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("X-Operator-Token") == s.cfg.ResumeToken
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(v)
}
