// Package server exposes the HTTP API and the realtime channel endpoint. It
// performs no business logic: requests are resolved to a session agent by the
// client-supplied instance id and dispatched to the agent's operations.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/agent"
	"github.com/msandnes/invoiceagent/internal/config"
	"github.com/msandnes/invoiceagent/internal/objstore"
	"github.com/msandnes/invoiceagent/internal/signing"
)

// defaultInstanceID is used when a request omits instanceId, mirroring the
// client contract.
const defaultInstanceID = "default"

// Server routes HTTP and WebSocket traffic to session agents.
type Server struct {
	cfg      *config.Config
	log      *logrus.Logger
	registry *agent.Registry
	signer   *signing.Signer
	objs     *objstore.Storage
	server   *http.Server
	once     sync.Once
}

// New constructs a Server. objs may be nil when the export pipeline is
// disabled.
func New(cfg *config.Config, log *logrus.Logger, registry *agent.Registry, signer *signing.Signer, objs *objstore.Storage) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		signer:   signer,
		objs:     objs,
	}
}

// Handler returns the routed handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/vouchers", s.handleVouchers)
	mux.HandleFunc("/api/vouchers/", s.handleVoucherRoute)
	mux.HandleFunc("/api/exports/download", s.handleExportDownload)
	mux.HandleFunc("/invoice-agent/", s.handleChannel)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.WithField("address", s.cfg.Address).Info("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instanceID resolves the session identifier for a request.
func instanceID(r *http.Request) string {
	if id := r.URL.Query().Get("instanceId"); id != "" {
		return id
	}
	return defaultInstanceID
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) handleVouchers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a := s.registry.Get(instanceID(r))
	vouchers := a.ListVouchers(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "vouchers": vouchers})
}

func (s *Server) handleVoucherRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/vouchers/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	voucherID := parts[0]
	if len(parts) == 1 {
		s.handleVoucher(w, r, voucherID)
		return
	}
	if parts[1] == "export" {
		s.handleExportURL(w, r, voucherID)
		return
	}
	http.NotFound(w, r)
}
