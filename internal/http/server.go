// Package http exposes the contract ledger as a JSON API.
package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chantier/internal/reporting"
	"chantier/internal/services"
)

type Server struct {
	http.Server
	contracts *services.ContractService
	reports   *reporting.Service
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, contracts *services.ContractService, reports *reporting.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		contracts: contracts,
		reports:   reports,
	}

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /projects", s.withLogging(s.handleCreateProject))
	mux.HandleFunc("POST /projects/{projectID}/budget-lines", s.withLogging(s.handleCreateBudgetLine))
	mux.HandleFunc("GET /projects/{projectID}/budget", s.withLogging(s.handleProjectBudget))
	mux.HandleFunc("GET /projects/{projectID}/cfc.csv", s.withLogging(s.handleCFCExport))
	mux.HandleFunc("POST /projects/{projectID}/contracts", s.withLogging(s.handleCreateContract))
	mux.HandleFunc("GET /projects/{projectID}/contracts", s.withLogging(s.handleListContracts))

	mux.HandleFunc("GET /contracts/{contractID}", s.withLogging(s.handleGetContract))
	mux.HandleFunc("POST /contracts/{contractID}/change-orders", s.withLogging(s.handleCreateChangeOrder))
	mux.HandleFunc("POST /contracts/{contractID}/progress", s.withLogging(s.handleCreateProgress))
	mux.HandleFunc("POST /contracts/{contractID}/invoices", s.withLogging(s.handleCreateInvoice))

	mux.HandleFunc("POST /invoices/{invoiceID}/payments", s.withLogging(s.handleCreatePayment))

	mux.HandleFunc("GET /organizations/{organizationID}/overview", s.withLogging(s.handleOrganizationOverview))

	return s
}

// withLogging tags every request with an id and logs start and completion.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := r.Context()

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
