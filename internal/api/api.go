// Package api exposes the query pipeline over HTTP.
//
// Endpoints:
//
//	POST /query    - run one question through the pipeline
//	GET  /health   - liveness and component info
//	GET  /metrics  - pipeline counters and latency stats
//
// The server speaks h2c so gRPC-style HTTP/2 clients on the same port work
// without TLS termination in front. Request bodies are size-capped and every
// request carries a generated ID in logs and the X-Request-ID header; the
// query text itself never appears in a log line.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/config"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/lang"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/metrics"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/pipeline"
)

// maxQueryBody caps one request body.
const maxQueryBody = 64 << 10 // 64 KB

// Server is the HTTP front of the pipeline.
type Server struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	metrics      *metrics.Metrics
	startTime    time.Time
	log          *logger.Logger
}

// New creates an API server.
func New(cfg *config.Config, o *pipeline.Orchestrator, m *metrics.Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New("API", cfg.LogLevel)
	}
	if cfg.APIToken != "" {
		log.Info("init", "bearer token authentication enabled")
	}
	return &Server{
		cfg:          cfg,
		orchestrator: o,
		metrics:      m,
		startTime:    time.Now(),
		log:          log,
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	return s.requestID(s.cors(s.auth(r)))
}

// requestID tags each request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		r.Header.Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// cors allows browser frontends on other origins to call the API.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auth checks for a valid Bearer token if one is configured. /health stays
// open so load balancers can probe without credentials.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(header[len(prefix):])), []byte(s.cfg.APIToken)) != 1 {
			s.log.Warnf("auth", "unauthorized request %s from %s to %s",
				r.Header.Get("X-Request-ID"), r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// queryRequest is the body of POST /query.
type queryRequest struct {
	Query               string `json:"query"`
	ActivatePIIDetector *bool  `json:"activate_pii_detector"`
	Language            string `json:"language,omitempty"`
}

// errorResponse wraps a pipeline error for the caller.
type errorResponse struct {
	Error     *pipeline.PipelineError `json:"error"`
	RequestID string                  `json:"request_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-Request-ID")
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `invalid request: need {"query":"..."}`, http.StatusBadRequest)
		return
	}

	// Protection defaults on; the caller must opt out explicitly.
	active := true
	if req.ActivatePIIDetector != nil {
		active = *req.ActivatePIIDetector
	}

	var language lang.Lang
	if req.Language != "" {
		parsed, err := lang.Parse(req.Language)
		if err != nil {
			http.Error(w, "invalid language tag", http.StatusBadRequest)
			return
		}
		language = parsed
	}

	start := time.Now()
	answer, err := s.orchestrator.Process(r.Context(), pipeline.Request{
		Query:            req.Query,
		ActivateDetector: active,
		Language:         language,
	})
	if err != nil {
		var pe *pipeline.PipelineError
		if !errors.As(err, &pe) {
			pe = &pipeline.PipelineError{
				Stage: pipeline.StateFailed, Code: pipeline.CodeInternal, Message: "internal error",
			}
		}
		s.log.Warnf("query", "request %s failed at %s (%s)", id, pe.Stage, pe.Code)
		writeJSON(s.log, w, statusFor(pe.Code), errorResponse{Error: pe, RequestID: id})
		return
	}

	s.log.Infof("query", "request %s answered in %s, %d citations",
		id, time.Since(start).Round(time.Millisecond), len(answer.Citations))
	writeJSON(s.log, w, http.StatusOK, answer)
}

// statusFor maps pipeline error codes onto HTTP statuses.
func statusFor(code pipeline.ErrorCode) int {
	switch code {
	case pipeline.CodeInvalidRequest, pipeline.CodeInvalidPolicy:
		return http.StatusBadRequest
	case pipeline.CodeTimeout:
		return http.StatusGatewayTimeout
	case pipeline.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status     string `json:"status"`
		Uptime     string `json:"uptime"`
		RetrieveK  int    `json:"retrieveK"`
		Generation struct {
			Model   string `json:"model"`
			Timeout int    `json:"timeoutSecs"`
		} `json:"generation"`
		Detection struct {
			NEREnabled bool    `json:"nerEnabled"`
			Threshold  float64 `json:"threshold"`
		} `json:"detection"`
	}

	resp := response{
		Status:    "running",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		RetrieveK: s.cfg.RetrieveK,
	}
	resp.Generation.Model = s.cfg.GenerateModel
	resp.Generation.Timeout = s.cfg.GenerateTimeoutSecs
	resp.Detection.NEREnabled = s.cfg.UseNERDetection
	resp.Detection.Threshold = s.cfg.NERConfidenceThreshold

	writeJSON(s.log, w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(s.log, w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(log *logger.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("respond", "json encode error: %v", err)
	}
}

// ListenAndServe starts the API server with h2c enabled.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.APIPort)
	s.log.Infof("serve", "listening on %s", addr)

	h2 := &http2.Server{}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.Handler(), h2),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
