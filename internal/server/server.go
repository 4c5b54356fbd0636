package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/server/ratelimit"
	"github.com/textaudit/layered-audit/internal/services"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Config holds server configuration
type Config struct {
	Port                int
	StageCacheSize      int
	WorkflowConcurrency int               // Stages analysed in parallel per workflow wave, 0 means unlimited
	RateLimit           *ratelimit.Config // nil disables rate limiting
}

// Deps are the collaborators the handlers use.
type Deps struct {
	Documents services.DocumentService
	Sessions  services.SessionService
	Stages    pipeline.Deps
	Gatherer  prometheus.Gatherer // Serves /metrics, defaults to prometheus.DefaultGatherer
	Health    map[string]HealthCheck
	Logger    *zap.Logger
}

// HealthCheck reports whether one backing store answers.
type HealthCheck func(ctx context.Context) error

// healthTimeout bounds the checks run by /health.
const healthTimeout = 2 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	docs        services.DocumentService
	sessions    services.SessionService
	navigator   *steps.Navigator
	stages      *stageRegistry
	workflow    *pipeline.Workflow
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
	health      map[string]HealthCheck
	logger      *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	logger := logging.OrNop(deps.Logger).Named("server")
	deps.Stages.Logger = logging.OrNop(deps.Stages.Logger)

	registry, err := newStageRegistry(cfg.StageCacheSize, deps.Sessions, deps.Stages, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		docs:      deps.Documents,
		sessions:  deps.Sessions,
		navigator: steps.NewNavigator(deps.Sessions, deps.Stages.Resolver, logger),
		stages:    registry,
		workflow:  pipeline.NewWorkflow(logger, cfg.WorkflowConcurrency),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		health:    deps.Health,
		logger:    logger,
	}
	if cfg.RateLimit != nil {
		s.rateLimiter = ratelimit.NewLimiter(cfg.RateLimit)
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Pipeline graph
	mux.HandleFunc("GET /stages", s.handleListStages)
	mux.HandleFunc("GET /stages/{stage}", s.handleGetStageDef)

	// Documents
	mux.HandleFunc("POST /documents", s.handleUploadDocument)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)

	// Sessions
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/audit/stream", s.handleAuditStream)

	// Stage instances
	mux.HandleFunc("GET /sessions/{id}/stages/{stage}", s.handleStageSnapshot)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/enter", s.handleEnterStage)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/skip", s.handleSkipStage)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/retry", s.handleRetry)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/issues/{index}/toggle", s.handleToggleIssue)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/suggestion", s.handleLoadSuggestion)
	mux.HandleFunc("DELETE /sessions/{id}/stages/{stage}/suggestion", s.handleDismissSuggestion)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/revision", s.handleRequestRevision)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/revision/confirm", s.handleConfirmRevision)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/revision/acknowledge", s.handleAcknowledgeRevision)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/revision/accept", s.handleAcceptRevision)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/revision/regenerate", s.handleRegenerateRevision)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/revision/cancel", s.handleCancelRevision)
	mux.HandleFunc("POST /sessions/{id}/stages/{stage}/version", s.handleCommitVersion)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for streamed audits and revisions
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.navigator.Wait()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients that exhausted their bucket with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
		}
		if !allowed {
			if info.RetryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())+1))
			}
			s.logger.Warn("rate limit exceeded", zap.String("client", clientID(r)), zap.String("path", r.URL.Path))
			s.jsonResponse(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID is the remote IP of the request.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}

// handleHealth checks every registered store. Any failure answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.health) == 0 {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	s.jsonResponse(w, code, map[string]any{"status": status, "checks": checks})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response with a status derived from err.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.jsonResponse(w, status, newErrorBody(err))
}

// decodeJSON decodes an optional JSON body into dst and validates it.
// An empty body leaves dst at its zero value before validation.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return &ErrValidation{Field: "body", Message: err.Error()}
		}
	}
	return s.validate.Struct(dst)
}
