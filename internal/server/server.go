package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/lineproc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/tracing"
)

// StatusFunc reports the state of the current run.
type StatusFunc func() any

// Config contains server configuration
type Config struct {
	Addr        string
	Development bool
}

// Deps are the collaborators the routes read from. Metrics, Tracer and
// RunDone are optional.
type Deps struct {
	Logger   *logging.Logger
	Gatherer prometheus.Gatherer
	Metrics  *monitoring.Metrics
	Tracer   *tracing.Tracer
	Status   StatusFunc
	// RunDone is closed when the run has stopped; /health reports it.
	RunDone <-chan struct{}
}

// Server serves health, metrics and run status over HTTP
type Server struct {
	router    *gin.Engine
	logger    *logging.Logger
	config    Config
	deps      Deps
	startedAt time.Time

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
}

// statusResponse is the body of GET /status
type statusResponse struct {
	Run     any                         `json:"run"`
	Metrics *monitoring.MetricsSnapshot `json:"metrics,omitempty"`
	Uptime  string                      `json:"uptime"`
}

// NewServer creates a new server instance
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	if deps.Status == nil {
		deps.Status = func() any { return nil }
	}

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	if deps.Tracer != nil {
		router.Use(tracing.HTTPMiddleware(deps.Tracer))
	}
	if deps.Metrics != nil {
		router.Use(monitoring.Middleware(deps.Metrics))
	}

	s := &Server{
		router:    router,
		logger:    deps.Logger,
		config:    cfg,
		deps:      deps,
		startedAt: time.Now(),
	}

	// Register routes
	router.GET("/health", s.health)
	router.GET("/status", s.status)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.deps.RunDone != nil {
		resp["run"] = "running"
		select {
		case <-s.deps.RunDone:
			resp["run"] = "finished"
		default:
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) status(c *gin.Context) {
	resp := statusResponse{
		Run:    s.deps.Status(),
		Uptime: time.Since(s.startedAt).Round(time.Millisecond).String(),
	}
	if s.deps.Metrics != nil {
		snap := s.deps.Metrics.Snapshot()
		resp.Metrics = &snap
	}

	body, err := sonic.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to encode status", zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}(s.http)
	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}
