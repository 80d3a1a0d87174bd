package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/api/middleware"
	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

const shutdownTimeout = 5 * time.Second

// Identity describes the stage serving diagnostics.
type Identity struct {
	Component string   `json:"component"`
	Instance  string   `json:"instance"`
	Channels  []string `json:"channels"`
}

// ChannelStatus is one entry of the /channels listing.
type ChannelStatus struct {
	Name  string             `json:"name"`
	Size  int64              `json:"size"`
	Node  *dataflow.Snapshot `json:"node,omitempty"`
	Error string             `json:"error,omitempty"`
}

// Server serves health, Prometheus metrics and channel state over HTTP.
type Server struct {
	router   *gin.Engine
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
	shmDir   string
	identity Identity
	started  time.Time
}

// New creates the diagnostics server. Routes are ready on return; call Run
// to listen.
func New(cfg *config.Config, identity Identity, gatherer prometheus.Gatherer, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Metrics.AllowedOrigins
	router.Use(middleware.CORS(cors))

	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	s := &Server{
		router:   router,
		logger:   logger,
		metrics:  metrics,
		gatherer: gatherer,
		shmDir:   cfg.Shm.Dir,
		identity: identity,
		started:  time.Now(),
	}

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/metrics/json", s.metricsJSON)
	router.GET("/channels", s.channels)
	router.GET("/channels/:name", s.channel)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Diagnostics server listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Diagnostics server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"identity": s.identity,
		"uptime":   time.Since(s.started).Seconds(),
	})
}

func (s *Server) metricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) channels(c *gin.Context) {
	infos, err := shmem.List(s.shmDir, c.Query("pattern"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out := make([]ChannelStatus, 0, len(infos))
	for _, info := range infos {
		out = append(out, s.status(info.Name, info.Size))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) channel(c *gin.Context) {
	name := c.Param("name")
	infos, err := shmem.List(s.shmDir, name)
	if err != nil || len(infos) != 1 || infos[0].Name != name {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	c.JSON(http.StatusOK, s.status(name, infos[0].Size))
}

func (s *Server) status(name string, size int64) ChannelStatus {
	st := ChannelStatus{Name: name, Size: size}
	snap, err := dataflow.Inspect(s.shmDir, name)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Node = &snap
	return st
}
