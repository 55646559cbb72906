package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/raaihank/incident-sentinel/internal/config"
	"github.com/raaihank/incident-sentinel/internal/incident"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/observability"
	"github.com/raaihank/incident-sentinel/internal/security"
	"github.com/raaihank/incident-sentinel/internal/web"
	"github.com/raaihank/incident-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Options wires a Server
type Options struct {
	Config  *config.Config
	Logger  *logger.Logger
	Service *incident.Service
	Hub     *websocket.Hub
	Metrics *observability.Metrics
	Version string
}

// Server exposes the incident service over HTTP
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	service *incident.Service
	wsHub   *websocket.Hub
	metrics *observability.Metrics
	limiter *security.RateLimiter
	proxies []*net.IPNet
	version string
	router  *mux.Router
	server  *http.Server
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a server and registers its routes
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.GetDefaults()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("api"),
		service: opts.Service,
		wsHub:   opts.Hub,
		metrics: opts.Metrics,
		limiter: security.NewRateLimiter(cfg.Security.RateLimit),
		version: opts.Version,
		router:  mux.NewRouter(),
	}
	proxies, err := cfg.Server.TrustedProxyNetworks()
	if err != nil {
		s.logger.Warn("Ignoring trusted proxies", zap.Error(err))
	}
	s.proxies = proxies
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.corsMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/draft", s.handleDraft).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/draft/redact_local", s.handleRedactLocal).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/publish", s.handlePublish).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)

	title := s.config.Generation.Organization + " Status"
	s.router.HandleFunc("/status", web.StatusPageHandler(title, s.service, s.logger)).Methods(http.MethodGet)

	if s.config.Metrics.Enabled && s.metrics != nil {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.config.WebSocket.Enabled && s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the websocket hub and serves HTTP until Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting incident-sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.String("storage_backend", s.config.Storage.Backend),
		zap.Bool("websocket_enabled", s.config.WebSocket.Enabled && s.wsHub != nil),
		zap.Bool("rate_limit_enabled", s.config.Security.RateLimit.Enabled),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(s.ctx)
	}
	s.limiter.StartCleanupRoutine(s.ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and the hub
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping incident-sentinel server")
	s.cancel()
	return s.server.Shutdown(ctx)
}
