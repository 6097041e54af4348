// Package api is the reference backend: a gin router exposing the ordering
// and payment endpoints over the {status, message, data} envelope.
package api

import (
	"net/http"

	"tableside/internal/database"
	"tableside/internal/idempotency"
	"tableside/internal/logging"
	"tableside/internal/monitoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server represents the backend API
type Server struct {
	router  *gin.Engine
	store   *database.Store
	keys    idempotency.Store
	hub     *Hub
	metrics *monitoring.Metrics
	monitor *monitoring.Monitor
	logger  *zap.Logger
	secret  []byte
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics shares a metrics instance with the caller
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithJWTSecret turns on bearer token checks for every route but /health
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// NewServer creates the API and registers its routes
func NewServer(store *database.Store, keys idempotency.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		keys:    keys,
		monitor: monitoring.NewMonitor(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetrics()
	}
	s.hub = NewHub(s.logger, s.metrics)

	s.router = gin.New()
	s.router.Use(gin.Recovery(), logging.GinMiddleware(s.logger), s.metrics.GinMiddleware())
	s.setupRoutes()
	return s
}

// Router returns the underlying gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Hub returns the event hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Monitor returns the health counters
func (s *Server) Monitor() *monitoring.Monitor {
	return s.monitor
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	api := s.router.Group("/")
	if s.secret != nil {
		api.Use(AuthMiddleware(s.secret))
	}
	{
		api.GET("/ws", s.hub.ServeWS)

		// Catalog
		api.GET("/menu/categories/list", s.listCategories)
		api.GET("/menu/items/list", s.listMenuItems)
		api.PUT("/menu/items/availability", s.setAvailability)
		api.GET("/tables/list", s.listTables)

		// Orders
		api.GET("/orders/list", s.listOrders)
		api.POST("/orders/add", s.createOrder)
		api.PUT("/orders/update-status", s.updateOrderStatus)
		api.POST("/orders/approve", s.approveOrder)

		// Payments
		api.POST("/payments/add", s.addPayment)
		api.GET("/payments/list", s.listPayments)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(); err != nil {
		s.logger.Error("database ping failed", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	respond(c, http.StatusOK, "Tableside API is running", gin.H{
		"database":  "ok",
		"listeners": s.hub.Clients(),
		"counters":  s.monitor.Snapshot(),
	})
}
