// Package api exposes the gateway's HTTP surface: the ePOS-compatible print
// endpoint, health endpoints, admin and printer management, and the event
// websocket.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/thereceipt/print-gateway/internal/config"
	"github.com/thereceipt/print-gateway/internal/printer"
)

// Server is the API server.
type Server struct {
	router     *gin.Engine
	store      *config.Store
	manager    *printer.Manager
	health     *printer.HealthCache
	hub        *Hub
	logger     zerolog.Logger
	configPath string
	version    string
	startedAt  time.Time
}

// NewServer wires the HTTP routes over the shared printer store, connection
// manager, and health cache.
func NewServer(store *config.Store, manager *printer.Manager, health *printer.HealthCache, configPath, version string, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:     router,
		store:      store,
		manager:    manager,
		health:     health,
		hub:        NewHub(logger),
		logger:     logger,
		configPath: configPath,
		version:    version,
		startedAt:  time.Now(),
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Health
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/health/printers", s.handlePrintersHealth)
	s.router.GET("/health/printer/:printer_id", s.handlePrinterHealth)

	// Admin (token-gated)
	s.router.GET("/admin/status", s.handleAdminStatus)
	s.router.GET("/admin/shutdown", s.handleAdminShutdown)
	s.router.GET("/admin/restart", s.handleAdminRestart)
	s.router.GET("/admin/ssl/renew", s.handleAdminRenewSSL)

	// Printer management (token-gated)
	s.router.GET("/api/printers", s.handleListPrinters)
	s.router.POST("/api/printers", s.handleCreatePrinter)
	s.router.GET("/api/printers/reload", s.handleReloadPrinters)
	s.router.GET("/api/printers/:printer_id", s.handleGetPrinter)
	s.router.PUT("/api/printers/:printer_id", s.handleUpdatePrinter)
	s.router.DELETE("/api/printers/:printer_id", s.handleDeletePrinter)

	// Events and metrics
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ePOS-compatible print endpoint
	s.router.Any("/:printer_id/cgi-bin/epos/service.cgi", s.handlePrint)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(200, "ok")
}

// Run starts the API server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Set("request_id", reqID)

		c.Next()

		logger.Info().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
