// Package api serves the audit form and the JSON API over gin.
// It exposes audit submission (synchronous and over a websocket with progress
// messages), the audit history, and downloads of the generated documents.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server is the HTTP front end of the audit service.
type Server struct {
	engine *gin.Engine
	server *http.Server
	svc    *audit.Service
}

// NewServer builds the gin engine and registers all routes. The listen address is
// taken from cfg.Host and cfg.Port.
func NewServer(cfg *config.Config, svc *audit.Service) *Server {
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.SetHTMLTemplate(pageTemplate)

	s := &Server{engine: engine, svc: svc}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.index)
	s.engine.POST("/audit", s.submitForm)

	api := s.engine.Group("/api")
	api.GET("/status", s.status)
	api.GET("/models", s.models)
	api.GET("/audits", s.listAudits)
	api.POST("/audits", s.createAudit)
	api.GET("/audits/ws", s.auditWebsocket)
	api.GET("/audits/:id", s.getAudit)
	api.GET("/audits/:id/report.docx", s.downloadReport)
	api.GET("/audits/:id/tasks.xlsx", s.downloadTasks)
}

// Handler returns the root handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("claudio listening on http://%s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve %s: %w", s.server.Addr, err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to a timeout.
func (s *Server) Stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	log.Info("claudio server stopped")
	return nil
}
