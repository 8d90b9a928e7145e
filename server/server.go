// Package server is the caption service: an HTTP API that checks the
// caller's daily quota and asks a language model for captions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"captionkit/ai"
	"captionkit/config"
	"captionkit/logger"
	"captionkit/quota"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 90 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server wires the router to an http.Server.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	writer  ai.Writer
	counter quota.Counter
	log     *logger.Logger
}

// New builds the router. cfg supplies the port, CORS origins and auth settings.
func New(cfg *config.Config, writer ai.Writer, counter quota.Counter, log *logger.Logger) *Server {
	log = logger.OrNop(log)

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	s := &Server{
		router:  router,
		writer:  writer,
		counter: counter,
		log:     log,
	}

	router.GET("/health", s.health)

	v1 := router.Group("/v1")
	if cfg.AuthDisabled {
		log.Warn("authentication disabled, every caller shares the anonymous quota")
		v1.Use(anonymous())
	} else {
		v1.Use(authenticate(cfg.JWTSecret))
	}
	v1.POST("/captions", s.generateCaptions)

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// corsConfig allows every origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "writer": s.writer.Name()})
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("caption service listening", "addr", s.server.Addr, "writer", s.writer.Name(), "daily_limit", s.counter.Limit())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.log.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.log.Info("context cancelled, shutting down")
	}

	// ctx may already be done
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("caption service stopped")
	return nil
}
