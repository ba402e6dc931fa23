package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldops/dispatch/engine/attendance"
	"github.com/fieldops/dispatch/engine/audit"
	infra "github.com/fieldops/dispatch/engine/infra/postgres"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/timesheet"
	"github.com/fieldops/dispatch/pkg/config"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Server runs the dispatch HTTP API: it owns the connection pool, the
// assembled component graph, the notification dispatcher goroutine and
// the gin engine's lifecycle.
type Server struct {
	cfg *config.Config
	log logger.Logger
}

// NewServer creates a dispatch server.
func NewServer(cfg *config.Config, log logger.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

// StoreConfig maps the loaded database settings onto the driver config.
func StoreConfig(cfg *config.DatabaseConfig) *infra.Config {
	return &infra.Config{
		ConnString: cfg.ConnString,
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		DBName:     cfg.DBName,
		SSLMode:    cfg.SSLMode,
	}
}

// Run boots the server and blocks until a shutdown signal arrives:
// connect, migrate, seed, start the dispatcher, serve.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(logger.ContextWithLogger(context.Background(), s.log))
	defer cancel()

	storeCfg := StoreConfig(&s.cfg.Database)
	if err := infra.ApplyMigrations(ctx, storeCfg); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	store, err := infra.NewStore(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			s.log.Error("Error closing store", "error", err)
		}
	}()

	components := BuildComponents(store, s.cfg)
	if err := components.Seeder.Run(ctx); err != nil {
		return fmt.Errorf("bootstrap seeding: %w", err)
	}
	go components.Dispatcher.Run(ctx)

	router := s.buildRouter(store, components)
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.cfg.Server.Timeout,
		WriteTimeout: s.cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	s.log.Debug("Received shutdown signal, initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) buildRouter(store *infra.Store, components *Components) *gin.Engine {
	if s.cfg.Runtime.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(s.log))
	if s.cfg.Server.CORSEnabled {
		router.Use(CORSMiddleware())
	}
	router.GET("/healthz", func(c *gin.Context) {
		if err := store.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiBase := router.Group("/api/v0")
	apiBase.Use(AuthMiddleware(s.cfg.Server.JWTSecret, components.Users))
	shift.RegisterRoutes(apiBase, components.Shifts)
	attendance.RegisterRoutes(apiBase, components.Attendance)
	timesheet.RegisterRoutes(apiBase, components.Timesheets)
	project.RegisterRoutes(apiBase, components.Projects)
	audit.RegisterRoutes(apiBase, components.Timeline)
	return router
}
