package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crewdeck/crewdeck/pkg/auth"
	"github.com/crewdeck/crewdeck/pkg/config"
	"github.com/crewdeck/crewdeck/pkg/middleware"
	"github.com/crewdeck/crewdeck/pkg/observability"
	"github.com/crewdeck/crewdeck/pkg/permissions"
	"github.com/crewdeck/crewdeck/pkg/projects"
	"github.com/crewdeck/crewdeck/pkg/teams"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}
	if err := permissions.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}
	logger.Info("database ready")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	var permMetrics *permissions.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		permMetrics = permissions.NewMetrics(registry)
		go metrics.CollectDBStats(ctx, db, 0)
	}

	store := permissions.NewStore(db)
	teamCache := permissions.NewContextCache[*permissions.TeamContext](cfg.Cache.Size, cfg.Cache.TTL)
	projectCache := permissions.NewContextCache[*permissions.ProjectContext](cfg.Cache.Size, cfg.Cache.TTL)
	teamChecker := permissions.NewTeamChecker(store, teamCache, permMetrics)
	projectChecker := permissions.NewProjectChecker(store, projectCache, permMetrics)

	teamService := teams.NewService(db, teamChecker, projectChecker)
	projectService := projects.NewService(db, projectChecker)

	tokens := auth.NewTokenStore(db)
	guard := permissions.NewMiddleware(teamChecker, projectChecker)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	router.Use(middleware.NewAuthMiddleware(tokens, false).Handler)

	permissions.NewHandlers(teamChecker, projectChecker).RegisterRoutes(router)
	teams.NewHandlers(teamService, guard).RegisterRoutes(router)
	projects.NewHandlers(projectService, projectChecker, guard).RegisterRoutes(router)

	// Health and metrics on a separate listener for probes
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", observability.HealthHandler(db))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", server.Addr).Info("starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server shutdown")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health server shutdown")
	}
	logger.Info("stopped")
}
