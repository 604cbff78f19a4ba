package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/config"
	"github.com/jwalitptl/medreminder/internal/bootstrap"
	"github.com/jwalitptl/medreminder/internal/handler/health"
	"github.com/jwalitptl/medreminder/internal/middleware"
	"github.com/jwalitptl/medreminder/pkg/logger"
)

func setupHealthServer(addr string, h *health.Handler, log *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	h.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load configuration")
	}
	log := bootstrap.NewLogger(cfg.Logger).WithFields(map[string]interface{}{"component": "worker"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, log, "worker")
	if err != nil {
		log.Fatal(err, "Failed to initialise runtime")
	}
	defer rt.Close()

	healthSrv := setupHealthServer(cfg.Worker.HealthAddr, health.NewHandler(rt.Registry, rt.Checks), log)

	manager := rt.NewManager()
	log.Info("Starting reminder worker", "runtime", rt.String(), "health_addr", cfg.Worker.HealthAddr)
	if err := manager.Run(ctx); err != nil {
		log.Error(err, "Scheduler manager stopped")
	}

	log.Info("Shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server forced to shutdown")
	}
	log.Info("Worker exited properly")
}
