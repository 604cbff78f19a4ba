package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/config"
	"github.com/jwalitptl/medreminder/internal/bootstrap"
	"github.com/jwalitptl/medreminder/internal/handler/health"
	notificationHandler "github.com/jwalitptl/medreminder/internal/handler/notification"
	prescriptionHandler "github.com/jwalitptl/medreminder/internal/handler/prescription"
	reminderHandler "github.com/jwalitptl/medreminder/internal/handler/reminder"
	"github.com/jwalitptl/medreminder/internal/middleware"
	"github.com/jwalitptl/medreminder/internal/router"
	notificationService "github.com/jwalitptl/medreminder/internal/service/notification"
	prescriptionService "github.com/jwalitptl/medreminder/internal/service/prescription"
	reminderService "github.com/jwalitptl/medreminder/internal/service/reminder"
	"github.com/jwalitptl/medreminder/pkg/auth"
	"github.com/jwalitptl/medreminder/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load configuration")
	}
	log := bootstrap.NewLogger(cfg.Logger).WithFields(map[string]interface{}{"component": "api"})
	if cfg.JWT.Secret == "" {
		log.Fatal(errors.New("jwt.secret is empty"), "Refusing to start without a token secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, log, "api")
	if err != nil {
		log.Fatal(err, "Failed to initialise runtime")
	}
	defer rt.Close()

	// Initialize services
	reminderSvc := reminderService.NewService(rt.Schedules, log)
	prescriptionSvc := prescriptionService.NewService(rt.Schedules)
	notificationSvc := notificationService.NewService(rt.Preferences)

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)),
		health.NewHandler(rt.Registry, rt.Checks),
		[]router.Handler{
			reminderHandler.NewHandler(reminderSvc),
			prescriptionHandler.NewHandler(prescriptionSvc),
			notificationHandler.NewHandler(notificationSvc),
		},
		rt.Metrics,
		log,
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rt.RateLimit(),
			RateBurst:        cfg.RateLimit.Burst,
			RequestTimeout:   cfg.Server.WriteTimeout,
			AllowedOrigins:   cfg.Server.AllowedOrigins,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var wg sync.WaitGroup
	if cfg.Worker.Embedded {
		manager := rt.NewManager()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := manager.Run(ctx); err != nil {
				log.Error(err, "Scheduler manager stopped")
			}
		}()
	}

	go func() {
		log.Info("Starting API server", "port", cfg.Server.Port, "runtime", rt.String(), "embedded_worker", cfg.Worker.Embedded)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}
	wg.Wait()

	log.Info("Server exited properly")
}
