package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medreminder/internal/handler/health"
	"github.com/jwalitptl/medreminder/internal/middleware"
	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	health  *health.Handler
	patient []Handler
	limiter *middleware.RateLimiter
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RequestTimeout   time.Duration
	AllowedOrigins   []string
}

// NewRouter wires the middleware chain. Handlers in patientHandlers are
// mounted under /api/v1/patients/:patientId behind authentication.
func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	patientHandlers []Handler,
	m *metrics.Metrics,
	log *logger.Logger,
	config RouterConfig,
) *Router {
	middleware.RegisterValidators()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.Metrics(m),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
		middleware.Timeout(config.RequestTimeout),
	)

	r := &Router{
		engine:  engine,
		auth:    auth,
		health:  healthH,
		patient: patientHandlers,
	}
	if config.RateLimitEnabled {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
	}
	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())
	if r.limiter != nil {
		api.Use(r.limiter.RateLimit())
	}

	patients := api.Group("/patients/:" + middleware.PatientParam)
	patients.Use(middleware.NoStore(), r.auth.RequirePatientAccess())
	for _, h := range r.patient {
		h.RegisterRoutes(patients)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
