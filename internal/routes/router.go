package routes

import (
	"context"
	"net/http"
	"time"

	"farm-iot-provisioning/internal/cache"
	"farm-iot-provisioning/internal/config"
	"farm-iot-provisioning/internal/delivery/http/handler"
	"farm-iot-provisioning/internal/identity"
	"farm-iot-provisioning/internal/infrastructure/database/postgres"
	"farm-iot-provisioning/internal/logger"
	"farm-iot-provisioning/internal/middleware"
	"farm-iot-provisioning/internal/pricing"
	"farm-iot-provisioning/internal/provisioning"
	"farm-iot-provisioning/internal/usecase/access"
	"farm-iot-provisioning/internal/usecase/assignment"
	"farm-iot-provisioning/internal/usecase/estimation"
	"farm-iot-provisioning/internal/usecase/notification"
	"farm-iot-provisioning/internal/usecase/request"
	"farm-iot-provisioning/internal/usecase/transition"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether an optional backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the optional collaborators of the router. Zero values fall
// back to no-op implementations.
type Options struct {
	Publisher   provisioning.Publisher
	AccessCache cache.AccessCache
	CachePinger Pinger
	Clock       func() time.Time
}

func SetupRoutes(cfg *config.Config, db *postgres.DB, opts Options) (*gin.Engine, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	converter, err := pricing.NewConverter(cfg.Currency.EntryCode, cfg.Currency.CanonicalCode, cfg.Currency.EntryRate)
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Order: recovery, request ID, logging, security headers, CORS, request size limit, rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", healthHandler(db, opts.CachePinger))

	userRepository := postgres.NewUserRepository(db)
	requestRepository := postgres.NewRequestRepository(db)
	deviceRepository := postgres.NewDeviceRepository(db)
	accessRepository := postgres.NewAccessRepository(db)
	notificationRepository := postgres.NewNotificationRepository(db)
	committer := postgres.NewCommitter(db)

	runner := transition.NewRunner(requestRepository, committer)
	accessService := access.NewService(deviceRepository, accessRepository, userRepository, committer, opts.AccessCache)
	if opts.Clock != nil {
		runner = runner.WithClock(opts.Clock)
		accessService = accessService.WithClock(opts.Clock)
	}

	requestService := request.NewService(requestRepository, committer, runner)
	estimationService := estimation.NewService(converter, runner)
	assignmentService := assignment.NewService(runner, deviceRepository, notificationRepository, opts.Publisher, accessService)
	reconciler := assignment.NewReconciler(requestRepository, deviceRepository)
	notificationService := notification.NewService(notificationRepository)

	resolver := identity.NewResolver(userRepository, cfg.Auth.PrivilegedIdentities)

	requestHandler := handler.NewRequestHandler(requestService, estimationService, assignmentService, reconciler)
	deviceHandler := handler.NewDeviceHandler(accessService)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(&cfg.JWT, resolver))
		{
			requestHandler.RegisterRoutes(protected)
			deviceHandler.RegisterRoutes(protected)
			notificationHandler.RegisterRoutes(protected)

			operator := protected.Group("")
			operator.Use(middleware.OperatorOnly())
			{
				requestHandler.RegisterOperatorRoutes(operator)
			}
		}
	}

	logger.Info("All routes initialized")
	return router, nil
}

func healthHandler(db *postgres.DB, cachePinger Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(); err != nil {
			logger.Warn("Health check failed", zap.String("component", "database"), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		if cachePinger != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cachePinger.Ping(ctx); err != nil {
				// The cache is optional; listings fall back to the database.
				c.JSON(http.StatusOK, gin.H{
					"status":  "degraded",
					"message": "Access cache unreachable",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	}
}
