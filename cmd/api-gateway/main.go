package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/pulsefit/booking-api/api/swagger"
	"github.com/pulsefit/booking-api/internal/handler"
	"github.com/pulsefit/booking-api/internal/middleware"
	"github.com/pulsefit/booking-api/internal/models"
	"github.com/pulsefit/booking-api/internal/repository"
	"github.com/pulsefit/booking-api/internal/service"
	"github.com/pulsefit/booking-api/pkg/cache"
	"github.com/pulsefit/booking-api/pkg/config"
	"github.com/pulsefit/booking-api/pkg/database"
	"github.com/pulsefit/booking-api/pkg/logger"
	corsmiddleware "github.com/pulsefit/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pulsefit/booking-api/pkg/middleware/requestid"
)

// @title PulseFit Booking API
// @version 1.0.0
// @description Trainer availability and session booking platform
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheEnabled := cfg.Booking.SlotCacheEnabled
	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, slot cache disabled", "error", err)
			cacheEnabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer redisClient.Close()
		}
	}

	userRepo := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	blockedRepo := repository.NewBlockedTimeRepository(db)
	policyRepo := repository.NewTrainerPolicyRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Booking.SlotCacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	availabilitySvc := service.NewAvailabilityService(
		userRepo,
		availabilityRepo,
		blockedRepo,
		bookingRepo,
		policyRepo,
		service.SystemClock(),
		logr,
		service.AvailabilityConfig{
			DefaultSlotMinutes: cfg.Booking.DefaultSlotMinutes,
			MaxRangeDays:       cfg.Booking.MaxRangeDays,
		},
	)

	bookingSvc := service.NewBookingService(bookingRepo, availabilitySvc, policyRepo, cacheSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(availabilityRepo, blockedRepo, policyRepo, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(userRepo, bookingRepo, blockedRepo, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, cacheSvc, metrics)
	bookingHandler := handler.NewBookingHandler(bookingSvc, metrics)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/availability/check", availabilityHandler.Check)

	trainers := protected.Group("/trainers/:trainerId")
	trainers.GET("/slots", availabilityHandler.Slots)
	trainers.GET("/availability", scheduleHandler.GetWeeklyAvailability)
	trainers.GET("/blocked-times", scheduleHandler.ListBlockedTimes)
	trainers.GET("/capacity", scheduleHandler.GetCapacity)
	trainers.GET("/booking-rules", scheduleHandler.GetBookingRules)

	// Schedule writes are restricted to the trainer themselves or an admin.
	schedule := trainers.Group("")
	schedule.Use(middleware.RBAC("ADMIN", "SELF"))
	schedule.PUT("/availability", scheduleHandler.UpsertWeeklyAvailability)
	schedule.DELETE("/availability/:day", scheduleHandler.DeleteWeeklyAvailability)
	schedule.POST("/blocked-times", scheduleHandler.CreateBlockedTime)
	schedule.DELETE("/blocked-times/:id", scheduleHandler.DeleteBlockedTime)
	schedule.PUT("/capacity", scheduleHandler.UpsertCapacity)
	schedule.PUT("/booking-rules", scheduleHandler.UpsertBookingRules)
	if cfg.Exports.Enabled {
		schedule.GET("/schedule/export", scheduleHandler.ExportSchedule)
	}

	bookings := protected.Group("/bookings")
	bookings.POST("", bookingHandler.Create)
	bookings.GET("", bookingHandler.List)
	bookings.GET("/:id", bookingHandler.Get)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)
	bookings.POST("/:id/confirm", middleware.RequireRoles(models.RoleTrainer, models.RoleAdmin), bookingHandler.Confirm)
	bookings.POST("/:id/reschedule", bookingHandler.Reschedule)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
