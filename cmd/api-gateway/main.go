package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/clinic-agenda-api/api/swagger"
	"github.com/noah-isme/clinic-agenda-api/internal/handler"
	internalmiddleware "github.com/noah-isme/clinic-agenda-api/internal/middleware"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	"github.com/noah-isme/clinic-agenda-api/internal/repository"
	"github.com/noah-isme/clinic-agenda-api/internal/service"
	"github.com/noah-isme/clinic-agenda-api/pkg/cache"
	"github.com/noah-isme/clinic-agenda-api/pkg/config"
	"github.com/noah-isme/clinic-agenda-api/pkg/database"
	"github.com/noah-isme/clinic-agenda-api/pkg/export"
	"github.com/noah-isme/clinic-agenda-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-agenda-api/pkg/middleware/requestid"
)

// @title Clinic Agenda API
// @version 1.0.0
// @description Practitioner agenda with recurring appointments, per-occurrence exceptions and clinical notes.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Agenda.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, agenda cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	cacheRepo := repository.NewCacheRepository(redisClient, logr, cfg.Redis.Namespace)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Agenda.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	noteRepo := repository.NewClinicalNoteRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	expander := service.NewOccurrenceExpander(service.ExpanderConfig{
		Location: cfg.Agenda.Location,
		Horizon:  cfg.Agenda.Horizon,
	}, metrics, logr)
	patientSvc := service.NewPatientService(patientRepo, cacheSvc, validate, logr)
	appointmentSvc := service.NewAppointmentService(service.AppointmentServiceParams{
		Repo:      appointmentRepo,
		Patients:  patientRepo,
		Tx:        db,
		Expander:  expander,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
		Config:    service.AppointmentServiceConfig{CacheTTL: cfg.Agenda.CacheTTL},
	})
	noteSvc := service.NewClinicalNoteService(noteRepo, appointmentSvc, patientSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:   dashboardRepo,
		Cache:  cacheSvc,
		Logger: logr,
		Config: service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL, Location: cfg.Agenda.Location},
	})
	exportSvc := service.NewExportService(appointmentSvc, service.ExportConfig{}, logr,
		export.NewCSVExporter(export.WithBOM()), export.NewPDFExporter(), export.NewICSExporter("-//clinic-agenda-api//agenda//EN"))

	authHandler := handler.NewAuthHandler(authSvc)
	patientHandler := handler.NewPatientHandler(patientSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	noteHandler := handler.NewClinicalNoteHandler(noteSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc, cfg.Agenda.Location)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.Use(internalmiddleware.RequireRoles(models.RoleAdmin, models.RolePractitioner))
	secured.GET("/auth/me", authHandler.Me)

	secured.GET("/patients", patientHandler.List)
	secured.POST("/patients", patientHandler.Create)
	secured.GET("/patients/:id", patientHandler.Get)
	secured.PATCH("/patients/:id", patientHandler.Update)
	secured.DELETE("/patients/:id", patientHandler.Delete)
	secured.GET("/patients/:id/notes", noteHandler.ListByPatient)

	secured.GET("/occurrences", appointmentHandler.ListOccurrences)
	secured.POST("/appointments", appointmentHandler.Create)
	secured.GET("/appointments/:id", appointmentHandler.Get)
	secured.PATCH("/appointments/:id", appointmentHandler.Update)
	secured.DELETE("/appointments/:id", appointmentHandler.Delete)
	secured.POST("/appointments/:id/checkin", appointmentHandler.CheckIn)
	secured.POST("/appointments/:id/cancel", appointmentHandler.Cancel)
	secured.POST("/appointments/:id/no-show", appointmentHandler.NoShow)
	secured.POST("/appointments/:id/occurrences/move", appointmentHandler.MoveOccurrence)
	secured.POST("/appointments/:id/occurrences/status", appointmentHandler.OverrideOccurrenceStatus)
	secured.POST("/appointments/:id/notes", noteHandler.Create)

	secured.GET("/dashboard/sessions", dashboardHandler.Sessions)
	secured.GET("/occurrences/export", exportHandler.Agenda)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "timezone", cfg.Agenda.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
