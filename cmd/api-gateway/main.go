package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/qr-attendance-api/api/swagger"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/cache"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
	"github.com/noah-isme/qr-attendance-api/pkg/database"
	"github.com/noah-isme/qr-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/requestid"
)

// @title QR Attendance API
// @version 1.0.0
// @description Classroom attendance tracking via short-lived QR scan tokens
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

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unreachable, dashboard cache disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	sessionRepo := repository.NewClassSessionRepository(db)
	tokenRepo := repository.NewQRTokenRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:               cfg.JWT.Secret,
		Expiry:               cfg.JWT.Expiration,
		Issuer:               cfg.JWT.Issuer,
		DefaultAdminUsername: cfg.Admin.Username,
		DefaultAdminPassword: cfg.Admin.Password,
		DefaultAdminFullName: cfg.Admin.FullName,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, teacherRepo, validate, logr)
	qrSvc := service.NewQRService(tokenRepo, sessionRepo, studentRepo, attendanceRepo, logr, service.QRConfig{
		TokenTTL:    cfg.QR.TokenTTL,
		BaseURL:     cfg.QR.BaseURL,
		ImageSize:   cfg.QR.ImageSize,
		EmbedRoster: cfg.QR.EmbedRoster,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, logr)
	dashboardSvc := service.NewDashboardService(attendanceRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)

	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := authSvc.EnsureDefaultAdmin(bootCtx); err != nil {
		return err
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, attendanceSvc)
	qrHandler := handler.NewQRHandler(qrSvc, metricsSvc)
	scanHandler := handler.NewScanHandler(qrSvc, metricsSvc)
	exportHandler := handler.NewExportHandler(attendanceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, teacherSvc, sessionSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	scanLimiter := middleware.NewScanLimiter(cfg.Scan.Burst, cfg.Scan.RatePerMinute)
	scan := r.Group("/scan", scanLimiter.Handler())
	scan.GET("", scanHandler.Show)
	scan.POST("", scanHandler.Submit)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/students", studentHandler.List)
	admin.POST("/students", studentHandler.Create)
	admin.GET("/students/:id", studentHandler.Get)
	admin.DELETE("/students/:id", studentHandler.Delete)
	admin.GET("/teachers", teacherHandler.List)
	admin.POST("/teachers", teacherHandler.Create)
	admin.GET("/teachers/:id", teacherHandler.Get)
	admin.GET("/export/csv", exportHandler.LedgerCSV)
	admin.GET("/export/pdf", exportHandler.LedgerPDF)
	admin.POST("/sessions", sessionHandler.Create)
	admin.POST("/sessions/:id/qr", qrHandler.Issue)
	admin.GET("/sessions/:id/qr/image", qrHandler.Image)

	staff := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	staff.GET("/sessions", sessionHandler.List)
	staff.GET("/sessions/:id", sessionHandler.Get)
	staff.GET("/sessions/:id/attendance", sessionHandler.Attendance)
	staff.GET("/sessions/:id/export/csv", exportHandler.CSV)
	staff.GET("/sessions/:id/export/pdf", exportHandler.PDF)

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard/summary", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.Summary)
		authed.GET("/dashboard/my-sessions", middleware.RequireRoles(models.RoleTeacher), dashboardHandler.MySessions)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
