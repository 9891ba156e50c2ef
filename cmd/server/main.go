// Package main runs the tech society HTTP server: events, registrations,
// QR check-in, XP, the live check-in feed and the in-process XP retry worker.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/config"
	"github.com/techsoc/backend/internal/auth"
	"github.com/techsoc/backend/internal/checkin"
	"github.com/techsoc/backend/internal/events"
	"github.com/techsoc/backend/internal/middleware"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/internal/realtime"
	"github.com/techsoc/backend/internal/registrations"
	"github.com/techsoc/backend/internal/reports"
	"github.com/techsoc/backend/internal/roles"
	"github.com/techsoc/backend/internal/users"
	"github.com/techsoc/backend/internal/worker"
	"github.com/techsoc/backend/internal/xp"
	"github.com/techsoc/backend/pkg/database"
	"github.com/techsoc/backend/pkg/logger"
	"github.com/techsoc/backend/pkg/queue"
	"github.com/techsoc/backend/pkg/redis"
	"github.com/techsoc/backend/pkg/response"
	"github.com/techsoc/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), zl)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, zl)
	if err != nil {
		zl.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Exports are optional; without a region the export endpoint answers 503.
	var exportUploader reports.Uploader
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, zl)
		if err != nil {
			zl.Warn("s3 disabled", zap.Error(err))
		} else {
			exportUploader = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	resolver := roles.NewResolver(cfg.Roles.SuperAdminEmail, cfg.Roles.ClubSuffix)

	pubsub := realtime.NewRedisPubSub(rdb.Client, zl)
	hub := realtime.NewHub(zl, pubsub, pubsub)
	defer hub.Close()

	jobQueue := queue.NewQueue(rdb.Client, cfg.Worker.MaxRetries, zl)

	// Users
	userRepo := users.NewRepository(pool)
	userHandler := users.NewHandler(userRepo, zl)
	ensureIdentity := users.EnsureIdentity(userRepo, zl)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, zl)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationHandler := registrations.NewHandler(registrationRepo, eventRepo, zl)

	// XP
	ledger := xp.NewLedger(pool)
	leaderboard := xp.NewLeaderboardCache(ledger, rdb.Client, cfg.Leaderboard.CacheTTL, zl)
	xpService := xp.NewService(ledger, leaderboard)
	xpHandler := xp.NewHandler(xpService, zl)

	// Check-in
	checkinService := checkin.NewService(registrationRepo, eventRepo, xpService, jobQueue, hub, zl)
	checkinHandler := checkin.NewHandler(checkinService, zl)

	// Reports
	reportRepo := reports.NewRepository(pool)
	reportHandler := reports.NewHandler(reportRepo, eventRepo, exportUploader, zl)

	wsAuth := func(token string) (uuid.UUID, models.Role, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, resolver.Resolve(claims.Email), nil
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	origins := middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)
	router.Use(middleware.CORS(origins))
	router.Use(middleware.Logger(zl))

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
		if err := pool.Ping(hctx); err != nil {
			status["status"], status["database"] = "degraded", "down"
		}
		if !rdb.Healthy(hctx) {
			status["status"], status["redis"] = "degraded", "down"
		}
		if n, err := jobQueue.Len(hctx); err == nil {
			status["xp_retry_backlog"] = n
		}
		response.OK(c, status)
	})

	staff := middleware.RequireStaff()
	superAdmin := middleware.RequireRole(models.RoleSuperAdmin)

	api := router.Group("")
	api.Use(middleware.JWT(jwtService, resolver))
	{
		api.GET("/me", userHandler.Me)
		api.GET("/me/registrations", registrationHandler.ListMine)
		api.GET("/me/xp", xpHandler.MyHistory)
		api.GET("/leaderboard", xpHandler.Leaderboard)

		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.GetByID)
		api.POST("/events", staff, ensureIdentity, eventHandler.Create)
		api.PATCH("/events/:id/status", staff, eventHandler.UpdateStatus)
		api.POST("/events/:id/register", ensureIdentity, registrationHandler.Register)
		api.DELETE("/events/:id/registrations", superAdmin, registrationHandler.DeleteByEvent)
		api.GET("/events/:id/analytics", staff, reportHandler.Summary)
		api.POST("/events/:id/attendance/export", staff, reportHandler.Export)

		api.GET("/registrations/:id/qr", registrationHandler.QRCode)
		api.PATCH("/registrations/:id/payment", staff, registrationHandler.UpdatePayment)

		api.POST("/checkin/scan", staff, checkinHandler.Scan)

		api.POST("/admin/xp/reconcile", superAdmin, xpHandler.Reconcile)
	}

	// WebSocket (token in query; browsers cannot set headers on upgrade)
	router.GET("/ws", realtime.ServeWs(hub, zl, wsAuth, origins.CheckOrigin))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Worker.RunInProcess {
		processor := worker.NewXPAwardProcessor(jobQueue, eventRepo, xpService, cfg.Worker.RetryBackoff, cfg.Worker.DequeueWait, zl)
		go func() {
			defer close(workerDone)
			processor.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		zl.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		zl.Warn("xp retry worker did not stop in time")
	}
	zl.Info("server stopped")
}
