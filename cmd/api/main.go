package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/craft-api/api/swagger"
	"github.com/noah-isme/craft-api/internal/handler"
	"github.com/noah-isme/craft-api/internal/middleware"
	"github.com/noah-isme/craft-api/internal/repository"
	"github.com/noah-isme/craft-api/internal/service"
	"github.com/noah-isme/craft-api/pkg/cache"
	"github.com/noah-isme/craft-api/pkg/config"
	"github.com/noah-isme/craft-api/pkg/database"
	"github.com/noah-isme/craft-api/pkg/export"
	"github.com/noah-isme/craft-api/pkg/jobs"
	"github.com/noah-isme/craft-api/pkg/logger"
	"github.com/noah-isme/craft-api/pkg/mailer"
)

// @title Craft API
// @version 1.0.0
// @description Accounts, refresh token rotation, contact messages and audit logs
// @BasePath /api/v1
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
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sender, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}
	defer sender.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	accountRepo := repository.NewAccountRepository(db)
	logRepo := repository.NewLogRepository(db)
	contactRepo := repository.NewContactMessageRepository(db)
	emailRepo := repository.NewEmailRepository(db)

	logs := service.NewLogService(logRepo, logr, export.NewCSVExporter(), export.NewPDFExporter())

	notifications := service.NewNotificationService(nil, sender, emailRepo, logs, metrics, logr, service.NotificationConfig{
		From:      cfg.Mail.From,
		FromName:  cfg.Mail.FromName,
		ClientURL: cfg.ClientURL,
	})
	mailQueue := jobs.NewQueue("email", notifications.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		OnFailure:  notifications.HandleFailure,
	})
	mailQueue.Start(ctx)
	defer mailQueue.Stop()
	notifications.SetQueue(mailQueue)

	tokens := service.NewTokenService(accountRepo, service.TokenConfig{
		Secret:          cfg.JWT.Secret,
		AccessTokenTTL:  cfg.JWT.Expiration,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
		ResetTokenTTL:   cfg.JWT.ResetTokenTTL,
		MaxAttempts:     cfg.JWT.MaxTokenAttempts,
	})
	auth := service.NewAuthService(service.AuthDependencies{
		Accounts:  accountRepo,
		Tokens:    tokens,
		Ledger:    service.NewTokenLedger(cfg.JWT.RefreshTokenTTL),
		Hasher:    service.NewBcryptHasher(0),
		Notifier:  notifications,
		Logs:      logs,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})
	accounts := service.NewAccountService(accountRepo, service.NewBcryptHasher(0), logs, validate, logr)
	contactMessages := service.NewContactMessageService(contactRepo, logs, validate, logr)
	emails := service.NewEmailService(emailRepo, logs, logr, cfg.Mail.WebhookToken)

	checks := map[string]handler.Pinger{"database": db}
	var limiter middleware.RateLimitStore
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		if cfg.RateLimit.Enabled {
			limiter = repository.NewRateLimitRepository(redisClient)
		}
	}

	router := handler.NewRouter(handler.RouterDeps{
		Config: handler.RouterConfig{
			APIPrefix:      cfg.APIPrefix,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			EnableDocs:     cfg.Env != config.EnvProduction,
			EnableMetrics:  cfg.Metrics.Enabled,
			RateLimit: middleware.RateLimitOptions{
				Requests: cfg.RateLimit.Requests,
				Window:   cfg.RateLimit.Window,
			},
		},
		Logger:      logr,
		Metrics:     metrics,
		Resolver:    auth,
		RateLimiter: limiter,
		Auth: handler.NewAuthHandler(auth, handler.CookieConfig{
			Name:   cfg.JWT.RefreshCookieName,
			Secure: cfg.JWT.RefreshCookieSecure,
		}, cfg.ClientURL),
		Accounts:        handler.NewAccountHandler(accounts),
		ContactMessages: handler.NewContactMessageHandler(contactMessages),
		Logs:            handler.NewLogHandler(logs),
		Emails:          handler.NewEmailHandler(emails),
		Health:          handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
