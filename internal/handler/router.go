package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/middleware"
	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/service"
	"github.com/noah-isme/craft-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/craft-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/craft-api/pkg/middleware/requestid"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	EnableMetrics  bool
	RateLimit      middleware.RateLimitOptions
}

// RouterDeps groups what NewRouter wires together.
type RouterDeps struct {
	Config          RouterConfig
	Logger          *zap.Logger
	Metrics         *service.MetricsService
	Resolver        middleware.AccountResolver
	RateLimiter     middleware.RateLimitStore
	Auth            *AuthHandler
	Accounts        *AccountHandler
	ContactMessages *ContactMessageHandler
	Logs            *LogHandler
	Emails          *EmailHandler
	Health          *MetricsHandler
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)
	if deps.Config.EnableMetrics {
		r.GET("/metrics", deps.Health.Prometheus)
	}
	if deps.Config.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	opts := deps.Config.RateLimit
	if opts.Metrics == nil {
		opts.Metrics = deps.Metrics
	}
	if opts.Logger == nil {
		opts.Logger = deps.Logger
	}
	limit := middleware.RateLimit(deps.RateLimiter, opts)

	api := r.Group(deps.Config.APIPrefix)
	api.Use(middleware.JWT(deps.Resolver, deps.Logger))

	admin := middleware.Authorize(models.RoleAdmin)
	selfOrAdmin := middleware.AuthorizeSelfOr(models.RoleAdmin)

	accounts := api.Group("/accounts")
	{
		accounts.POST("/authenticate", limit, deps.Auth.Authenticate)
		accounts.POST("/refresh-token", limit, deps.Auth.RefreshToken)
		accounts.POST("/revoke-token", middleware.Authorize(), deps.Auth.RevokeToken)
		accounts.POST("/register", limit, deps.Auth.Register)
		accounts.POST("/verify-email", limit, deps.Auth.VerifyEmail)
		accounts.POST("/forgot-password", limit, deps.Auth.ForgotPassword)
		accounts.POST("/validate-reset-token", limit, deps.Auth.ValidateResetToken)
		accounts.POST("/reset-password", limit, deps.Auth.ResetPassword)

		accounts.GET("", admin, deps.Accounts.List)
		accounts.POST("", admin, deps.Accounts.Create)
		accounts.GET("/:id", selfOrAdmin, deps.Accounts.Get)
		accounts.PUT("/:id", selfOrAdmin, deps.Accounts.Update)
		accounts.DELETE("/:id", selfOrAdmin, deps.Accounts.Delete)
	}

	messages := api.Group("/contact-messages")
	{
		messages.POST("", limit, deps.ContactMessages.Create)
		messages.GET("", admin, deps.ContactMessages.List)
		messages.GET("/:id", admin, deps.ContactMessages.Get)
		messages.PUT("/:id", admin, deps.ContactMessages.Update)
		messages.DELETE("/:id", admin, deps.ContactMessages.Delete)
	}

	logs := api.Group("/logs", admin)
	{
		logs.GET("/activity", deps.Logs.ListActivity)
		logs.GET("/activity/export", deps.Logs.ExportActivity)
		logs.GET("/activity/:id", deps.Logs.GetActivity)
		logs.GET("/errors", deps.Logs.ListErrors)
		logs.GET("/errors/:id", deps.Logs.GetError)
	}

	emails := api.Group("/emails")
	{
		emails.POST("/delivery-event/:token", deps.Emails.DeliveryEvent)
		emails.GET("", admin, deps.Emails.List)
		emails.GET("/:id", admin, deps.Emails.Get)
	}

	return r
}
