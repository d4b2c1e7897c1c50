package v1

import (
	"time"

	"launchpad-backend/config"
	"launchpad-backend/internal/delivery/http/middleware"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	AuthUC       domain.AuthUsecase
	OnboardingUC domain.OnboardingUsecase
	BillingUC    domain.BillingUsecase
	WebhookUC    domain.WebhookUsecase
	AdminUC      domain.AdminUsecase
	ProjectUC    domain.ProjectUsecase
	ContactUC    domain.ContactUsecase
	Health       HealthChecker
	RateLimiter  *middleware.RateLimiter
	Config       *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validation.RegisterValidators(v)
	}

	r := gin.New()
	// Handlers pass *gin.Context as context.Context; let it carry request cancellation
	r.ContextWithFallback = true

	cfg := deps.Config
	r.Use(middleware.RequestID())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(middleware.CORSConfig{
		AllowedOrigins: []string{cfg.FrontendURL, cfg.AppBaseURL},
		AllowLocalhost: cfg.AppDebug,
	}))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}
	r.Use(limiter.Middleware(middleware.GlobalConfig(
		cfg.RateLimitGlobalThreshold,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
	)))
	r.Use(middleware.CSRFMiddleware(cfg.CookieSecure))

	authLimit := limiter.Middleware(middleware.AuthConfig())
	formLimit := limiter.Middleware(middleware.PublicFormConfig())

	v1 := r.Group("/v1")

	// Public routes
	NewHealthHandler(v1, deps.Health)
	NewContactHandler(v1, deps.ContactUC, formLimit)
	NewBillingHandler(v1, deps.BillingUC, formLimit)
	NewWebhookHandler(v1, deps.WebhookUC)

	// Swagger
	v1.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.AuthUC))
	{
		NewAuthHandler(v1, protected, deps.AuthUC, cfg.CookieSecure, authLimit)
		NewOnboardingHandler(protected, deps.OnboardingUC)
		NewProjectHandler(protected, deps.ProjectUC)
		NewAdminHandler(protected, deps.AdminUC)
	}

	return r
}
