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

	"launchpad-backend/config"
	_ "launchpad-backend/docs" // Important for Swagger
	"launchpad-backend/internal/delivery/http/middleware"
	v1 "launchpad-backend/internal/delivery/http/v1"
	"launchpad-backend/internal/domain"
	"launchpad-backend/internal/repository/cache"
	"launchpad-backend/internal/repository/postgres"
	"launchpad-backend/internal/usecase"
	"launchpad-backend/pkg/auth"
	"launchpad-backend/pkg/database"
	"launchpad-backend/pkg/email"
	"launchpad-backend/pkg/logger"
	"launchpad-backend/pkg/payment"
	"launchpad-backend/pkg/redis"
	"launchpad-backend/pkg/security"

	"go.uber.org/zap"
)

// @title           Launchpad Backend API
// @version         1.0
// @description     Onboarding, billing and project tracking for the design-as-a-service storefront.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Logger
	if err := logger.Init(cfg.LogPath, cfg.AppDebug); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	logger.Log.Info("Starting launchpad backend", zap.String("port", cfg.Port))

	// 3. Setup Database
	ctx := context.Background()
	dbPool, err := database.NewPostgresConnection(ctx, cfg.DBUrl)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	// 4. Setup Redis (optional); key/value state falls back to process memory
	var kv domain.KVStore
	var redisPinger usecase.Pinger
	if cfg.RedisURL != "" {
		if err := redis.Initialize(redis.Config{URL: cfg.RedisURL, Password: cfg.RedisPassword}); err != nil {
			logger.Log.Warn("Redis unavailable, using in-memory stores", zap.Error(err))
		}
	}
	if client := redis.Client(); client != nil {
		defer redis.Close()
		kv = cache.NewRedisStore(client, "launchpad:")
		redisPinger = usecase.PingFunc(redis.HealthCheck)
	} else {
		memory := cache.NewMemoryStore(time.Minute)
		defer memory.Close()
		kv = memory
	}

	// 5. Security event persistence
	security.DefaultLogger().SetPersistFunc(security.NewSecurityEventRepository(dbPool).PersistEvent)

	// 6. Setup Repositories
	userRepo := postgres.NewUserRepository(dbPool)
	sessionRepo := postgres.NewSessionRepository(dbPool)
	projectRepo := postgres.NewProjectRepository(dbPool)
	onboardingRepo := postgres.NewOnboardingRepository(dbPool)
	adminRepo := postgres.NewAdminRepository(dbPool)
	resetTokenRepo := postgres.NewVerificationTokenRepository(dbPool)

	// 7. Setup External Services
	emailService := email.NewEmailService(cfg.ResendAPIKey, cfg.EmailFrom, cfg.ContactEmailTo)
	if !emailService.IsConfigured() {
		logger.Log.Warn("Email service not fully configured - outbound mail will be skipped")
	}
	payments := payment.NewStripeProvider(cfg.StripeSecretKey)
	plans := domain.DefaultPlans(cfg.StripeProductRocket, cfg.StripeProductGalaxy)
	autoLoginSigner := auth.NewAutoLoginSigner(cfg.AutoLoginSecret)

	loginTracker := security.NewLoginTracker(redis.Client(), security.LoginTrackerConfig{
		MaxAttempts:   cfg.FailedLoginMaxAttempts,
		AttemptWindow: time.Duration(cfg.FailedLoginWindowMinutes) * time.Minute,
		BlockDuration: time.Duration(cfg.FailedLoginBlockMinutes) * time.Minute,
		UseIPTracking: true,
	})

	// 8. Setup UseCases
	authUC := usecase.NewAuthUsecase(usecase.AuthDeps{
		UserRepo:     userRepo,
		SessionRepo:  sessionRepo,
		LoginTracker: loginTracker,
		Sessions:     auth.NewSessionIssuer(cfg.JWTSecret, cfg.SessionTTL),
		AutoLogin:    autoLoginSigner,
		Tokens:       kv,
		IsAdminEmail: cfg.IsAdminEmail,
		ResetTokens:  resetTokenRepo,
		Mailer:       emailService,
		AppBaseURL:   cfg.AppBaseURL,
		ResetTTL:     cfg.PasswordResetTTL,
	})
	webhookUC := usecase.NewWebhookUsecase(usecase.WebhookDeps{
		Verifier:    payment.NewWebhookVerifier(cfg.StripeWebhookSecret),
		UserRepo:    userRepo,
		ProjectRepo: projectRepo,
		Plans:       plans,
		AutoLogin:   usecase.NewAutoLoginIssuer(autoLoginSigner, kv, cfg.AutoLoginTTL),
		Mailer:      emailService,
		AppBaseURL:  cfg.AppBaseURL,
	})
	adminUC := usecase.NewAdminUsecase(usecase.AdminDeps{
		AdminRepo:      adminRepo,
		UserRepo:       userRepo,
		ProjectRepo:    projectRepo,
		OnboardingRepo: onboardingRepo,
		Payments:       payments,
		Plans:          plans,
		Cache:          kv,
	})
	billingUC := usecase.NewBillingUsecase(payments, plans, cfg.AppBaseURL)
	onboardingUC := usecase.NewOnboardingUsecase(onboardingRepo, userRepo, projectRepo, cache.NewDraftStore(kv))
	projectUC := usecase.NewProjectUsecase(projectRepo)
	contactUC := usecase.NewContactUsecase(emailService)
	healthUC := usecase.NewHealthUsecase(dbPool, redisPinger)

	// 9. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		AuthUC:       authUC,
		OnboardingUC: onboardingUC,
		BillingUC:    billingUC,
		WebhookUC:    webhookUC,
		AdminUC:      adminUC,
		ProjectUC:    projectUC,
		ContactUC:    contactUC,
		Health:       healthUC,
		RateLimiter:  middleware.NewRateLimiter(redis.Client()),
		Config:       cfg,
	})

	// 10. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Listen failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exiting")
}
