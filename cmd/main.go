package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/msdeveloper2k/cashback-zone/internal/app"
	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/controllers"
	"github.com/msdeveloper2k/cashback-zone/internal/middleware"
	"github.com/msdeveloper2k/cashback-zone/internal/providers"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/routes"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	defer cfg.Close()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize cashback-zone:", err)
	}
	defer application.Close()

	// Repositories
	referralRepo := repositories.NewReferralRepository(application.DB)
	offerRepo := repositories.NewOfferRepository(application.DB)
	profileRepo := repositories.NewProfileRepository(application.DB)
	contactRepo := repositories.NewContactInfoRepository(application.DB)
	googleFormRepo := repositories.NewGoogleFormRepository(application.DB)
	rateLimitRepo := repositories.NewRateLimitRepository(application.DB)
	validationRepo := repositories.NewMobileValidationRepository(application.DB)
	usageRepo := repositories.NewAPIUsageRepository(application.DB)
	pendingRepo := repositories.NewPendingVerificationRepository(application.DB)
	apiLogRepo := repositories.NewAPILogRepository(application.DB)

	// Phone providers
	validators, err := providers.Build(cfg, providers.NewHTTPClient())
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to build phone validation providers")
	}

	// Services
	mailer := services.NewMailer(cfg)
	attributionService := services.NewAttributionService(referralRepo, cfg, nil)
	phoneService := services.NewPhoneVerificationService(
		services.NewProviderSlots(cfg, validators),
		validationRepo, usageRepo, pendingRepo, apiLogRepo, profileRepo, mailer, nil,
	)
	captchaService := services.NewCaptchaService(cfg.TokenSigningSecret, nil)
	rateLimiter := services.NewRateLimiterService(rateLimitRepo, cfg)
	offerService := services.NewOfferService(
		offerRepo, contactRepo, googleFormRepo, attributionService, phoneService, captchaService, rateLimiter, nil,
	)
	emailService := services.NewEmailVerificationService(cfg.TokenSigningSecret, cfg.AppUrl, profileRepo, mailer, nil)
	profileService := services.NewProfileService(profileRepo)
	dashboardService := services.NewDashboardService(referralRepo, apiLogRepo, attributionService, phoneService)
	maintenanceService := services.NewMaintenanceService(rateLimitRepo, apiLogRepo, cfg.APILogRetentionDays, nil)

	// Controllers
	healthController := controllers.NewHealthController(application.DB)
	postbackController := controllers.NewPostbackController(attributionService)
	offerController := controllers.NewOfferController(offerService, profileService)
	verificationController := controllers.NewVerificationController(phoneService, emailService, profileService)
	dashboardController := controllers.NewDashboardController(dashboardService, phoneService, profileService)

	// Router setup
	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware)

	// Public routes
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	router.Handle(routes.Metrics, promhttp.Handler()).Methods(http.MethodGet)
	postbackController.RegisterRoutes(router)
	router.HandleFunc(routes.VerifyEmailLink, verificationController.VerifyEmailLinkHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.EmailCodeRequest, verificationController.RequestEmailCodeHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.EmailCodeVerify, verificationController.VerifyEmailCodeHandler).Methods(http.MethodPost)

	// Offer browsing works for visitors and signed-in users alike
	browsing := router.NewRoute().Subrouter()
	browsing.Use(middleware.VisitorMiddleware(cfg.Env != "dev"))
	browsing.Use(middleware.OptionalAuthMiddleware(cfg.AuthJWTSecret))
	browsing.HandleFunc(routes.ReferralLanding, offerController.ReferralLandingHandler).Methods(http.MethodGet)
	browsing.HandleFunc(routes.OffersList, offerController.ListOffersHandler).Methods(http.MethodGet)
	browsing.HandleFunc(routes.OfferDetail, offerController.OfferDetailHandler).Methods(http.MethodGet)
	browsing.HandleFunc(routes.OfferGrab, offerController.PrepareGrabHandler).Methods(http.MethodGet)
	browsing.HandleFunc(routes.OfferGrab, offerController.GrabOfferHandler).Methods(http.MethodPost)
	browsing.HandleFunc(routes.OfferGoogleFormOK, offerController.ConfirmGoogleFormHandler).Methods(http.MethodPost)

	// Secured routes
	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.AuthJWTSecret))
	secured.HandleFunc(routes.Dashboard, dashboardController.DashboardHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.ProfileMobile, verificationController.SetMobileHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.ProfileMobileRetry, verificationController.RetryMobileHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.EmailLinkResend, verificationController.ResendEmailLinkHandler).Methods(http.MethodPost)

	// Staff only
	staff := secured.NewRoute().Subrouter()
	staff.Use(middleware.StaffOnly)
	staff.HandleFunc(routes.AdminProviderStatus, dashboardController.ProviderStatusHandler).Methods(http.MethodGet)
	staff.HandleFunc(routes.AdminProcessPending, dashboardController.ProcessPendingHandler).Methods(http.MethodPost)

	// Cron job setup
	c := cron.New(cron.WithLocation(time.UTC))

	_, err = c.AddFunc(cfg.PendingVerificationCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.PendingVerificationJobTimeout)
		defer cancel()
		utils.Logger.Info("Starting pending mobile verification cron job...")
		if _, err := phoneService.ProcessPendingVerifications(ctx); err != nil {
			utils.Logger.WithError(err).Error("Failed to process pending mobile verifications")
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule pending verification cron")
	}

	_, err = c.AddFunc(constants.RateLimitCleanupCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.MaintenanceJobTimeout)
		defer cancel()
		if err := maintenanceService.CleanupRateLimits(ctx); err != nil {
			utils.Logger.WithError(err).Error("Failed to clean up rate limit windows")
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule rate limit cleanup cron")
	}

	_, err = c.AddFunc(constants.APILogRetentionCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.MaintenanceJobTimeout)
		defer cancel()
		if err := maintenanceService.PruneAPILogs(ctx); err != nil {
			utils.Logger.WithError(err).Error("Failed to prune api logs")
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule api log retention cron")
	}

	c.Start()
	defer c.Stop()
	utils.Logger.Info("Scheduled verification and maintenance cron jobs")

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, constants.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("cashback-zone failed to start:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.WithError(err).Error("Graceful shutdown failed")
	}
	utils.Logger.Info("Server stopped")
}
