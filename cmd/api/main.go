package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"shortlet/internal/config"
	"shortlet/internal/database"
	"shortlet/internal/mail"
	"shortlet/internal/middleware"
	"shortlet/internal/modules/auth"
	"shortlet/internal/modules/listing"
	"shortlet/internal/modules/payment"
	"shortlet/internal/modules/reservation"
	"shortlet/internal/modules/sweeper"
	jwtsvc "shortlet/internal/pkg/jwt"
	"shortlet/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.AppEnv)
	slog.SetDefault(log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(db); err != nil {
		log.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	var mailer mail.EmailSender
	if cfg.PostmarkServerToken != "" && cfg.PostmarkAccountToken != "" {
		mailer, err = mail.NewPostmarkSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.SenderEmail)
		if err != nil {
			log.Error("mailer init failed", "error", err)
			os.Exit(1)
		}
	} else {
		mailer = mail.NewDevSender(log)
	}

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)

	authService := auth.NewService(userRepo, j)
	authHandler := auth.NewHandler(authService)

	reservationService := reservation.NewService(
		reservationRepo, propertyRepo, userRepo, gateway, mailer, log,
		cfg.HoldTTL, cfg.Currency,
	)
	reservationHandler := reservation.NewHandler(reservationService)

	listingService := listing.NewService(propertyRepo)
	listingHandler := listing.NewHandler(listingService, reservationService)

	paymentService := payment.NewService(reservationService, propertyRepo, userRepo, mailer, log)
	paymentHandler := payment.NewHandler(paymentService, cfg.StripeWebhookSecret, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.New(reservationService, log, cfg.HoldSweepInterval, cfg.CompletionSweepInterval).Start(ctx)

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterRoutes(v1)
		listingHandler.RegisterPublicRoutes(v1)
		paymentHandler.RegisterRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.Auth(j))
		{
			listingHandler.RegisterProtectedRoutes(protected)
			reservationHandler.RegisterRoutes(protected)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				reservationHandler.RegisterAdminRoutes(admin)
			}
		}
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

func newLogger(appEnv string) *slog.Logger {
	if appEnv == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
