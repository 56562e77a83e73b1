// Package main запускает HTTP-сервер витрины ShipFast.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/shipfast-storefront/internal/config"
	"github.com/mmeshcher/shipfast-storefront/internal/events"
	"github.com/mmeshcher/shipfast-storefront/internal/handler"
	"github.com/mmeshcher/shipfast-storefront/internal/licensing"
	"github.com/mmeshcher/shipfast-storefront/internal/middleware"
	"github.com/mmeshcher/shipfast-storefront/internal/payment"
	"github.com/mmeshcher/shipfast-storefront/internal/repository"
	"github.com/mmeshcher/shipfast-storefront/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory store with demo data")
		repo = repository.NewSeededMemoryRepository(time.Now())
	}

	var gateway payment.Gateway
	if cfg.StripeSecret != "" {
		gateway = payment.NewStripeGateway(cfg.StripeSecret, cfg.PaymentTimeout)
	} else {
		sugar.Warn("STRIPE_SECRET is empty, payments are mocked")
		gateway = payment.NewMockGateway()
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		publisher, err = events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			sugar.Fatalw("nats connection error", "error", err.Error())
		}
	}

	if cfg.DownloadSecret == "" {
		sugar.Warn("DOWNLOAD_SECRET is empty, download links will not survive a restart")
	}

	svc := service.NewService(repo, gateway, publisher, licensing.NewURLSigner(cfg.DownloadSecret), logger, service.Config{
		SupportEmail:       cfg.SupportEmail,
		ArtifactsDir:       cfg.ArtifactsDir,
		PaymentTimeout:     cfg.PaymentTimeout,
		ExpiryScanInterval: cfg.ExpiryScanInterval,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, handler.Options{
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPM: cfg.RateLimitRPM,
		TrustProxy:   cfg.TrustProxy,
	})

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Поиск истекающих лицензий
	g.Go(func() error {
		svc.StartExpiryNotifier(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
