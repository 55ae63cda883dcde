package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/flightapp/flight-auth/internal/api/http"
	"github.com/flightapp/flight-auth/internal/api/http/handlers"
	"github.com/flightapp/flight-auth/internal/auth"
	"github.com/flightapp/flight-auth/internal/config"
	"github.com/flightapp/flight-auth/internal/gateway"
	"github.com/flightapp/flight-auth/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("service", "gateway"))

	tokens, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		TTL:       cfg.Auth.TokenTTL,
		Algorithm: cfg.Auth.JWTAlgorithm,
		Issuer:    cfg.Auth.JWTIssuer,
	})
	if err != nil {
		logger.Fatal("invalid token configuration", zap.Error(err))
	}

	gw, err := gateway.New(gateway.Options{
		Routes:         gateway.DefaultRoutes(cfg.Gateway),
		Tokens:         tokens,
		IdentityHeader: cfg.Gateway.IdentityHeader,
		Timeout:        cfg.App.RequestTimeout(),
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("invalid route table", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               "gateway",
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler("gateway", cfg.App.Version, nil, metrics))
	gw.Register(app)

	addr := cfg.Gateway.Addr()
	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("gateway listening", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	_ = app.Shutdown()
}
