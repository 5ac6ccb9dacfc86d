package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hosted-tools/mcp-gateway/pkg/config"
	"github.com/hosted-tools/mcp-gateway/pkg/integrations"
	mcpgateway "github.com/hosted-tools/mcp-gateway/pkg/mcp-gateway"
	"github.com/hosted-tools/mcp-gateway/pkg/ratelimit"
	"github.com/hosted-tools/mcp-gateway/pkg/registry"
	"github.com/hosted-tools/mcp-gateway/pkg/telemetry"
	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(cfg.Telemetry.Service, logger)
		if err != nil {
			log.Fatalf("failed to initialize tracing: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	auth, err := tokenauth.New(cfg.Auth.Secret)
	if err != nil {
		log.Fatalf("failed to build authenticator: %v", err)
	}

	reg := registry.New(registry.Options{Logger: logger})
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("integration cleanup failed", "error", err)
		}
	}()
	factories := integrations.Factories()
	for name, ic := range cfg.Integrations {
		factory, ok := factories[ic.Kind]
		if !ok {
			log.Fatalf("integration %s has unknown kind %q", name, ic.Kind)
		}
		err := reg.Register(registry.IntegrationConfig{
			Name:            name,
			BaseURL:         ic.BaseURL,
			CredentialParam: ic.CredentialParam,
			Options:         ic.Options,
		}, factory)
		if err != nil {
			log.Fatalf("failed to register integration %s: %v", name, err)
		}
		logger.Info("integration registered", "integration", name, "kind", ic.Kind)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		policy := ratelimit.Policy{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window()}
		overrides := make(map[string]ratelimit.Policy, len(cfg.RateLimit.Overrides))
		for name, p := range cfg.RateLimit.Overrides {
			overrides[name] = ratelimit.Policy{Limit: p.Limit, Window: p.Window()}
		}
		switch cfg.RateLimit.Backend {
		case "redis":
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.RateLimit.Redis.Addr,
				Password: cfg.RateLimit.Redis.Password,
				DB:       cfg.RateLimit.Redis.DB,
			})
			defer client.Close()
			limiter = ratelimit.NewRedisLimiter(client, policy, overrides, logger)
		default:
			mem := ratelimit.NewMemoryLimiter(policy, overrides)
			defer mem.Close()
			limiter = mem
		}
		logger.Info("rate limiting enabled",
			"backend", cfg.RateLimit.Backend,
			"limit", cfg.RateLimit.Limit,
			"window", cfg.RateLimit.Window())
	}

	gw, err := mcpgateway.New(&mcpgateway.Options{
		Addr:           cfg.Server.Addr,
		Authenticator:  auth,
		Registry:       reg,
		Limiter:        limiter,
		Logger:         logger,
		RequestTimeout: cfg.Server.Timeout(),
		ShutdownGrace:  cfg.Server.ShutdownGrace(),
		EnableTracing:  cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatalf("failed to build gateway: %v", err)
	}

	logger.Info("gateway listening",
		"addr", cfg.Server.Addr,
		"integrations", len(cfg.Integrations))
	if err := gw.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("gateway stopped: %v", err)
	}
	logger.Info("gateway stopped")
}
