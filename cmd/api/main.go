// Package main is the entrypoint for the Keyport web server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/cache"
	"github.com/keyport/keyport/internal/config"
	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/handler"
	"github.com/keyport/keyport/internal/metrics"
	"github.com/keyport/keyport/internal/middleware"
	"github.com/keyport/keyport/internal/passkey"
	"github.com/keyport/keyport/internal/repository"
	"github.com/keyport/keyport/internal/rpc"
	"github.com/keyport/keyport/internal/server"
	"github.com/keyport/keyport/internal/service"
	"github.com/keyport/keyport/internal/stamp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize database
	repo, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	applied, err := repo.Migrate(ctx)
	if err != nil {
		repo.Close()
		return err
	}
	logger.Info("connected to database", slog.Int("migrations", len(applied)))

	// Initialize cache
	cacheClient, err := connectCache(ctx, cfg, logger)
	if err != nil {
		repo.Close()
		return err
	}
	logger.Info("connected to Redis")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Custody API
	stamper, err := stamp.NewAPIKeyStamper(cfg.CustodyAPIPublicKey, cfg.CustodyAPIPrivateKey)
	if err != nil {
		return err
	}
	custodyClient, err := custody.New(cfg.CustodyAPIHost, stamper,
		custody.WithHTTPClient(custody.NewHTTPClient(cfg.CustodyTimeout)),
		custody.WithLogger(logger),
		custody.WithMetrics(recorder),
	)
	if err != nil {
		return err
	}

	// Passkeys
	ceremonies, err := passkey.New(passkey.Config{
		RPDisplayName: cfg.WebAuthnRPDisplayName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     cfg.WebAuthnRPOrigins,
		CeremonyTTL:   cfg.WebAuthnCeremonyTTL,
	}, cacheClient, passkey.WithCredentialFinder(repo))
	if err != nil {
		return err
	}

	// Sessions
	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: cfg.SecureCookies(),
	})
	if err != nil {
		return err
	}
	callbacks, err := auth.NewCallbackStore(cfg.SessionSecret, cfg.SecureCookies())
	if err != nil {
		return err
	}

	// Services
	authService := service.NewAuthService(custodyClient, repo, cacheClient, service.AuthConfig{
		OrganizationID:       cfg.CustodyOrganizationID,
		DefaultUserPublicKey: cfg.CustodyDefaultUserPublicKey,
	}, logger, recorder)
	credentials := service.NewCredentialsProvider(authService, logger)

	upstream, err := rpc.NewUpstream(cfg.RPCURL, logger)
	if err != nil {
		return err
	}
	provider := rpc.NewProvider(authService, upstream, logger, recorder)

	// Handlers
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()
	securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	router := server.NewRouter(server.Routes{
		Logger: logger,
		Health: handler.NewHealthHandler(
			handler.Check{Name: "database", Checker: repo},
			handler.Check{Name: "redis", Checker: cacheClient},
		),
		Metrics: handler.MetricsHandler(registry),
		Pages:   handler.NewPageHandler(cfg.AppName, sessions, logger),
		Auth: handler.NewAuthHandler(handler.AuthHandlerConfig{
			Ceremonies:     ceremonies,
			Whoami:         custodyClient,
			Provider:       credentials,
			Sessions:       sessions,
			Callbacks:      callbacks,
			OrganizationID: cfg.CustodyOrganizationID,
			Logger:         logger,
		}),
		Activity:   handler.NewActivityHandler(logger),
		RPC:        handler.NewRPCHandler(provider),
		Sessions:   sessions,
		Callbacks:  callbacks,
		TrustProxy: cfg.TrustProxyHeaders,
		Security:   securityCfg,
		CORS:       corsCfg,
		RateLimit: middleware.RateLimitConfig{
			Logger:       logger,
			Cache:        cacheClient,
			AuthEnabled:  cfg.RateLimitAuthEnabled,
			AuthRPS:      cfg.RateLimitAuthRPS,
			AuthBurst:    cfg.RateLimitAuthBurst,
			RPCPerMinute: cfg.RateLimitRPCPerMinute,
			RPCBurst:     cfg.RateLimitRPCBurst,
		},
	})

	// Create and run server
	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"rp_id", cfg.WebAuthnRPID,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With(slog.String("app", cfg.AppName))
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// connectDatabase opens the repository. Errors never carry the DSN password.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.Repository, error) {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		msg := sanitizeError(err, cfg.DatabaseURL)
		logger.Error(
			"failed to connect to database",
			slog.String("error", msg),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, errors.New(msg)
	}
	return repo, nil
}

// connectCache opens the Redis cache. Errors never carry the URL password.
func connectCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Cache, error) {
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithNamespace(cfg.RedisNamespace))
	if err != nil {
		msg := sanitizeError(err, cfg.RedisURL)
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", msg),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return nil, errors.New(msg)
	}
	return cacheClient, nil
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
