// Command storefront-api serves the storefront account and verification-code
// API.
//
// Configuration is read from an optional YAML file (-config) and SHOPAUTH_*
// environment variables; a .env file in the working directory is loaded first
// when present. Without database.url and redis.addr it runs against an
// in-memory store and an embedded miniredis, which is refused in production.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/httpapi"
	"github.com/MrEthical07/shopauth/mail"
	promexport "github.com/MrEthical07/shopauth/metrics/export/prometheus"
	"github.com/MrEthical07/shopauth/store/memory"
	"github.com/MrEthical07/shopauth/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("storefront-api stopped", zap.Error(err))
	}
	logger.Info("storefront-api stopped")
}

func newLogger(cfg *AppConfig) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, cfg *AppConfig, logger *zap.Logger) error {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := shopauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(mailer).
		WithAuditSink(newZapAuditSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		zap.String("signing", report.SigningAlgorithm),
		zap.Duration("token_ttl", report.TokenTTL),
		zap.String("password", report.PasswordAlgorithm),
		zap.Int("bcrypt_cost", report.BcryptCost),
		zap.Duration("otp_ttl", report.OTPTTL),
		zap.Duration("code_ttl", report.CodeTTL),
		zap.Bool("rate_limiting", report.RateLimitingActive),
		zap.Bool("ip_throttle", report.IPThrottleActive),
		zap.Bool("secure_cookie", report.SecureCookie),
		zap.Bool("audit", report.AuditEnabled),
	)

	sweeper, err := shopauth.NewPendingSweeper(engine, logger)
	if err != nil {
		return fmt.Errorf("pending sweeper: %w", err)
	}
	if err := sweeper.Start(); err != nil {
		return err
	}

	registry := promexport.NewRegistry(promexport.NewExporter(engine))
	api, err := httpapi.NewServer(httpapi.Options{
		Engine:             engine,
		Logger:             logger.Named("http"),
		Metrics:            promexport.Handler(registry),
		Ready:              readiness(engine),
		TrustProxy:         cfg.HTTP.TrustProxy,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		RateLimitBurst:     cfg.HTTP.RateLimitBurst,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.Error("sweeper shutdown", zap.Error(err))
	}
	return nil
}

// readiness fails when Redis or the credential store stops answering.
func readiness(engine *shopauth.Engine) func(context.Context) error {
	return func(ctx context.Context) error {
		status := engine.Health(ctx)
		switch {
		case !status.StoreAvailable:
			return errors.New("credential store unavailable")
		case !status.RedisAvailable:
			return errors.New("redis unavailable")
		}
		return nil
	}
}

func openStore(ctx context.Context, cfg *AppConfig, logger *zap.Logger) (shopauth.CredentialStore, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("database.url not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	store, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
	}
	return store, func() { _ = store.Close() }, nil
}

func openRedis(cfg *AppConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Redis.Addr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("redis.addr not set, using embedded miniredis", zap.String("addr", addr))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return client, func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

func newMailer(cfg *AppConfig, logger *zap.Logger) (shopauth.Mailer, error) {
	var transport shopauth.Mailer
	switch cfg.Mail.Transport {
	case "smtp":
		m, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:       cfg.Mail.SMTP.Host,
			Port:       cfg.Mail.SMTP.Port,
			Username:   cfg.Mail.SMTP.Username,
			Password:   cfg.Mail.SMTP.Password,
			From:       cfg.Mail.From,
			RequireTLS: cfg.Mail.SMTP.RequireTLS,
			Timeout:    cfg.Mail.SMTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		transport = m
	case "brevo":
		m, err := mail.NewBrevoMailer(mail.BrevoConfig{
			APIKey:    cfg.Mail.Brevo.APIKey,
			FromEmail: cfg.Mail.From,
			FromName:  cfg.Mail.FromName,
			Endpoint:  cfg.Mail.Brevo.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		transport = m
	default:
		return mail.NewLogMailer(logger), nil
	}

	return mail.NewBreakerMailer(transport, mail.BreakerConfig{
		Name:        "mail-" + cfg.Mail.Transport,
		MaxFailures: cfg.Mail.Breaker.MaxFailures,
		Interval:    cfg.Mail.Breaker.Interval,
		Timeout:     cfg.Mail.Breaker.Timeout,
	}, logger), nil
}
