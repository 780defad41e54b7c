package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/turtacn/mfagate/internal/application/dto"
	appservice "github.com/turtacn/mfagate/internal/application/service"
	"github.com/turtacn/mfagate/internal/config"
	domainservice "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/internal/infrastructure/audit"
	"github.com/turtacn/mfagate/internal/infrastructure/monitoring"
	"github.com/turtacn/mfagate/internal/infrastructure/privacyidea"
	"github.com/turtacn/mfagate/internal/infrastructure/store"
	"github.com/turtacn/mfagate/internal/infrastructure/totp"
	"github.com/turtacn/mfagate/internal/infrastructure/vault"
	grpcserver "github.com/turtacn/mfagate/internal/interfaces/grpc"
	"github.com/turtacn/mfagate/internal/interfaces/http"
	"github.com/turtacn/mfagate/internal/interfaces/http/handlers"
	"github.com/turtacn/mfagate/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info", Format: "json"})
	if err != nil {
		log.Fatalf("Failed to create startup logger: %v", err)
	}

	// Load config
	loader := config.NewLoader(*configPath, startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	if setter, ok := appLogger.(monitoring.LevelSetter); ok {
		loader.WatchLogLevel(func(level string) {
			if err := setter.SetLevel(level); err != nil {
				appLogger.Warn(context.Background(), "Ignoring invalid log level", logger.String("level", level))
			}
		})
	}
	logger.SetGlobalLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error(context.Background(), "Server terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer shutdownWithTimeout(tracing.Shutdown)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// Initialize store
	backend, err := store.Open(ctx, cfg, appLogger, metrics)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer backend.Close()

	// Initialize remote verifier
	var password privacyidea.PasswordSource
	if cfg.PrivacyIDEA.ServicePasswordVaultPath != "" {
		password, err = vault.NewPasswordSource(&cfg.Vault, cfg.PrivacyIDEA.ServicePasswordVaultPath, appLogger, metrics)
		if err != nil {
			return fmt.Errorf("create vault password source: %w", err)
		}
	}
	remote := privacyidea.NewClient(cfg.PrivacyIDEA, password, appLogger, metrics)
	if !remote.Enabled() {
		appLogger.Info(ctx, "No remote verification service configured, using local codes only")
	}

	// Initialize audit sinks
	auditSink, closeAudit, err := buildAuditSink(cfg, backend, appLogger)
	if err != nil {
		return err
	}
	defer closeAudit()

	// Initialize application services
	validator := totp.NewValidator(cfg.TOTP)
	keys := appservice.NewKeyProvisioningService(backend.Store, remote, cfg.TOTP.KeyLength, appLogger, metrics)
	poller := appservice.NewTransactionPoller(remote, backend.Store, cfg.Poll.Interval, cfg.Poll.MaxAttempts, appLogger, metrics)
	verifier := appservice.NewVerificationService(
		backend.Store,
		remote,
		keys,
		poller,
		validator,
		backend.Usage,
		backend.Limiter,
		dto.NewChallengeFieldFactory(cfg.TOTP, validator),
		auditSink,
		appLogger,
		metrics,
	)

	// Health checks shared by HTTP and gRPC
	checks := map[string]handlers.Checker{}
	if backend.Ping != nil {
		checks["store"] = backend.Ping
	}
	if remote.Enabled() {
		checks["privacyidea"] = func(context.Context) error {
			if state := remote.BreakerState(); state == "open" {
				return fmt.Errorf("circuit breaker %s", state)
			}
			return nil
		}
	}

	router := http.NewRouter(cfg, appLogger, metrics, registry,
		handlers.NewHealthHandler(checks, appLogger),
		handlers.NewVerifyHandler(verifier),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- router.Start() }()

	var grpcHealth *grpcserver.HealthServer
	if cfg.Server.GRPCPort > 0 {
		grpcChecks := make(map[string]func(context.Context) error, len(checks))
		for name, check := range checks {
			grpcChecks[name] = check
		}
		grpcHealth = grpcserver.NewHealthServer(appLogger, grpcChecks, 10*time.Second)
		go func() {
			errCh <- grpcHealth.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
		}()
	}

	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	// In-flight verifications may be polling; give them the full write timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout+5*time.Second)
	defer cancel()
	if err := router.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	appLogger.Info(context.Background(), "Server stopped")
	return nil
}

func buildAuditSink(cfg *config.Config, backend *store.Backend, log logger.Logger) (domainservice.AuditSink, func(), error) {
	sinks := []domainservice.AuditSink{audit.NewLoggerSink(log)}
	closeFn := func() {}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		producer := audit.NewKafkaProducer(cfg.Audit, log)
		sinks = append(sinks, producer)
		closeFn = func() {
			if err := producer.Close(); err != nil {
				log.Error(context.Background(), "Failed to close audit producer", err)
			}
		}
	}

	if cfg.Audit.PersistToDatabase {
		if backend.DB == nil {
			log.Warn(context.Background(), "Audit persistence requires a SQL store, skipping",
				logger.String("backend", backend.Name))
		} else {
			gormSink := audit.NewGormSink(backend.DB)
			if err := gormSink.AutoMigrate(); err != nil {
				closeFn()
				return nil, nil, fmt.Errorf("migrate audit table: %w", err)
			}
			sinks = append(sinks, gormSink)
		}
	}

	return audit.NewMultiSink(sinks...), closeFn, nil
}

func shutdownWithTimeout(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = fn(ctx)
}

//Personal.AI order the ending
