package cli

import (
	"context"

	"github.com/turtacn/mfagate/internal/application/service"
	"github.com/turtacn/mfagate/internal/config"
	domainservice "github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/internal/infrastructure/audit"
	"github.com/turtacn/mfagate/internal/infrastructure/monitoring"
	"github.com/turtacn/mfagate/internal/infrastructure/store"
)

// OpenAdminService connects to the configured store and audit sinks.
func OpenAdminService(ctx context.Context, configPath string) (service.AdminService, func() error, error) {
	log, err := monitoring.NewZapLogger(&config.LogConfig{Level: "warn", Format: "console"})
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig(configPath, log)
	if err != nil {
		return nil, nil, err
	}

	backend, err := store.Open(ctx, cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}

	sinks := []domainservice.AuditSink{audit.NewLoggerSink(log)}
	closers := []func() error{backend.Close}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		producer := audit.NewKafkaProducer(cfg.Audit, log)
		sinks = append(sinks, producer)
		closers = append([]func() error{producer.Close}, closers...)
	}
	if cfg.Audit.PersistToDatabase && backend.DB != nil {
		gormSink := audit.NewGormSink(backend.DB)
		if err := gormSink.AutoMigrate(); err != nil {
			_ = backend.Close()
			return nil, nil, err
		}
		sinks = append(sinks, gormSink)
	}

	closeFn := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return service.NewAdminService(backend.Store, backend.Limiter, audit.NewMultiSink(sinks...), log), closeFn, nil
}

//Personal.AI order the ending
