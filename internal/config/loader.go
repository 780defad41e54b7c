package config

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. MFAGATE_PRIVACYIDEA_HOST.
const EnvPrefix = "MFAGATE"

// Loader reads configuration and keeps the viper instance around for hot reload.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
}

// NewLoader creates a loader reading configPath when set, or config.yaml from the usual locations.
func NewLoader(configPath string, log logger.Logger) *Loader {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mfagate/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log}
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(configPath string, log logger.Logger) (*Config, error) {
	return NewLoader(configPath, log).Load()
}

// Load reads, unmarshals and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.ErrInvalidConfig)
		}
		l.log.Info(context.Background(), "No config file found, using defaults and environment")
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig)
	}

	return &cfg, nil
}

// WatchLogLevel invokes onChange with the new log level whenever the config file changes.
// Other keys require a restart.
func (l *Loader) WatchLogLevel(onChange func(level string)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := l.v.GetString("log.level")
		l.log.Info(context.Background(), "Config file changed",
			logger.String("file", e.Name),
			logger.String("log_level", level),
		)
		onChange(level)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.read_timeout", 10*time.Second)
	// The write timeout must outlast a full poll budget.
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("store.backend", "memory")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.sqlite_path", "mfagate.db")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 10*time.Minute)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("privacyidea.tls_verify", true)
	v.SetDefault("privacyidea.timeout", 10*time.Second)
	v.SetDefault("privacyidea.breaker_max_failures", 5)
	v.SetDefault("privacyidea.breaker_open_timeout", 30*time.Second)

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("totp.issuer", constants.DefaultTOTPIssuer)
	v.SetDefault("totp.digits", constants.DefaultTOTPDigits)
	v.SetDefault("totp.period", constants.DefaultTOTPPeriod)
	v.SetDefault("totp.skew", constants.DefaultTOTPSkew)
	v.SetDefault("totp.key_length", constants.DefaultKeyLength)

	v.SetDefault("poll.interval", constants.DefaultPollInterval)
	v.SetDefault("poll.max_attempts", constants.DefaultPollMaxAttempts)

	v.SetDefault("rate_limit.code_attempts", 10)
	v.SetDefault("rate_limit.window", 5*time.Minute)

	v.SetDefault("audit.kafka_topic", "mfagate-audit")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.service_name", "mfagate")
	v.SetDefault("tracing.sample_rate", 1.0)
}

//Personal.AI order the ending
