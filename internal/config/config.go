// Package config defines the configuration tree of the mfagate service.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application's configuration.
type Config struct {
	Environment string            `mapstructure:"environment" validate:"oneof=development staging production"`
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	PrivacyIDEA PrivacyIDEAConfig `mapstructure:"privacyidea"`
	Vault       VaultConfig       `mapstructure:"vault"`
	TOTP        TOTPConfig        `mapstructure:"totp"`
	Poll        PollConfig        `mapstructure:"poll"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	GRPCPort       int           `mapstructure:"grpc_port" validate:"min=0,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// StoreConfig selects the backend that persists second-factor attributes.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis postgres sqlite"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Address        string        `mapstructure:"address"`
	Addrs          []string      `mapstructure:"addrs"`
	SentinelMaster string        `mapstructure:"sentinel_master"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SkipVerify bool   `mapstructure:"skip_verify"`
	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

// PrivacyIDEAConfig configures the remote push-capable verification service.
// An empty Host disables every remote branch. A Host without ServiceAccount still validates
// codes and triggers push, but token lookup and rollout are skipped.
type PrivacyIDEAConfig struct {
	Host            string `mapstructure:"host" validate:"omitempty,url"`
	ServiceAccount  string `mapstructure:"service_account"`
	ServicePassword string `mapstructure:"service_password"`
	// ServicePasswordVaultPath names a KV v2 secret holding the password under key "password".
	ServicePasswordVaultPath string        `mapstructure:"service_password_vault_path"`
	ServiceRealm             string        `mapstructure:"service_realm"`
	TLSVerify                bool          `mapstructure:"tls_verify"`
	Timeout                  time.Duration `mapstructure:"timeout"`
	BreakerMaxFailures       uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout       time.Duration `mapstructure:"breaker_open_timeout"`
}

// Enabled reports whether a remote service is configured.
func (c PrivacyIDEAConfig) Enabled() bool {
	return c.Host != ""
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type TOTPConfig struct {
	Issuer    string        `mapstructure:"issuer" validate:"required"`
	Digits    int           `mapstructure:"digits" validate:"oneof=6 8"`
	Period    time.Duration `mapstructure:"period" validate:"required"`
	Skew      uint          `mapstructure:"skew" validate:"max=5"`
	KeyLength int           `mapstructure:"key_length" validate:"min=10,max=64"`
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"required"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
}

// RateLimitConfig bounds submitted codes per user. CodeAttempts of 0 disables the limit.
type RateLimitConfig struct {
	CodeAttempts int           `mapstructure:"code_attempts" validate:"min=0"`
	Window       time.Duration `mapstructure:"window"`
}

type AuditConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" validate:"required_with=KafkaBrokers"`
	SigningKey   string   `mapstructure:"signing_key"`
	// PersistToDatabase additionally writes events to the audit table of the SQL store.
	PersistToDatabase bool `mapstructure:"persist_to_database"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint" validate:"required_if=Enabled true"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRate     float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

var validate = validator.New()

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store.Backend == "redis" && c.Redis.Address == "" && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("invalid configuration: redis store selected without an address")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

//Personal.AI order the ending
