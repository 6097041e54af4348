package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tableside/internal/models"

	"github.com/spf13/viper"
)

// Config represents the application configuration shared by the server and
// the terminal client.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig is how the client reaches the backend
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the backend listener settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the gorm dialect and connection
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	SeedFile string `mapstructure:"seed_file"`
	LogMode  bool   `mapstructure:"log_mode"`
}

// RedisConfig enables the redis idempotency store when Addr is set
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// AuthConfig enables bearer token checks on the backend when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// PaymentsConfig lists the payment methods the backend accepts
type PaymentsConfig struct {
	AcceptedMethods []string `mapstructure:"accepted_methods"`
}

// CheckoutConfig tunes the client's approval flow
type CheckoutConfig struct {
	AtomicApproval bool   `mapstructure:"atomic_approval"`
	ReceiptsDir    string `mapstructure:"receipts_dir"`
	UserID         uint   `mapstructure:"user_id"`
}

// CatalogConfig controls how long cached catalog data is trusted
type CatalogConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "tableside.db")
	v.SetDefault("database.seed_file", "")
	v.SetDefault("database.log_mode", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("payments.accepted_methods", []string{"cash", "card", "mobile", "bank_transfer"})

	v.SetDefault("checkout.atomic_approval", true)
	v.SetDefault("checkout.receipts_dir", "receipts")
	v.SetDefault("checkout.user_id", 1)

	v.SetDefault("catalog.max_age", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Load reads configuration from a YAML file, then applies TABLESIDE_*
// environment overrides. A missing file is not an error; built-in defaults
// are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TABLESIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", "TABLESIDE_API_URL", "TABLESIDE_API_BASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind api url: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if _, err := c.Payments.Methods(); err != nil {
		return err
	}
	return nil
}

// Methods parses the accepted payment methods.
func (p PaymentsConfig) Methods() ([]models.PaymentMethod, error) {
	if len(p.AcceptedMethods) == 0 {
		return nil, fmt.Errorf("payments.accepted_methods must not be empty")
	}
	methods := make([]models.PaymentMethod, 0, len(p.AcceptedMethods))
	for _, raw := range p.AcceptedMethods {
		m, err := models.ParsePaymentMethod(raw)
		if err != nil {
			return nil, fmt.Errorf("payments.accepted_methods: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, nil
}
