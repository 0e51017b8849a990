package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DBConfig points at the settlement dedup table. A postgres:// DSN selects
// PostgreSQL, anything else is treated as a SQLite file path.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LedgerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type WorkerConfig struct {
	Role        string        `mapstructure:"role"`
	Interval    time.Duration `mapstructure:"interval"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Config struct {
	Env         Env          `mapstructure:"env"`
	Server      ServerConfig `mapstructure:"server"`
	Database    DBConfig     `mapstructure:"database"`
	Ledger      LedgerConfig `mapstructure:"ledger"`
	Worker      WorkerConfig `mapstructure:"worker"`
	MetricsAddr string       `mapstructure:"metrics_addr"`
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/payflow/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("database.dsn", "settlements.db")
	v.SetDefault("ledger.base_url", "http://localhost:3000")
	v.SetDefault("ledger.request_timeout", "3s")
	v.SetDefault("worker.role", "")
	v.SetDefault("worker.interval", "5s")
	v.SetDefault("worker.call_timeout", "3s")
	v.SetDefault("metrics_addr", ":9090")

	if err := v.ReadInConfig(); err != nil {
		// an explicitly requested file must exist; the default lookup is optional
		var notFound viper.ConfigFileNotFoundError
		if os.Getenv("APP_CONFIG_FILE") != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("worker.interval must be positive, got %s", c.Worker.Interval)
	}
	if c.Worker.CallTimeout <= 0 {
		return fmt.Errorf("worker.call_timeout must be positive, got %s", c.Worker.CallTimeout)
	}
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("ledger.base_url is empty")
	}
	return nil
}

// ServerAddr is the listen address of the ledger HTTP API.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

var Module = fx.Options(
	fx.Provide(New),
)
