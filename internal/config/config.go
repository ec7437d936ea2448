package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultEnvFile = ".env"

	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	minSecretLen = 32
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the environment. Values from envFile are
// applied only for variables that are not already set; a missing file is
// not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var keys = []string{
	"logging.level",
	"http.addr",
	"http.request_timeout",
	"http.shutdown_timeout",
	"storage.type",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.db_name",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"sqlite.path",
	"auth.secret",
	"auth.token_ttl",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.type", StoragePostgres)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "bugsage")
	v.SetDefault("postgres.password", "bugsage")
	v.SetDefault("postgres.db_name", "bugsage")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 4)

	v.SetDefault("sqlite.path", "bugsage.db")

	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
}

// Validate ensures required fields are present. There is no default
// signing secret.
func (c Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required (set AUTH_SECRET)")
	}
	if len(c.Auth.Secret) < minSecretLen {
		return fmt.Errorf("auth.secret must be at least %d bytes", minSecretLen)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	switch c.Storage.Type {
	case StoragePostgres:
		if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.DBName == "" {
			return errors.New("postgres host, user and db_name are required")
		}
	case StorageSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	return nil
}
