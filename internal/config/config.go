package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	DB     DatabaseConfig
	Redis  RedisConfig
	App    AppConfig
	Hash   HashConfig
	Logger LoggerConfig
}

// DatabaseConfig holds configuration for the database
type DatabaseConfig struct {
	Driver          string        `mapstructure:"DB_DRIVER"`
	Host            string        `mapstructure:"DB_HOST"`
	Port            string        `mapstructure:"DB_PORT"`
	User            string        `mapstructure:"DB_USER"`
	Password        string        `mapstructure:"DB_PASSWORD"`
	Name            string        `mapstructure:"DB_NAME"`
	SSLMode         string        `mapstructure:"DB_SSLMODE"`
	SQLitePath      string        `mapstructure:"SQLITE_PATH"`
	MaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`
}

// RedisConfig holds configuration for the user cache
type RedisConfig struct {
	Enabled     bool          `mapstructure:"CACHE_ENABLED"`
	Host        string        `mapstructure:"REDIS_HOST"`
	Port        string        `mapstructure:"REDIS_PORT"`
	Password    string        `mapstructure:"REDIS_PASSWORD"`
	DB          int           `mapstructure:"REDIS_DB"`
	MaxRetries  int           `mapstructure:"REDIS_MAX_RETRIES"`
	PoolSize    int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConn int           `mapstructure:"REDIS_MIN_IDLE_CONN"`
	TTL         time.Duration `mapstructure:"CACHE_TTL"`
}

// AppConfig holds configuration for the application servers
type AppConfig struct {
	Environment     string        `mapstructure:"APP_ENV"`
	GRPCPort        string        `mapstructure:"GRPC_PORT"`
	HTTPPort        string        `mapstructure:"HTTP_PORT"`
	GinPort         string        `mapstructure:"GIN_PORT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
}

// HashConfig holds configuration for password hashing
type HashConfig struct {
	Algorithm   string `mapstructure:"HASH_ALGORITHM"`
	BcryptCost  int    `mapstructure:"HASH_BCRYPT_COST"`
	Concurrency int    `mapstructure:"HASH_CONCURRENCY"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string  `mapstructure:"LOG_LEVEL"`
	Format           string  `mapstructure:"LOG_FORMAT"`
	OutputPath       string  `mapstructure:"LOG_OUTPUT_PATH"`
	SlowQuerySeconds float64 `mapstructure:"LOG_SLOW_QUERY_SECONDS"`
	EnableSampling   bool    `mapstructure:"LOG_ENABLE_SAMPLING"`
	ServiceName      string  `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string  `mapstructure:"SERVICE_VERSION"`
}

// LoadConfig reads configuration from path/app.env and environment variables.
// Environment variables win over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv() // Read from environment variables

	// Set defaults first
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("app") // Look for app.env
	v.SetConfigType("env")

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if we have env vars
	}

	var config Config

	config.DB.Driver = v.GetString("DB_DRIVER")
	config.DB.Host = v.GetString("DB_HOST")
	config.DB.Port = v.GetString("DB_PORT")
	config.DB.User = v.GetString("DB_USER")
	config.DB.Password = v.GetString("DB_PASSWORD")
	config.DB.Name = v.GetString("DB_NAME")
	config.DB.SSLMode = v.GetString("DB_SSLMODE")
	config.DB.SQLitePath = v.GetString("SQLITE_PATH")
	config.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	config.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	config.DB.ConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")
	config.DB.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

	config.Redis.Enabled = v.GetBool("CACHE_ENABLED")
	config.Redis.Host = v.GetString("REDIS_HOST")
	config.Redis.Port = v.GetString("REDIS_PORT")
	config.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Redis.DB = v.GetInt("REDIS_DB")
	config.Redis.MaxRetries = v.GetInt("REDIS_MAX_RETRIES")
	config.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	config.Redis.MinIdleConn = v.GetInt("REDIS_MIN_IDLE_CONN")
	config.Redis.TTL = v.GetDuration("CACHE_TTL")

	config.App.Environment = v.GetString("APP_ENV")
	config.App.GRPCPort = v.GetString("GRPC_PORT")
	config.App.HTTPPort = v.GetString("HTTP_PORT")
	config.App.GinPort = v.GetString("GIN_PORT")
	config.App.ShutdownTimeout = time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second

	config.Hash.Algorithm = v.GetString("HASH_ALGORITHM")
	config.Hash.BcryptCost = v.GetInt("HASH_BCRYPT_COST")
	config.Hash.Concurrency = v.GetInt("HASH_CONCURRENCY")

	config.Logger.Level = v.GetString("LOG_LEVEL")
	config.Logger.Format = v.GetString("LOG_FORMAT")
	config.Logger.OutputPath = v.GetString("LOG_OUTPUT_PATH")
	config.Logger.SlowQuerySeconds = v.GetFloat64("LOG_SLOW_QUERY_SECONDS")
	config.Logger.EnableSampling = v.GetBool("LOG_ENABLE_SAMPLING")
	config.Logger.ServiceName = v.GetString("SERVICE_NAME")
	config.Logger.ServiceVersion = v.GetString("SERVICE_VERSION")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "account_service")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "account.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONN", 2)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GIN_PORT", "8081")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)

	v.SetDefault("HASH_ALGORITHM", "bcrypt")
	v.SetDefault("HASH_BCRYPT_COST", 10)
	v.SetDefault("HASH_CONCURRENCY", runtime.NumCPU())

	// Logger defaults
	env := v.GetString("APP_ENV")
	if env == "production" {
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LOG_FORMAT", "json")
		v.SetDefault("LOG_ENABLE_SAMPLING", true)
	} else {
		v.SetDefault("LOG_LEVEL", "debug")
		v.SetDefault("LOG_FORMAT", "console")
		v.SetDefault("LOG_ENABLE_SAMPLING", false)
	}
	v.SetDefault("LOG_OUTPUT_PATH", "stdout")
	v.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	v.SetDefault("SERVICE_NAME", "account-service")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
}

// Validate rejects settings that would fail later at start-up.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for postgres"))
		}
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}

	switch c.Hash.Algorithm {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("unsupported HASH_ALGORITHM %q", c.Hash.Algorithm))
	}
	if c.Hash.Concurrency < 1 {
		errs = append(errs, errors.New("HASH_CONCURRENCY must be at least 1"))
	}

	if c.Redis.Enabled && c.Redis.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive when the cache is enabled"))
	}

	ports := map[string]string{}
	for name, port := range map[string]string{
		"GRPC_PORT": c.App.GRPCPort,
		"HTTP_PORT": c.App.HTTPPort,
		"GIN_PORT":  c.App.GinPort,
	} {
		if port == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			continue
		}
		if other, ok := ports[port]; ok {
			errs = append(errs, fmt.Errorf("%s and %s share port %s", other, name, port))
		}
		ports[port] = name
	}

	if c.App.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT_SECONDS must be positive"))
	}

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL Data Source Name
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}
