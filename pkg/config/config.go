package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers understood by the engine.
const (
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Store    StoreConfig
	Rebuild  RebuildConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
	// File enables a rotating file sink next to stdout when set.
	File      string
	MaxSizeMB int
}

// EngineConfig tunes the validation and aggregation engine.
type EngineConfig struct {
	CatalogPath string
	// AggregateCompleteThreshold is the fraction of children with data that must be
	// complete for a class/school/group/district to be complete.
	AggregateCompleteThreshold float64
	Workers                    int
	SourceFetchRate            float64
	SourceFetchBurst           int
	SchoolYearStartMonth       time.Month
}

// StoreConfig selects the persistent key-value store.
type StoreConfig struct {
	Driver    string
	KeyPrefix string
}

// RebuildConfig governs queued bulk rebuild jobs.
type RebuildConfig struct {
	Workers       int
	Retries       int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:     v.GetString("LOG_LEVEL"),
		Format:    v.GetString("LOG_FORMAT"),
		File:      v.GetString("LOG_FILE"),
		MaxSizeMB: v.GetInt("LOG_MAX_SIZE_MB"),
	}

	cfg.Engine = EngineConfig{
		CatalogPath:                v.GetString("CATALOG_PATH"),
		AggregateCompleteThreshold: v.GetFloat64("AGGREGATE_COMPLETE_THRESHOLD"),
		Workers:                    v.GetInt("ENGINE_WORKERS"),
		SourceFetchRate:            v.GetFloat64("SOURCE_FETCH_RATE"),
		SourceFetchBurst:           v.GetInt("SOURCE_FETCH_BURST"),
		SchoolYearStartMonth:       time.Month(v.GetInt("SCHOOL_YEAR_START_MONTH")),
	}

	cfg.Store = StoreConfig{
		Driver:    strings.ToLower(v.GetString("STORE_DRIVER")),
		KeyPrefix: v.GetString("STORE_KEY_PREFIX"),
	}

	cfg.Rebuild = RebuildConfig{
		Workers:       v.GetInt("REBUILD_WORKERS"),
		Retries:       v.GetInt("REBUILD_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("REBUILD_RETRY_DELAY"), 5*time.Second),
		MaxRetryDelay: parseDuration(v.GetString("REBUILD_MAX_RETRY_DELAY"), 2*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.AggregateCompleteThreshold <= 0 || c.Engine.AggregateCompleteThreshold > 1 {
		return fmt.Errorf("AGGREGATE_COMPLETE_THRESHOLD must be in (0,1], got %v", c.Engine.AggregateCompleteThreshold)
	}
	if c.Engine.SchoolYearStartMonth < time.January || c.Engine.SchoolYearStartMonth > time.December {
		return fmt.Errorf("SCHOOL_YEAR_START_MONTH must be 1-12, got %d", c.Engine.SchoolYearStartMonth)
	}
	switch c.Store.Driver {
	case StoreDriverRedis, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "fourset")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)

	v.SetDefault("CATALOG_PATH", "configs/catalog.yaml")
	v.SetDefault("AGGREGATE_COMPLETE_THRESHOLD", 0.9)
	v.SetDefault("ENGINE_WORKERS", 8)
	v.SetDefault("SOURCE_FETCH_RATE", 20)
	v.SetDefault("SOURCE_FETCH_BURST", 5)
	v.SetDefault("SCHOOL_YEAR_START_MONTH", 8)

	v.SetDefault("STORE_DRIVER", StoreDriverRedis)
	v.SetDefault("STORE_KEY_PREFIX", "fourset")

	v.SetDefault("REBUILD_WORKERS", 1)
	v.SetDefault("REBUILD_RETRIES", 3)
	v.SetDefault("REBUILD_RETRY_DELAY", "5s")
	v.SetDefault("REBUILD_MAX_RETRY_DELAY", "2m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
