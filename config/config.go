package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"slotbook/models"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Booking store backend: memory, firestore, mongo or postgres.
	StoreBackend       string `mapstructure:"STORE_BACKEND"`
	PostgresDSN        string `mapstructure:"POSTGRES_DSN"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	MongoDatabase      string `mapstructure:"MONGO_DATABASE"`
	BookingsCollection string `mapstructure:"BOOKINGS_COLLECTION"`

	// Firebase configuration.
	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`

	// Fetch path: cache backend (memory, redis or none), cache expiry and read deadline.
	FetchCacheBackend string        `mapstructure:"FETCH_CACHE_BACKEND"`
	FetchCacheTTL     time.Duration `mapstructure:"FETCH_CACHE_TTL"`
	FetchTimeout      time.Duration `mapstructure:"FETCH_TIMEOUT"`

	ExclusiveSlots bool     `mapstructure:"EXCLUSIVE_SLOTS"`
	AdminJWTSecret string   `mapstructure:"ADMIN_JWT_SECRET"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`

	// Calendar.
	TimeZone string             `mapstructure:"TIME_ZONE"`
	Days     []models.DayConfig `mapstructure:"DAYS"`
}

var AppConfig Config

// DefaultDays is the calendar shown when no DAYS are configured.
var DefaultDays = []models.DayConfig{
	{Label: "2025年7月16日", Date: "2025-07-16", Start: "10:00", End: "16:00"},
	{Label: "2025年7月17日", Date: "2025-07-17", Start: "09:30", End: "16:00"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("POSTGRES_DSN", "postgres://localhost:5432/slotbook?sslmode=disable")
	v.SetDefault("MONGO_DATABASE", "slotbook")
	v.SetDefault("BOOKINGS_COLLECTION", "bookings")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("FETCH_CACHE_BACKEND", "memory")
	v.SetDefault("FETCH_CACHE_TTL", "30s")
	v.SetDefault("FETCH_TIMEOUT", "10s")
	v.SetDefault("EXCLUSIVE_SLOTS", false)
	v.SetDefault("ADMIN_JWT_SECRET", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("TIME_ZONE", "Asia/Tokyo")
}

// Load reads configuration from v into a Config, applying defaults.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Days) == 0 {
		cfg.Days = append([]models.DayConfig(nil), DefaultDays...)
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig fills AppConfig from config.yaml (in . or ./config) and the environment.
func LoadConfig() {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Validate checks values that would otherwise fail later at runtime.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "firestore", "mongo", "postgres":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.FetchCacheBackend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown FETCH_CACHE_BACKEND %q", c.FetchCacheBackend)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// splitOrigins accepts either a list or a single comma separated entry.
func splitOrigins(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
