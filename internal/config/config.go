package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Cheertaboi/storefront-discount-service/internal/discount"
	"github.com/Cheertaboi/storefront-discount-service/pkg/db"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB              db.PostgresConfig
	DBAutoMigrate   bool
	ShutdownTimeout time.Duration

	RabbitMQURL     string
	RabbitMQQueue   string
	ChannelPoolSize int

	CacheTTL                time.Duration
	StackingStrategy        discount.Strategy
	ExhaustiveMaxCandidates int
}

// EventsEnabled reports whether redemption events should be published.
func (c Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

// LoadDotEnv loads path into the environment outside production. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if strings.EqualFold(os.Getenv("ENV"), "production") {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

func Load() (Config, error) {
	dbCfg, err := db.LoadPostgresConfig()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:           getEnv("ENV", "development"),
		Port:          strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DB:            dbCfg,
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		RabbitMQQueue: getEnv("RABBITMQ_QUEUE", "discount_redemptions"),
	}

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	cfg.DBAutoMigrate, err = getEnvAsBool("DB_AUTO_MIGRATE", false)
	collect(err)
	cfg.ShutdownTimeout, err = getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	collect(err)
	cfg.ChannelPoolSize, err = getEnvAsInt("CHANNEL_POOL_SIZE", 5)
	collect(err)
	cfg.CacheTTL, err = getEnvAsDuration("DISCOUNT_CACHE_TTL", time.Minute)
	collect(err)
	cfg.ExhaustiveMaxCandidates, err = getEnvAsInt("EXHAUSTIVE_MAX_CANDIDATES", discount.DefaultMaxExhaustiveCandidates)
	collect(err)
	cfg.StackingStrategy, err = discount.ParseStrategy(os.Getenv("STACKING_STRATEGY"))
	collect(err)

	if cfg.ChannelPoolSize <= 0 {
		errs = append(errs, "CHANNEL_POOL_SIZE must be positive")
	}
	if cfg.ExhaustiveMaxCandidates <= 0 || cfg.ExhaustiveMaxCandidates > discount.MaxExhaustiveCandidates {
		errs = append(errs, fmt.Sprintf("EXHAUSTIVE_MAX_CANDIDATES must be between 1 and %d", discount.MaxExhaustiveCandidates))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
