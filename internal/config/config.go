package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Discord  DiscordConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Policy   PolicyConfig
	Exchange ExchangeConfig
}

// AppConfig controls the ops HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	HTTPEnabled           bool
}

// DiscordConfig holds gateway credentials and the guild layout location.
type DiscordConfig struct {
	Token           string `validate:"required"`
	GuildID         string `validate:"required"`
	GuildConfigPath string `validate:"required"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend        string `validate:"oneof=file redis postgres memory"`
	DataDir        string
	RedisKeyPrefix string
	TranscriptDir  string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminPasswordHash     string
	BcryptCost            int
}

// PolicyConfig carries the ticket lifecycle thresholds.
type PolicyConfig struct {
	TicketQuota             int           `validate:"gt=0"`
	CategoryCapacity        int           `validate:"gt=0"`
	InactivityWarnAfter     time.Duration `validate:"gt=0"`
	InactivityGrace         time.Duration `validate:"gt=0"`
	InactivitySweepInterval time.Duration `validate:"gt=0"`
	TierSweepInterval       time.Duration `validate:"gt=0"`
	ConfirmTimeout          time.Duration `validate:"gt=0"`
	StickyDelay             time.Duration `validate:"gt=0"`
	LeaderboardSize         int           `validate:"gt=0"`
}

// ExchangeConfig points at an exchangerate-api compatible service.
type ExchangeConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	TimeoutSeconds    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			HTTPEnabled:           getEnvAsBool("HTTP_ENABLED", true),
		},
		Discord: DiscordConfig{
			Token:           os.Getenv("DISCORD_TOKEN"),
			GuildID:         os.Getenv("DISCORD_GUILD_ID"),
			GuildConfigPath: getEnv("GUILD_CONFIG_PATH", "guild.yaml"),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("STORE_BACKEND", "file")),
			DataDir:        getEnv("DATA_DIR", "data"),
			RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticketbot:"),
			TranscriptDir:  os.Getenv("TRANSCRIPT_DIR"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminPasswordHash:     os.Getenv("ADMIN_API_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Policy: PolicyConfig{
			TicketQuota:             getEnvAsInt("TICKET_QUOTA", 3),
			CategoryCapacity:        getEnvAsInt("CATEGORY_CAPACITY", 50),
			InactivityWarnAfter:     getEnvAsDuration("INACTIVITY_WARN_AFTER", 72*time.Hour),
			InactivityGrace:         getEnvAsDuration("INACTIVITY_GRACE", 24*time.Hour),
			InactivitySweepInterval: getEnvAsDuration("INACTIVITY_SWEEP_INTERVAL", time.Hour),
			TierSweepInterval:       getEnvAsDuration("TIER_SWEEP_INTERVAL", 5*time.Minute),
			ConfirmTimeout:          getEnvAsDuration("CONFIRM_TIMEOUT", 60*time.Second),
			StickyDelay:             getEnvAsDuration("STICKY_DELAY", 3*time.Second),
			LeaderboardSize:         getEnvAsInt("LEADERBOARD_SIZE", 10),
		},
		Exchange: ExchangeConfig{
			BaseURL:           getEnv("EXCHANGE_BASE_URL", "https://v6.exchangerate-api.com/v6"),
			APIKey:            os.Getenv("EXCHANGE_API_KEY"),
			RequestsPerMinute: getEnvAsInt("EXCHANGE_REQUESTS_PER_MINUTE", 30),
			TimeoutSeconds:    getEnvAsInt("EXCHANGE_TIMEOUT_SECONDS", 10),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
