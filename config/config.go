package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEDREMINDER_DATABASE_HOST.
const EnvPrefix = "MEDREMINDER"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" envconfig:"SERVER"`
	Database  DatabaseConfig  `mapstructure:"database" envconfig:"DATABASE"`
	Redis     RedisConfig     `mapstructure:"redis" envconfig:"REDIS"`
	JWT       JWTConfig       `mapstructure:"jwt" envconfig:"JWT"`
	Store     StoreConfig     `mapstructure:"store" envconfig:"STORE"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" envconfig:"SCHEDULER"`
	Alert     AlertConfig     `mapstructure:"alert" envconfig:"ALERT"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	Logger    LoggerConfig    `mapstructure:"logger" envconfig:"LOGGER"`
	Worker    WorkerConfig    `mapstructure:"worker" envconfig:"WORKER"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	User     string `mapstructure:"user" envconfig:"USER"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"SSLMODE"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"URL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" envconfig:"SECRET"`
	Issuer string `mapstructure:"issuer" envconfig:"ISSUER"`
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver         string        `mapstructure:"driver" envconfig:"DRIVER"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" envconfig:"CACHE_TTL"`
	ResyncInterval time.Duration `mapstructure:"resync_interval" envconfig:"RESYNC_INTERVAL"`
}

type SchedulerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	DueTolerance    time.Duration `mapstructure:"due_tolerance" envconfig:"DUE_TOLERANCE"`
	MissedGrace     time.Duration `mapstructure:"missed_grace" envconfig:"MISSED_GRACE"`
	SuppressWindow  time.Duration `mapstructure:"suppress_window" envconfig:"SUPPRESS_WINDOW"`
	ToastDuration   time.Duration `mapstructure:"toast_duration" envconfig:"TOAST_DURATION"`
	VibrateDuration time.Duration `mapstructure:"vibrate_duration" envconfig:"VIBRATE_DURATION"`
	// Patients are scheduled from startup regardless of presence.
	Patients []string `mapstructure:"patients" envconfig:"PATIENTS"`
}

type AlertConfig struct {
	// Channel is "push" or "email".
	Channel     string        `mapstructure:"channel" envconfig:"CHANNEL"`
	CallTimeout time.Duration `mapstructure:"call_timeout" envconfig:"CALL_TIMEOUT"`
	SMTP        SMTPConfig    `mapstructure:"smtp" envconfig:"SMTP"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	Username string `mapstructure:"username" envconfig:"USERNAME"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	From     string `mapstructure:"from" envconfig:"FROM"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" envconfig:"ENABLED"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `mapstructure:"burst" envconfig:"BURST"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" envconfig:"LEVEL"`
	// Format is "console" or "json".
	Format string `mapstructure:"format" envconfig:"FORMAT"`
}

type WorkerConfig struct {
	HealthAddr string `mapstructure:"health_addr" envconfig:"HEALTH_ADDR"`
	// Embedded runs the schedulers inside the API process.
	Embedded bool `mapstructure:"embedded" envconfig:"EMBEDDED"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "medreminder")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.issuer", "medreminder")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.cache_ttl", "5m")
	v.SetDefault("store.resync_interval", "1m")

	v.SetDefault("scheduler.poll_interval", "20s")
	v.SetDefault("scheduler.due_tolerance", "40s")
	v.SetDefault("scheduler.missed_grace", "60s")
	v.SetDefault("scheduler.suppress_window", "54s")
	v.SetDefault("scheduler.toast_duration", "5400ms")
	v.SetDefault("scheduler.vibrate_duration", "200ms")

	v.SetDefault("alert.channel", "push")
	v.SetDefault("alert.call_timeout", "5s")
	v.SetDefault("alert.smtp.port", 587)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("worker.health_addr", ":8081")
}

// LoadConfig reads config.yml from the usual locations, then applies
// MEDREMINDER_* environment overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")           // current directory
	v.AddConfigPath("./config")    // config subdirectory
	v.AddConfigPath("/app")        // container root directory
	v.AddConfigPath("/app/config") // container config directory

	return load(v)
}

// LoadFile reads a specific config file instead of searching for one.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the timing relationships the scheduler depends on.
func (c *Config) Validate() error {
	s := c.Scheduler
	if s.PollInterval <= 0 || s.DueTolerance <= 0 || s.MissedGrace < 0 || s.SuppressWindow <= 0 {
		return fmt.Errorf("scheduler durations must be positive")
	}
	// Every due window must contain at least one tick.
	if s.PollInterval >= 2*s.DueTolerance {
		return fmt.Errorf("scheduler.poll_interval (%s) must be less than twice scheduler.due_tolerance (%s)", s.PollInterval, s.DueTolerance)
	}
	// Consecutive ticks inside one due window must not both fire.
	if s.SuppressWindow <= s.PollInterval {
		return fmt.Errorf("scheduler.suppress_window (%s) must be longer than scheduler.poll_interval (%s)", s.SuppressWindow, s.PollInterval)
	}

	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Alert.Channel {
	case "push":
	case "email":
		if c.Alert.SMTP.Host == "" {
			return fmt.Errorf("alert.smtp.host is required for the email channel")
		}
	default:
		return fmt.Errorf("unknown alert.channel %q", c.Alert.Channel)
	}
	return nil
}
