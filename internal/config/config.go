package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	TMDB     TMDBConfig     `mapstructure:"tmdb"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Rehost   RehostConfig   `mapstructure:"rehost"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// AdminConfig guards every request-triggered entry point.
// An empty Token denies all admin calls.
type AdminConfig struct {
	Token  string `mapstructure:"token"`
	Header string `mapstructure:"header"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type TMDBConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Language  string        `mapstructure:"language"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst int           `mapstructure:"rate_burst"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3compatible, r2, s3
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

// MatcherConfig holds the empirically chosen matching constants.
type MatcherConfig struct {
	MinConfidence     float64 `mapstructure:"min_confidence"`
	DistanceTolerance float64 `mapstructure:"distance_tolerance"`
	LoosenedTolerance float64 `mapstructure:"loosened_tolerance"`
	AltTitleFloor     float64 `mapstructure:"alt_title_floor"`
	YearPenalty       float64 `mapstructure:"year_penalty"`
	FetchTrailers     bool    `mapstructure:"fetch_trailers"`
}

type QueueConfig struct {
	LeaseHorizon      time.Duration `mapstructure:"lease_horizon"`
	ShortDelay        time.Duration `mapstructure:"short_delay"`
	BackoffCapMinutes int           `mapstructure:"backoff_cap_minutes"`
	NoMatchMultiplier int           `mapstructure:"no_match_multiplier"`
	MaxTries          int           `mapstructure:"max_tries"`
	TransportMaxTries int           `mapstructure:"transport_max_tries"`
	BatchSize         int           `mapstructure:"batch_size"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

type RehostConfig struct {
	TransferURL       string        `mapstructure:"transfer_url"`
	TransferToken     string        `mapstructure:"transfer_token"`
	TransferTimeout   time.Duration `mapstructure:"transfer_timeout"`
	UserAgents        []string      `mapstructure:"user_agents"`
	Referers          []string      `mapstructure:"referers"`
	RefreshAfterTries int           `mapstructure:"refresh_after_tries"`
	DurableHost       string        `mapstructure:"durable_host"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("admin.token", "ADMIN_TOKEN")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("tmdb.api_key", "TMDB_API_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("rehost.transfer_url", "TRANSFER_URL")
	v.BindEnv("rehost.transfer_token", "TRANSFER_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("admin.header", "X-Admin-Token")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/catalog.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.timeout", 10*time.Second)
	v.SetDefault("tmdb.rate_limit", 20.0)
	v.SetDefault("tmdb.rate_burst", 5)
	v.SetDefault("storage.type", "s3compatible")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "catalog-assets")
	v.SetDefault("storage.prefix", "assets")
	v.SetDefault("matcher.min_confidence", 0.62)
	v.SetDefault("matcher.distance_tolerance", 0.6)
	v.SetDefault("matcher.loosened_tolerance", 0.8)
	v.SetDefault("matcher.alt_title_floor", 0.9)
	v.SetDefault("matcher.year_penalty", 0.05)
	v.SetDefault("matcher.fetch_trailers", true)
	v.SetDefault("queue.lease_horizon", 15*time.Minute)
	v.SetDefault("queue.short_delay", time.Minute)
	v.SetDefault("queue.backoff_cap_minutes", 60)
	v.SetDefault("queue.no_match_multiplier", 6)
	v.SetDefault("queue.max_tries", 8)
	v.SetDefault("queue.transport_max_tries", 12)
	v.SetDefault("queue.batch_size", 10)
	v.SetDefault("queue.job_timeout", 45*time.Second)
	v.SetDefault("rehost.transfer_timeout", 15*time.Second)
	v.SetDefault("rehost.refresh_after_tries", 3)
	v.SetDefault("rehost.user_agents", []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	})
	v.SetDefault("rehost.referers", []string{})
}
