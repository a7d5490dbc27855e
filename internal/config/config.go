package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Search orchestration and quota
	Search SearchConfig `mapstructure:"search"`

	// Contact crawler and page fetcher
	Crawler CrawlerConfig `mapstructure:"crawler"`

	// Domain classification lists
	Classifier ClassifierConfig `mapstructure:"classifier"`

	// Keyword miner
	Miner MinerConfig `mapstructure:"miner"`

	// API Keys
	APIs APIConfig `mapstructure:"apis"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Shared quota counter
	Redis RedisConfig `mapstructure:"redis"`

	Scheduler SchedulerConfig `mapstructure:"scheduler"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SearchConfig holds search-specific configuration
type SearchConfig struct {
	Provider        string        `mapstructure:"provider"` // "google" or "serpapi"
	DailyLimit      int           `mapstructure:"daily_limit"`
	MaxResults      int           `mapstructure:"max_results"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Delay           time.Duration `mapstructure:"delay"`
	MarketDelay     time.Duration `mapstructure:"market_delay"`
	ParallelMarkets int           `mapstructure:"parallel_markets"`
	ErrorMaxLength  int           `mapstructure:"error_max_length"`
}

// CrawlerConfig holds crawler-specific configuration
type CrawlerConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	AcceptLanguage     string        `mapstructure:"accept_language"`
	Timeout            time.Duration `mapstructure:"timeout"`
	PageDelay          time.Duration `mapstructure:"page_delay"`
	SiteDelay          time.Duration `mapstructure:"site_delay"`
	MaxPages           int           `mapstructure:"max_pages"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	FollowRobotsTxt    bool          `mapstructure:"follow_robots_txt"`
	ContactPaths       []string      `mapstructure:"contact_paths"`
	EmailDenyList      []string      `mapstructure:"email_deny_list"`
	EmailPriority      []string      `mapstructure:"email_priority"`
	PhonePatterns      []string      `mapstructure:"phone_patterns"`
	TaxIDPattern       string        `mapstructure:"tax_id_pattern"`
	MobileDigits       string        `mapstructure:"mobile_digits"`
	CountryPrefixes    []string      `mapstructure:"country_prefixes"`
	DefaultCountryCode string        `mapstructure:"default_country_code"`
}

// ClassifierConfig holds the static domain lists
type ClassifierConfig struct {
	Marketplaces    []string `mapstructure:"marketplaces"`
	ExcludedDomains []string `mapstructure:"excluded_domains"`
	StripPrefixes   []string `mapstructure:"strip_prefixes"`
}

// MinerConfig holds keyword miner configuration
type MinerConfig struct {
	StopWords       map[string][]string `mapstructure:"stop_words"`
	DefaultLanguage string              `mapstructure:"default_language"`
	MinTokenLength  int                 `mapstructure:"min_token_length"`
	MinFrequency    int                 `mapstructure:"min_frequency"`
	MinSites        int                 `mapstructure:"min_sites"`
	MaxTermsPerSite int                 `mapstructure:"max_terms_per_site"`
	BatchSize       int                 `mapstructure:"batch_size"`
	Timeout         time.Duration       `mapstructure:"timeout"`
}

// APIConfig holds API keys and endpoints
type APIConfig struct {
	Google  GoogleConfig  `mapstructure:"google"`
	SerpAPI SerpAPIConfig `mapstructure:"serpapi"`
}

// GoogleConfig holds Google Custom Search API configuration
type GoogleConfig struct {
	APIKey         string `mapstructure:"api_key"`
	SearchEngineID string `mapstructure:"search_engine_id"`
	Endpoint       string `mapstructure:"endpoint"`
	DateRestrict   string `mapstructure:"date_restrict"`
}

// SerpAPIConfig holds SerpAPI configuration
type SerpAPIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig holds the optional shared quota counter connection
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SchedulerConfig holds the cron schedule for unattended search runs
type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "console"
	OutputPath string `mapstructure:"output_path"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	// A missing .env file is fine; variables may come from the real environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.leadsmith")
	}

	// Set defaults
	setDefaults(v)

	// Bind environment variables
	bindEnvVars(v)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error, we'll use defaults and env
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, decodeHook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables
	loadFromEnv(&config)
	config.Storage.Driver = driverFor(config.Storage)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Search defaults
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.daily_limit", 100)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.delay", "1s")
	v.SetDefault("search.market_delay", "500ms")
	v.SetDefault("search.parallel_markets", 1)
	v.SetDefault("search.error_max_length", 500)

	// Crawler defaults
	v.SetDefault("crawler.user_agent", "Leadsmith Bot/1.0")
	v.SetDefault("crawler.accept_language", "es-ES,es;q=0.9,en;q=0.8")
	v.SetDefault("crawler.timeout", "10s")
	v.SetDefault("crawler.page_delay", "500ms")
	v.SetDefault("crawler.site_delay", "1s")
	v.SetDefault("crawler.max_pages", 3)
	v.SetDefault("crawler.max_body_bytes", 5<<20)
	v.SetDefault("crawler.follow_robots_txt", true)
	v.SetDefault("crawler.contact_paths", DefaultContactPaths)
	v.SetDefault("crawler.email_deny_list", DefaultEmailDenyList)
	v.SetDefault("crawler.email_priority", DefaultEmailPriority)
	v.SetDefault("crawler.phone_patterns", DefaultPhonePatterns)
	v.SetDefault("crawler.tax_id_pattern", DefaultTaxIDPattern)
	v.SetDefault("crawler.mobile_digits", "67")
	v.SetDefault("crawler.country_prefixes", []string{"34"})
	v.SetDefault("crawler.default_country_code", "34")

	// Classifier defaults
	v.SetDefault("classifier.marketplaces", DefaultMarketplaces)
	v.SetDefault("classifier.excluded_domains", DefaultExcludedDomains)
	v.SetDefault("classifier.strip_prefixes", DefaultStripPrefixes)

	// Miner defaults
	v.SetDefault("miner.stop_words", DefaultStopWords)
	v.SetDefault("miner.default_language", "es")
	v.SetDefault("miner.min_token_length", 4)
	v.SetDefault("miner.min_frequency", 3)
	v.SetDefault("miner.min_sites", 2)
	v.SetDefault("miner.max_terms_per_site", 20)
	v.SetDefault("miner.batch_size", 20)
	v.SetDefault("miner.timeout", "10s")

	// API defaults
	v.SetDefault("apis.google.endpoint", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("apis.google.date_restrict", "y1")
	v.SetDefault("apis.serpapi.endpoint", "https://serpapi.com/search.json")

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./data/leadsmith.db")

	v.SetDefault("redis.key_prefix", "leadsmith:quota")

	v.SetDefault("scheduler.spec", "0 6 * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stderr")
}

// bindEnvVars binds environment variables
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("LEADSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars
	_ = v.BindEnv("apis.google.api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("apis.google.search_engine_id", "GOOGLE_SEARCH_ENGINE_ID")
	_ = v.BindEnv("apis.serpapi.api_key", "SERPAPI_API_KEY")
	_ = v.BindEnv("storage.dsn", "DATABASE_URL")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.APIs.Google.APIKey = apiKey
	}
	if cx := os.Getenv("GOOGLE_SEARCH_ENGINE_ID"); cx != "" {
		config.APIs.Google.SearchEngineID = cx
	}
	if apiKey := os.Getenv("SERPAPI_API_KEY"); apiKey != "" {
		config.APIs.SerpAPI.APIKey = apiKey
	}
}

// driverFor picks postgres for a postgres:// or postgresql:// DSN such as a
// DATABASE_URL, and keeps the configured driver otherwise.
func driverFor(c StorageConfig) string {
	dsn := strings.ToLower(c.DSN)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return c.Driver
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Search.DailyLimit < 0 {
		return fmt.Errorf("search.daily_limit must not be negative")
	}
	if c.Search.MaxResults <= 0 || c.Search.MaxResults > 10 {
		return fmt.Errorf("search.max_results must be between 1 and 10")
	}
	if c.Search.Timeout <= 0 || c.Crawler.Timeout <= 0 || c.Miner.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Search.Delay < 0 || c.Crawler.PageDelay < 0 || c.Crawler.SiteDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be positive")
	}
	switch c.Search.Provider {
	case "google", "serpapi":
	default:
		return fmt.Errorf("unknown search.provider %q", c.Search.Provider)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	for _, p := range c.Crawler.PhonePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid crawler.phone_patterns entry %q: %w", p, err)
		}
	}
	if _, err := regexp.Compile(c.Crawler.TaxIDPattern); err != nil {
		return fmt.Errorf("invalid crawler.tax_id_pattern: %w", err)
	}
	return nil
}
