package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External providers
	Providers ProvidersConfig

	// Aggregation tuning
	Aggregator AggregatorConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ProvidersConfig holds API keys and base URLs for external market data
// sources. Key-gated providers report themselves unavailable while their
// key is empty.
type ProvidersConfig struct {
	CoinMarketCapKey string
	CoinAPIKey       string
	CryptoCompareKey string

	CoinMarketCapBaseURL string
	CoinAPIBaseURL       string
	CryptoCompareBaseURL string
	CoinPaprikaBaseURL   string
	BinanceBaseURL       string
	BitfinexBaseURL      string
	CoinGeckoBaseURL     string
	CoinloreBaseURL      string
	YahooBaseURL         string
}

// AggregatorConfig tunes provider fan-out, caching and enrichment
type AggregatorConfig struct {
	TargetCount     int           // records a full refresh aims for
	MaxConcurrent   int           // global cap on in-flight provider calls
	ProviderTimeout time.Duration // per provider call
	MemoryCacheTTL  time.Duration // query-keyed memory cache
	EnrichmentBatch int           // tasks per worker pass
	TaskRetention   time.Duration // terminal task retention
	MinQualityScore float64       // floor for ranking pools
	PrecomputeLimit int           // records per precompute pass
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8091"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "rebound"),
			User:            getEnv("DB_USER", "rebound"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External providers
		Providers: ProvidersConfig{
			CoinMarketCapKey: getEnv("COINMARKETCAP_API_KEY", ""),
			CoinAPIKey:       getEnv("COINAPI_API_KEY", ""),
			CryptoCompareKey: getEnv("CRYPTOCOMPARE_API_KEY", ""),

			CoinMarketCapBaseURL: getEnv("COINMARKETCAP_BASE_URL", "https://pro-api.coinmarketcap.com"),
			CoinAPIBaseURL:       getEnv("COINAPI_BASE_URL", "https://rest.coinapi.io"),
			CryptoCompareBaseURL: getEnv("CRYPTOCOMPARE_BASE_URL", "https://min-api.cryptocompare.com"),
			CoinPaprikaBaseURL:   getEnv("COINPAPRIKA_BASE_URL", "https://api.coinpaprika.com/v1"),
			BinanceBaseURL:       getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			BitfinexBaseURL:      getEnv("BITFINEX_BASE_URL", "https://api-pub.bitfinex.com/v2"),
			CoinGeckoBaseURL:     getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			CoinloreBaseURL:      getEnv("COINLORE_BASE_URL", "https://api.coinlore.net/api"),
			YahooBaseURL:         getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},

		// Aggregation tuning
		Aggregator: AggregatorConfig{
			TargetCount:     getEnvAsInt("AGG_TARGET_COUNT", 3000),
			MaxConcurrent:   getEnvAsInt("AGG_MAX_CONCURRENT", 15),
			ProviderTimeout: getEnvAsDuration("AGG_PROVIDER_TIMEOUT", "20s"),
			MemoryCacheTTL:  getEnvAsDuration("AGG_MEMORY_CACHE_TTL", "45m"),
			EnrichmentBatch: getEnvAsInt("AGG_ENRICHMENT_BATCH", 10),
			TaskRetention:   getEnvAsDuration("AGG_TASK_RETENTION", "72h"),
			MinQualityScore: getEnvAsFloat("AGG_MIN_QUALITY_SCORE", 50),
			PrecomputeLimit: getEnvAsInt("AGG_PRECOMPUTE_LIMIT", 2000),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Aggregator.MaxConcurrent < 1 {
		return fmt.Errorf("AGG_MAX_CONCURRENT must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
