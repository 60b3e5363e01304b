package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is constructed once at process start and passed by reference into
// the components that need it. Nothing reads ambient environment state
// after Load returns.
type Config struct {
	Credentials Credentials
	Marketplace MarketplaceConfig
	Wholesale   WholesaleConfig
	Compare     CompareConfig
	Server      ServerConfig
}

// Credentials are the long-lived marketplace API secrets. Read-only for
// the process lifetime and never logged in full.
type Credentials struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	AccessKeyID     string
	SecretAccessKey string
	SecurityToken   string // optional session/role token
}

// Complete reports whether all required credentials are present and none
// look like placeholders from a template .env file.
func (c Credentials) Complete() bool {
	for _, v := range []string{c.ClientID, c.ClientSecret, c.RefreshToken, c.AccessKeyID, c.SecretAccessKey} {
		if isPlaceholder(v) {
			return false
		}
	}
	return true
}

func isPlaceholder(v string) bool {
	if v == "" {
		return true
	}
	lower := strings.ToLower(v)
	return strings.Contains(lower, "dummy") || strings.HasPrefix(v, "YOUR_")
}

// MarketplaceConfig configures the signed marketplace API client.
type MarketplaceConfig struct {
	MarketplaceID string
	Region        string
	Host          string
	TokenURL      string
	Timeout       time.Duration
}

// WholesaleConfig configures the wholesale catalog scraper.
type WholesaleConfig struct {
	BaseURL   string
	Timeout   time.Duration
	CachePath string
	CacheTTL  time.Duration
	Pages     int
}

// CompareConfig holds the percentage-deviation thresholds. HighPct flags
// wholesale notably more expensive, LowPct notably cheaper.
type CompareConfig struct {
	HighPct float64
	LowPct  float64
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Addr string
}

// Load reads .env (when present) and the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments configure the environment
	// directly.
	_ = godotenv.Load()

	cfg := &Config{
		Credentials: Credentials{
			ClientID:        os.Getenv("CLIENT_ID"),
			ClientSecret:    os.Getenv("CLIENT_SECRET"),
			RefreshToken:    os.Getenv("REFRESH_TOKEN"),
			AccessKeyID:     os.Getenv("ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SECRET_ACCESS_KEY"),
			SecurityToken:   os.Getenv("SECURITY_TOKEN"),
		},
		Marketplace: MarketplaceConfig{
			MarketplaceID: envOr("MARKETPLACE_ID", "A1VC38T7YXB528"),
			Region:        envOr("REGION", "us-west-2"),
			Host:          strings.TrimPrefix(envOr("API_HOST", "sellingpartnerapi-na.amazon.com"), "https://"),
			TokenURL:      envOr("TOKEN_URL", "https://api.amazon.com/auth/o2/token"),
			Timeout:       envDuration("API_TIMEOUT", 15*time.Second),
		},
		Wholesale: WholesaleConfig{
			BaseURL:   envOr("WHOLESALE_BASE_URL", "https://www.costco.co.jp"),
			Timeout:   envDuration("SCRAPE_TIMEOUT", 10*time.Second),
			CachePath: envOr("SCRAPE_CACHE_PATH", ""),
			CacheTTL:  envDuration("SCRAPE_CACHE_TTL", time.Hour),
			Pages:     envInt("SCRAPE_PAGES", 1),
		},
		Compare: CompareConfig{
			HighPct: envFloat("HIGH_THRESHOLD_PCT", 20),
			LowPct:  envFloat("LOW_THRESHOLD_PCT", 25),
		},
		Server: ServerConfig{
			Addr: envOr("LISTEN_ADDR", ":8080"),
		},
	}

	if cfg.Compare.HighPct < 0 || cfg.Compare.LowPct < 0 {
		return nil, fmt.Errorf("thresholds must be non-negative, got high=%v low=%v",
			cfg.Compare.HighPct, cfg.Compare.LowPct)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
