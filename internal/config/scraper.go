package config

import (
	"fmt"
	"strings"
	"time"
)

// ScraperConfig holds settings for the broadcast page scraper.
type ScraperConfig struct {
	CDPAddress   string
	CDPPort      int
	TabURLFilter string
	IntervalMS   int
	RelayURL     string
	LogLevel     string
	LogFile      string
}

// LoadScraper reads scraper configuration from environment variables.
func LoadScraper() (*ScraperConfig, error) {
	loadDotEnv()
	cfg := &ScraperConfig{
		CDPAddress:   getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:      getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		TabURLFilter: getEnvOrDefault("SCRAPER_TAB_URL_FILTER", "lichess.org/broadcast"),
		IntervalMS:   getEnvIntOrDefault("SCRAPER_INTERVAL_MS", 500),
		RelayURL:     getEnvOrDefault("RELAY_URL", "http://127.0.0.1:5000"),
		LogLevel:     strings.ToLower(getEnvOrDefault("SCRAPER_LOG_LEVEL", "info")),
		LogFile:      getEnvOrDefault("SCRAPER_LOG_FILE", "logs/scraper.log"),
	}
	cfg.IntervalMS = clampMin(cfg.IntervalMS, 100)
	return cfg, nil
}

// CDPURL returns the HTTP endpoint used by the chromedp remote allocator.
func (c *ScraperConfig) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c *ScraperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}
