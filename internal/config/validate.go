package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	s := cfg.Scraping
	if s.RequestDelay < 0 {
		return fmt.Errorf("scraping.request_delay must be >= 0")
	}
	if s.ListPageDelay < 0 {
		return fmt.Errorf("scraping.list_page_delay must be >= 0")
	}
	if s.MaxArticlesPerPage < 1 {
		return fmt.Errorf("scraping.max_articles_per_page must be >= 1, got %d", s.MaxArticlesPerPage)
	}
	if s.MinPageSize < 0 {
		return fmt.Errorf("scraping.min_page_size must be >= 0, got %d", s.MinPageSize)
	}
	if s.PinnedPosts < 0 {
		return fmt.Errorf("scraping.pinned_posts must be >= 0, got %d", s.PinnedPosts)
	}
	if s.MaxPages < 1 || s.BackfillMaxPages < 1 {
		return fmt.Errorf("scraping.max_pages and scraping.backfill_max_pages must be >= 1")
	}
	if s.RelevanceThreshold < 0 || s.RelevanceThreshold > 1 {
		return fmt.Errorf("scraping.relevance_threshold must be within [0,1], got %v", s.RelevanceThreshold)
	}
	if s.DaysBack < 0 {
		return fmt.Errorf("scraping.days_back must be >= 0, got %d", s.DaysBack)
	}
	if s.Parallel < 1 || s.Parallel > 32 {
		return fmt.Errorf("scraping.parallel must be 1-32, got %d", s.Parallel)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("scraping.timezone %q: %w", s.Timezone, err)
		}
	}

	f := cfg.Fetcher
	if f.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if f.MaxRetries < 1 {
		return fmt.Errorf("fetcher.max_retries must be >= 1, got %d", f.MaxRetries)
	}
	if f.RetryMinBackoff < 0 || f.RetryMaxBackoff < f.RetryMinBackoff {
		return fmt.Errorf("fetcher.retry_max_backoff must be >= retry_min_backoff >= 0")
	}
	if f.UserAgentRotation < 0 || f.UserAgentRotation > 1 {
		return fmt.Errorf("fetcher.user_agent_rotation must be within [0,1], got %v", f.UserAgentRotation)
	}
	if len(f.UserAgents) == 0 {
		return fmt.Errorf("fetcher.user_agents must not be empty")
	}
	if f.MinBodySize < 0 {
		return fmt.Errorf("fetcher.min_body_size must be >= 0")
	}
	if f.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if f.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	validDrivers := map[string]bool{
		"postgres": true, "sqlite3": true, "mongodb": true, "jsonl": true, "memory": true,
	}
	if !validDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("storage.driver %q is not supported (valid: postgres, sqlite3, mongodb, jsonl, memory)", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver != "memory" && cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for driver %q", cfg.Storage.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err)
		}
	}

	return nil
}

// ValidateSources checks normalized sources for unusable entries.
func ValidateSources(sources []Source) error {
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[key] = true

		switch s.Strategy {
		case StrategyGeneric, StrategyWordPress, StrategyGuineenews:
		default:
			return fmt.Errorf("source %q: unknown strategy %q", s.Name, s.Strategy)
		}
		if s.BaseURL != "" {
			if err := ValidateURL(s.BaseURL); err != nil {
				return fmt.Errorf("source %q: base_url: %w", s.Name, err)
			}
		}
		for _, c := range s.Categories {
			if err := ValidateURL(c.URL); err != nil {
				return fmt.Errorf("source %q: category %q: %w", s.Name, c.Label, err)
			}
		}
		if !strings.Contains(s.Pagination, "%d") {
			return fmt.Errorf("source %q: pagination %q must contain %%d", s.Name, s.Pagination)
		}
		for _, t := range s.FetchTiers {
			switch t {
			case "http", "curl", "browser":
			default:
				return fmt.Errorf("source %q: unknown fetch tier %q", s.Name, t)
			}
		}
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
