package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for electionwatch.
type Config struct {
	Scraping     ScrapingConfig `mapstructure:"scraping"      yaml:"scraping"`
	Fetcher      FetcherConfig  `mapstructure:"fetcher"       yaml:"fetcher"`
	Storage      StorageConfig  `mapstructure:"storage"       yaml:"storage"`
	Logging      LoggingConfig  `mapstructure:"logging"       yaml:"logging"`
	Metrics      MetricsConfig  `mapstructure:"metrics"       yaml:"metrics"`
	Schedule     ScheduleConfig `mapstructure:"schedule"      yaml:"schedule"`
	SourcesFile  string         `mapstructure:"sources_file"  yaml:"sources_file"`
	KeywordsFile string         `mapstructure:"keywords_file" yaml:"keywords_file"`
}

// ScrapingConfig controls crawling and candidate selection.
type ScrapingConfig struct {
	RequestDelay       time.Duration `mapstructure:"request_delay"         yaml:"request_delay"`
	ListPageDelay      time.Duration `mapstructure:"list_page_delay"       yaml:"list_page_delay"`
	MaxArticlesPerPage int           `mapstructure:"max_articles_per_page" yaml:"max_articles_per_page"`
	MinPageSize        int           `mapstructure:"min_page_size"         yaml:"min_page_size"`
	PinnedPosts        int           `mapstructure:"pinned_posts"          yaml:"pinned_posts"`
	MaxPages           int           `mapstructure:"max_pages"             yaml:"max_pages"`
	BackfillMaxPages   int           `mapstructure:"backfill_max_pages"    yaml:"backfill_max_pages"`
	RelevanceThreshold float64       `mapstructure:"relevance_threshold"   yaml:"relevance_threshold"`
	DaysBack           int           `mapstructure:"days_back"             yaml:"days_back"`
	Timezone           string        `mapstructure:"timezone"              yaml:"timezone"`
	Parallel           int           `mapstructure:"parallel"              yaml:"parallel"`
	SourceTimeout      time.Duration `mapstructure:"source_timeout"        yaml:"source_timeout"`
}

// FetcherConfig controls the tiered fetch layer.
type FetcherConfig struct {
	RequestTimeout       time.Duration `mapstructure:"request_timeout"        yaml:"request_timeout"`
	MaxRetries           int           `mapstructure:"max_retries"            yaml:"max_retries"`
	RetryMinBackoff      time.Duration `mapstructure:"retry_min_backoff"      yaml:"retry_min_backoff"`
	RetryMaxBackoff      time.Duration `mapstructure:"retry_max_backoff"      yaml:"retry_max_backoff"`
	UserAgents           []string      `mapstructure:"user_agents"            yaml:"user_agents"`
	UserAgentRotation    float64       `mapstructure:"user_agent_rotation"    yaml:"user_agent_rotation"`
	MinBodySize          int           `mapstructure:"min_body_size"          yaml:"min_body_size"`
	MaxBodySize          int64         `mapstructure:"max_body_size"          yaml:"max_body_size"`
	MaxRedirects         int           `mapstructure:"max_redirects"          yaml:"max_redirects"`
	TLSInsecure          bool          `mapstructure:"tls_insecure"           yaml:"tls_insecure"`
	CurlPath             string        `mapstructure:"curl_path"              yaml:"curl_path"`
	CurlTimeout          time.Duration `mapstructure:"curl_timeout"           yaml:"curl_timeout"`
	AntiBotSources       []string      `mapstructure:"anti_bot_sources"       yaml:"anti_bot_sources"`
	BrowserChallengeWait time.Duration `mapstructure:"browser_challenge_wait" yaml:"browser_challenge_wait"`
}

// StorageConfig selects the article store.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"      yaml:"driver"` // postgres, sqlite3, mongodb, jsonl, memory
	DSN        string `mapstructure:"dsn"         yaml:"dsn"`
	Database   string `mapstructure:"database"    yaml:"database"`
	MirrorPath string `mapstructure:"mirror_path" yaml:"mirror_path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint exposed by long-running commands.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr"    yaml:"addr"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// ScheduleConfig controls the schedule command.
type ScheduleConfig struct {
	Cron     string `mapstructure:"cron"      yaml:"cron"`
	DaysBack int    `mapstructure:"days_back" yaml:"days_back"`
}

// DefaultUserAgents is the desktop browser pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraping: ScrapingConfig{
			RequestDelay:       2 * time.Second,
			MaxArticlesPerPage: 30,
			MinPageSize:        5,
			MaxPages:           1,
			BackfillMaxPages:   10,
			RelevanceThreshold: 0.3,
			Timezone:           "Africa/Conakry",
			Parallel:           1,
			SourceTimeout:      30 * time.Minute,
		},
		Fetcher: FetcherConfig{
			RequestTimeout:       30 * time.Second,
			MaxRetries:           3,
			RetryMinBackoff:      2 * time.Second,
			RetryMaxBackoff:      10 * time.Second,
			UserAgents:           append([]string(nil), DefaultUserAgents...),
			UserAgentRotation:    0.3,
			MinBodySize:          1000,
			MaxBodySize:          10 * 1024 * 1024, // 10MB
			MaxRedirects:         10,
			CurlPath:             "curl",
			CurlTimeout:          60 * time.Second,
			AntiBotSources:       []string{"africaguinee"},
			BrowserChallengeWait: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			DSN:    "file:electionwatch.db?_foreign_keys=on",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Schedule: ScheduleConfig{
			Cron:     "0 7 * * *",
			DaysBack: 1,
		},
		SourcesFile:  "configs/sources.yaml",
		KeywordsFile: "configs/keywords.yaml",
	}
}

// Location resolves the configured timezone, falling back to local time.
func (c *ScrapingConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
