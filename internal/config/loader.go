package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (ELECTIONWATCH_STORAGE_DSN).
const EnvPrefix = "ELECTIONWATCH"

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("electionwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".electionwatch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Existing variables win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadCatalog reads the source and keyword files named by cfg.
func LoadCatalog(cfg *Config) (*Catalog, error) {
	sources, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	taxonomy, err := LoadTaxonomy(cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	return &Catalog{Sources: sources, Taxonomy: taxonomy}, nil
}

// LoadSources reads the source list from a YAML file with a top-level
// "sources" key. Selector fields accept a string or a list.
func LoadSources(path string) ([]Source, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var sources []Source
	if err := v.UnmarshalKey("sources", &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	for i := range sources {
		sources[i].Normalize()
	}
	if err := ValidateSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// LoadTaxonomy reads the keyword taxonomy from a YAML file with a top-level
// "keywords" key. An empty path yields an empty taxonomy.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if path == "" {
		return Taxonomy{}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Taxonomy{}, fmt.Errorf("failed to read keywords file: %w", err)
	}

	var cats []KeywordCategory
	if err := v.UnmarshalKey("keywords", &cats); err != nil {
		return Taxonomy{}, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	t := Taxonomy{Categories: cats}
	t.Normalize()
	return t, nil
}

// setDefaults registers default values in viper so env overrides apply
// to keys absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scraping.request_delay", cfg.Scraping.RequestDelay)
	v.SetDefault("scraping.list_page_delay", cfg.Scraping.ListPageDelay)
	v.SetDefault("scraping.max_articles_per_page", cfg.Scraping.MaxArticlesPerPage)
	v.SetDefault("scraping.min_page_size", cfg.Scraping.MinPageSize)
	v.SetDefault("scraping.pinned_posts", cfg.Scraping.PinnedPosts)
	v.SetDefault("scraping.max_pages", cfg.Scraping.MaxPages)
	v.SetDefault("scraping.backfill_max_pages", cfg.Scraping.BackfillMaxPages)
	v.SetDefault("scraping.relevance_threshold", cfg.Scraping.RelevanceThreshold)
	v.SetDefault("scraping.days_back", cfg.Scraping.DaysBack)
	v.SetDefault("scraping.timezone", cfg.Scraping.Timezone)
	v.SetDefault("scraping.parallel", cfg.Scraping.Parallel)
	v.SetDefault("scraping.source_timeout", cfg.Scraping.SourceTimeout)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.retry_min_backoff", cfg.Fetcher.RetryMinBackoff)
	v.SetDefault("fetcher.retry_max_backoff", cfg.Fetcher.RetryMaxBackoff)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.user_agent_rotation", cfg.Fetcher.UserAgentRotation)
	v.SetDefault("fetcher.min_body_size", cfg.Fetcher.MinBodySize)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.curl_path", cfg.Fetcher.CurlPath)
	v.SetDefault("fetcher.curl_timeout", cfg.Fetcher.CurlTimeout)
	v.SetDefault("fetcher.anti_bot_sources", cfg.Fetcher.AntiBotSources)
	v.SetDefault("fetcher.browser_challenge_wait", cfg.Fetcher.BrowserChallengeWait)

	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.mirror_path", cfg.Storage.MirrorPath)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("schedule.cron", cfg.Schedule.Cron)
	v.SetDefault("schedule.days_back", cfg.Schedule.DaysBack)

	v.SetDefault("sources_file", cfg.SourcesFile)
	v.SetDefault("keywords_file", cfg.KeywordsFile)
}
