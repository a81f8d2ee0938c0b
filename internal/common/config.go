package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Feeds       FeedsConfig      `toml:"feeds"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
	LLM         LLMConfig        `toml:"llm"`
	Classifier  ClassifierConfig `toml:"classifier"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// FeedsConfig contains the regulatory feed endpoints and fetch behavior.
// The three built-in sources are FDA Press Releases (RSS 2.0), FDA MedWatch
// (RSS 2.0) and SEC EDGAR current filings (Atom).
type FeedsConfig struct {
	FDAPressURL    string `toml:"fda_press_url"`
	FDAMedWatchURL string `toml:"fda_medwatch_url"`
	SECEdgarURL    string `toml:"sec_edgar_url"`
	FDATimeframe   string `toml:"fda_timeframe"` // Symbolic window token for FDA feeds (default: "24h")
	SECTimeframe   string `toml:"sec_timeframe"` // Symbolic window token for EDGAR (default: "30m")
	UserAgent      string `toml:"user_agent"`    // Browser-like UA; some government feed servers reject default clients
	Timeout        string `toml:"timeout"`       // Per-fetch timeout as duration string (default: "30s")
	FetchLimit     int    `toml:"fetch_limit"`   // Max entries accepted per feed per run (0 = unlimited)
}

// SchedulerConfig contains cron schedules for the pipeline jobs
type SchedulerConfig struct {
	Enabled          bool   `toml:"enabled"`
	IngestSchedule   string `toml:"ingest_schedule"`   // Cron format (default: every 10 minutes)
	ClassifySchedule string `toml:"classify_schedule"` // Cron format (default: every 10 minutes)
	SweepSchedule    string `toml:"sweep_schedule"`    // Stale-claim sweep (default: every 5 minutes)
	LeaseTimeout     string `toml:"lease_timeout"`     // Processing entries claimed longer than this return to pending
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for classification (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Call timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.1, held low for determinism)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"` // default: "gemini-2.0-flash"
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the classification provider type
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "claude" or "gemini" (default: "claude")
}

// ClassifierConfig contains batch-protocol tuning for the relevance classifier
type ClassifierConfig struct {
	BatchLimit       int    `toml:"batch_limit"`        // Max pending entries claimed per run (default: 50)
	SubBatchSize     int    `toml:"sub_batch_size"`     // Announcements per model call (default: 2)
	CompanyBatchSize int    `toml:"company_batch_size"` // Companies per public-company filter call (default: 15)
	BatchDelay       string `toml:"batch_delay"`        // Fixed delay between sub-batches (default: "1s")
	PublishThreshold int    `toml:"publish_threshold"`  // Relevance score at or above which results publish (default: 50)
	DiscardThreshold int    `toml:"discard_threshold"`  // Scores below this are suppressed, no durable result (default: 30)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in regwatch.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/regwatch",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Feeds: FeedsConfig{
			FDAPressURL:    "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/press-releases/rss.xml",
			FDAMedWatchURL: "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/medwatch/rss.xml",
			SECEdgarURL:    "https://www.sec.gov/cgi-bin/browse-edgar?action=getcurrent&type=&company=&output=atom",
			FDATimeframe:   "24h",
			SECTimeframe:   "30m",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			Timeout:        "30s",
			FetchLimit:     0,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			IngestSchedule:   "*/10 * * * *",
			ClassifySchedule: "*/10 * * * *",
			SweepSchedule:    "*/5 * * * *",
			LeaseTimeout:     "15m",
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.1,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.0-flash",
			Timeout:     "2m",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Classifier: ClassifierConfig{
			BatchLimit:       50,
			SubBatchSize:     2,
			CompanyBatchSize: 15,
			BatchDelay:       "1s",
			PublishThreshold: 50,
			DiscardThreshold: 30,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REGWATCH_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("REGWATCH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REGWATCH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("REGWATCH_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("REGWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Feed configuration
	if ua := os.Getenv("REGWATCH_FEEDS_USER_AGENT"); ua != "" {
		config.Feeds.UserAgent = ua
	}
	if tf := os.Getenv("REGWATCH_FEEDS_FDA_TIMEFRAME"); tf != "" {
		config.Feeds.FDATimeframe = tf
	}
	if tf := os.Getenv("REGWATCH_FEEDS_SEC_TIMEFRAME"); tf != "" {
		config.Feeds.SECTimeframe = tf
	}
	if limit := os.Getenv("REGWATCH_FEEDS_FETCH_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Feeds.FetchLimit = l
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("REGWATCH_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("REGWATCH_SCHEDULER_INGEST_SCHEDULE"); schedule != "" {
		config.Scheduler.IngestSchedule = schedule
	}
	if schedule := os.Getenv("REGWATCH_SCHEDULER_CLASSIFY_SCHEDULE"); schedule != "" {
		config.Scheduler.ClassifySchedule = schedule
	}

	// LLM provider configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("REGWATCH_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("REGWATCH_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("REGWATCH_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("REGWATCH_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// Validate checks the configuration for fatal errors. Called at startup and
// again at the top of each pipeline invocation so that no partial state is
// mutated before a misconfiguration is detected.
func (c *Config) Validate() error {
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage.badger.path is required")
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderClaude:
		if c.Claude.APIKey == "" {
			return fmt.Errorf("claude.api_key is required (set ANTHROPIC_API_KEY, REGWATCH_CLAUDE_API_KEY, or claude.api_key in config)")
		}
	case LLMProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required (set GEMINI_API_KEY, REGWATCH_GEMINI_API_KEY, or gemini.api_key in config)")
		}
	default:
		return fmt.Errorf("invalid llm.default_provider '%s': must be 'claude' or 'gemini'", c.LLM.DefaultProvider)
	}

	if _, err := time.ParseDuration(c.Feeds.Timeout); err != nil {
		return fmt.Errorf("invalid feeds.timeout '%s': %w", c.Feeds.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Classifier.BatchDelay); err != nil {
		return fmt.Errorf("invalid classifier.batch_delay '%s': %w", c.Classifier.BatchDelay, err)
	}
	if _, err := time.ParseDuration(c.Scheduler.LeaseTimeout); err != nil {
		return fmt.Errorf("invalid scheduler.lease_timeout '%s': %w", c.Scheduler.LeaseTimeout, err)
	}

	if c.Classifier.SubBatchSize < 1 {
		return fmt.Errorf("classifier.sub_batch_size must be at least 1")
	}
	if c.Classifier.DiscardThreshold > c.Classifier.PublishThreshold {
		return fmt.Errorf("classifier.discard_threshold (%d) must not exceed classifier.publish_threshold (%d)",
			c.Classifier.DiscardThreshold, c.Classifier.PublishThreshold)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
