package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const appName = "crawlnode"

type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Output   OutputConfig   `mapstructure:"output"`
	Network  NetworkConfig  `mapstructure:"network"`
	Parallel ParallelConfig `mapstructure:"parallel"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServiceConfig struct {
	Backend  string `mapstructure:"backend"`
	BaseURL  string `mapstructure:"base_url"`
	APIToken string `mapstructure:"api_token"`
	Timeout  int    `mapstructure:"timeout"`
}

type LLMConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	Provider         string   `mapstructure:"provider"`
	Model            string   `mapstructure:"model"`
	APIKey           string   `mapstructure:"api_key"`
	BaseURL          string   `mapstructure:"base_url"`
	Temperature      *float64 `mapstructure:"temperature"`
	MaxTokens        *int     `mapstructure:"max_tokens"`
	TopP             *float64 `mapstructure:"top_p"`
	FrequencyPenalty *float64 `mapstructure:"frequency_penalty"`
	PresencePenalty  *float64 `mapstructure:"presence_penalty"`
}

type BrowserConfig struct {
	Type              string            `mapstructure:"type"`
	Headless          bool              `mapstructure:"headless"`
	JavaScript        bool              `mapstructure:"javascript"`
	ViewportWidth     int               `mapstructure:"viewport_width"`
	ViewportHeight    int               `mapstructure:"viewport_height"`
	Proxy             string            `mapstructure:"proxy"`
	UserAgent         string            `mapstructure:"user_agent"`
	UserAgentMode     string            `mapstructure:"user_agent_mode"`
	IgnoreHTTPSErrors bool              `mapstructure:"ignore_https_errors"`
	EnableStealth     bool              `mapstructure:"enable_stealth"`
	TextMode          bool              `mapstructure:"text_mode"`
	LightMode         bool              `mapstructure:"light_mode"`
	Headers           map[string]string `mapstructure:"headers"`
	CookiesFrom       string            `mapstructure:"cookies_from"`
	FetchMode         string            `mapstructure:"fetch_mode"`
}

type CrawlerConfig struct {
	CacheMode             string   `mapstructure:"cache_mode"`
	CSSSelector           string   `mapstructure:"css_selector"`
	ExcludedTags          []string `mapstructure:"excluded_tags"`
	WordCountThreshold    int      `mapstructure:"word_count_threshold"`
	ExcludeExternalLinks  bool     `mapstructure:"exclude_external_links"`
	WaitFor               string   `mapstructure:"wait_for"`
	PageTimeout           int      `mapstructure:"page_timeout"`
	DelayBeforeReturnHTML float64  `mapstructure:"delay_before_return_html"`
	MeanDelay             float64  `mapstructure:"mean_delay"`
	MaxRange              float64  `mapstructure:"max_range"`
	SemaphoreCount        int      `mapstructure:"semaphore_count"`
	SessionID             string   `mapstructure:"session_id"`
	CheckRobotsTxt        bool     `mapstructure:"check_robots_txt"`
	ScanFullPage          bool     `mapstructure:"scan_full_page"`
	JSCode                []string `mapstructure:"js_code"`
	Screenshot            bool     `mapstructure:"screenshot"`
	PDF                   bool     `mapstructure:"pdf"`
	Locale                string   `mapstructure:"locale"`
	TimezoneID            string   `mapstructure:"timezone_id"`

	Geolocation *GeolocationConfig `mapstructure:"geolocation"`
}

// GeolocationConfig is the location the browser reports to pages.
type GeolocationConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Accuracy  float64 `mapstructure:"accuracy"`
}

type OutputConfig struct {
	File                string `mapstructure:"file"`
	Pretty              bool   `mapstructure:"pretty"`
	IncludeHTML         bool   `mapstructure:"include_html"`
	IncludeLinks        bool   `mapstructure:"include_links"`
	IncludeMedia        bool   `mapstructure:"include_media"`
	IncludeOriginalText bool   `mapstructure:"include_original_text"`
	MarkdownVariant     string `mapstructure:"markdown_variant"`
}

type NetworkConfig struct {
	Delay float64 `mapstructure:"delay"`
}

type ParallelConfig struct {
	FailFast bool `mapstructure:"fail_fast"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Backend: "crawl4ai",
			BaseURL: "http://localhost:11235",
			Timeout: 120,
		},
		LLM: LLMConfig{
			Enabled:  false,
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Browser: BrowserConfig{
			Type:           "chromium",
			Headless:       true,
			JavaScript:     true,
			ViewportWidth:  1280,
			ViewportHeight: 800,
			UserAgentMode:  "",
			Headers:        map[string]string{},
			CookiesFrom:    "none",
			FetchMode:      "auto",
		},
		Crawler: CrawlerConfig{
			CacheMode:      "enabled",
			PageTimeout:    60000,
			SemaphoreCount: 5,
			MeanDelay:      0.1,
			MaxRange:       0.3,
		},
		Output: OutputConfig{
			IncludeLinks:    false,
			MarkdownVariant: "raw",
		},
		Network: NetworkConfig{
			Delay: 0,
		},
		Parallel: ParallelConfig{
			FailFast: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the configuration directory under XDG_CONFIG_HOME.
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error finding home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, appName), nil
}

// Load reads configFile, or config.toml from Dir when configFile is empty.
// A .env file in the working directory is loaded into the environment first;
// CRAWLNODE_SECTION_KEY variables override file values.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configDir, err := Dir()
		if err != nil {
			return cfg, err
		}
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CRAWLNODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is not an error, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// bindEnv registers the keys that are commonly set from the environment so
// AutomaticEnv sees them even when the file does not mention them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"service.backend", "service.base_url", "service.api_token", "service.timeout",
		"llm.enabled", "llm.provider", "llm.model", "llm.api_key", "llm.base_url",
		"logging.level", "logging.sentry_dsn",
	} {
		_ = v.BindEnv(key)
	}
}

// APIToken returns the service token, or nil when none is configured.
func (c *Config) APIToken() *string {
	return orNil(c.Service.APIToken)
}

// LLMAPIKey returns the provider key, or nil when none is configured.
func (c *Config) LLMAPIKey() *string {
	return orNil(c.LLM.APIKey)
}

func orNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Validate checks the values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	switch c.Service.Backend {
	case "crawl4ai", "local":
	default:
		return fmt.Errorf("service.backend must be crawl4ai or local, got %q", c.Service.Backend)
	}
	if c.Service.Timeout < 0 {
		return fmt.Errorf("service.timeout cannot be negative")
	}
	switch c.Output.MarkdownVariant {
	case "raw", "fit":
	default:
		return fmt.Errorf("output.markdown_variant must be raw or fit, got %q", c.Output.MarkdownVariant)
	}
	if c.Network.Delay < 0 {
		return fmt.Errorf("network.delay cannot be negative")
	}
	if g := c.Crawler.Geolocation; g != nil {
		if g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
			return fmt.Errorf("crawler.geolocation out of range: %v, %v", g.Latitude, g.Longitude)
		}
		if g.Accuracy < 0 {
			return fmt.Errorf("crawler.geolocation.accuracy cannot be negative")
		}
	}
	return nil
}

func (c *Config) CreateExampleConfig(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	return os.WriteFile(configPath, []byte(exampleConfig), 0644)
}

const exampleConfig = `# crawlnode configuration file

[service]
backend = "crawl4ai"                # crawl4ai, local
base_url = "http://localhost:11235" # Crawl4AI server
api_token = ""                      # Bearer token (empty = no auth)
timeout = 120                       # seconds per request

[llm]
enabled = false                     # LLM extraction must be switched on explicitly
provider = "openai"                 # openai, anthropic, groq, ollama, ...
model = "gpt-4o-mini"
api_key = ""                        # never sent for ollama
base_url = ""                       # ollama endpoint (default http://localhost:11434)
# temperature = 0.0
# max_tokens = 2000
# top_p = 1.0
# frequency_penalty = 0.0
# presence_penalty = 0.0

[browser]
type = "chromium"                   # chromium, firefox, webkit
headless = true
javascript = true
viewport_width = 1280
viewport_height = 800
proxy = ""
user_agent = ""
user_agent_mode = ""                # "random" rotates agents
ignore_https_errors = false
enable_stealth = false
text_mode = false
light_mode = false
cookies_from = "none"               # none, auto, chrome, firefox, safari, zen
fetch_mode = "auto"                 # local backend only: auto, static, javascript

[browser.headers]
# "Accept-Language" = "en-US"

[crawler]
cache_mode = "enabled"              # enabled, bypass, disabled, read_only, write_only
css_selector = ""
excluded_tags = []
word_count_threshold = 0
exclude_external_links = false
wait_for = ""                       # "css:.selector" or "js:() => ..."
page_timeout = 60000                # milliseconds
delay_before_return_html = 0.0
mean_delay = 0.1                    # seconds between pages of one request
max_range = 0.3
semaphore_count = 5                 # max concurrent crawls on the server
session_id = ""                     # "auto" generates one per item
check_robots_txt = false
scan_full_page = false
js_code = []                        # scripts run in the page before capture
screenshot = false                  # base64 PNG in the record's "screenshot"
pdf = false                         # base64 PDF in the record's "pdf"
locale = ""                         # e.g. "en-US"
timezone_id = ""                    # e.g. "Europe/Berlin"

# [crawler.geolocation]
# latitude = 52.52
# longitude = 13.405
# accuracy = 10.0

[output]
file = ""                           # empty = stdout
pretty = false
include_html = false
include_links = false
include_media = false
include_original_text = false
markdown_variant = "raw"            # raw, fit

[network]
delay = 0                           # seconds between input items

[parallel]
fail_fast = true                    # false = emit error records and continue

[logging]
level = "info"                      # debug, info, warn, error
sentry_dsn = ""
`
