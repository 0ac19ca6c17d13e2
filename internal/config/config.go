package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/newsdesk/internal/provider"
)

// Config is the persistent application configuration
type Config struct {
	// News providers
	Providers ProvidersConfig `json:"providers"`

	// UI Preferences
	UI UIConfig `json:"ui"`

	// Fetch behaviour
	Fetch FetchConfig `json:"fetch"`

	// Preferences database; empty means DBPath()
	Database string `json:"database,omitempty"`
}

// ProvidersConfig holds connection settings per provider
type ProvidersConfig struct {
	NewsAPI  provider.Config `json:"newsapi"`
	Guardian provider.Config `json:"guardian"`
	NYTimes  provider.Config `json:"nytimes"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme      string `json:"theme"`
	PageSize   int    `json:"page_size"`
	DebounceMs int    `json:"debounce_ms"`
}

// FetchConfig holds request settings
type FetchConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"` // per provider, per request
	CacheTTLSecs   int `json:"cache_ttl_seconds"`
	CacheEntries   int `json:"cache_entries"`
}

// envKeys maps environment variables to the provider they configure.
// Later names in each list win.
var envKeys = map[string][]string{
	"newsapi":  {"VITE_NEWSAPI_KEY", "NEWSAPI_KEY"},
	"guardian": {"VITE_GUARDIAN_API_KEY", "GUARDIAN_API_KEY"},
	"nytimes":  {"VITE_NYTIMES_API_KEY", "NYTIMES_API_KEY"},
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			NewsAPI:  provider.DefaultNewsAPIConfig(""),
			Guardian: provider.DefaultGuardianConfig(""),
			NYTimes:  provider.DefaultNYTimesConfig(""),
		},
		UI: UIConfig{
			Theme:      "dark",
			PageSize:   12,
			DebounceMs: 500,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			CacheTTLSecs:   300,
			CacheEntries:   50,
		},
	}
}

// Dir returns the application data directory
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".newsdesk")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DBPath returns the default preferences database path
func DBPath() string {
	return filepath.Join(Dir(), "newsdesk.db")
}

// LogDir returns the directory for the daily text logs
func LogDir() string {
	return filepath.Join(Dir(), "logs")
}

// EventLogPath returns the path to the JSONL event log
func EventLogPath() string {
	return filepath.Join(Dir(), "newsdesk.events.jsonl")
}

// Load reads config from the default path, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields defaults. Keys
// absent from the file are filled from the environment either way.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = DefaultConfig()
	}
	cfg.fillDefaults()
	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// fillDefaults restores zero-valued settings a partial file left behind.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	fill := func(dst *provider.Config, src provider.Config) {
		if dst.BaseURL == "" {
			dst.BaseURL = src.BaseURL
		}
		if len(dst.Endpoints) == 0 {
			dst.Endpoints = src.Endpoints
		}
	}
	fill(&c.Providers.NewsAPI, def.Providers.NewsAPI)
	fill(&c.Providers.Guardian, def.Providers.Guardian)
	fill(&c.Providers.NYTimes, def.Providers.NYTimes)

	if c.UI.PageSize <= 0 {
		c.UI.PageSize = def.UI.PageSize
	}
	if c.UI.DebounceMs <= 0 {
		c.UI.DebounceMs = def.UI.DebounceMs
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = def.Fetch.TimeoutSeconds
	}
	if c.Fetch.CacheTTLSecs <= 0 {
		c.Fetch.CacheTTLSecs = def.Fetch.CacheTTLSecs
	}
	if c.Fetch.CacheEntries <= 0 {
		c.Fetch.CacheEntries = def.Fetch.CacheEntries
	}
}

// Save writes config to the default path
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in missing API keys from environment variables
func (c *Config) AutoPopulateFromEnv() {
	c.applyKeys(os.Getenv, false)
}

// LoadKeysFromFile loads keys from a dotenv-style file (KEY=value or
// export KEY=value lines). Keys found in the file replace configured ones.
func (c *Config) LoadKeysFromFile(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	c.applyKeys(func(k string) string { return env[k] }, true)
	return nil
}

func (c *Config) applyKeys(lookup func(string) string, override bool) {
	targets := map[string]*provider.Config{
		"newsapi":  &c.Providers.NewsAPI,
		"guardian": &c.Providers.Guardian,
		"nytimes":  &c.Providers.NYTimes,
	}
	for id, names := range envKeys {
		dst := targets[id]
		if dst.APIKey != "" && !override {
			continue
		}
		for _, name := range names {
			if v := lookup(name); v != "" {
				dst.APIKey = v
			}
		}
	}
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// GetConfiguredProviders returns the ids of providers with usable keys
func (c *Config) GetConfiguredProviders() []string {
	var ids []string
	if provider.IsConfigured(c.Providers.NewsAPI.APIKey) {
		ids = append(ids, "newsapi")
	}
	if provider.IsConfigured(c.Providers.Guardian.APIKey) {
		ids = append(ids, "guardian")
	}
	if provider.IsConfigured(c.Providers.NYTimes.APIKey) {
		ids = append(ids, "nytimes")
	}
	return ids
}

// Registry builds the provider registry from the configured settings
func (c *Config) Registry(opts ...provider.Option) *provider.Registry {
	return provider.Defaults(c.Providers.NewsAPI, c.Providers.Guardian, c.Providers.NYTimes, opts...)
}

// FetchTimeout returns the per-provider request deadline
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// CacheTTL returns the response cache lifetime
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Fetch.CacheTTLSecs) * time.Second
}

// Debounce returns the search-as-you-type delay
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.UI.DebounceMs) * time.Millisecond
}

// DatabasePath returns the configured database path or the default
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return DBPath()
}
