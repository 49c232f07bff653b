package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// BackendConfig describes one language-generation backend a speaker or tool can use.
type BackendConfig struct {
	Name           string `json:"name"`
	Provider       string `json:"provider"` // openai | ollama | anthropic | gemini | local
	Model          string `json:"model"`
	URL            string `json:"url,omitempty"`
	APIKeyEnv      string `json:"api_key_env,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// APIKey resolves the backend credential from the environment.
func (b BackendConfig) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

type ScraperConfig struct {
	UserAgent       string `json:"user_agent"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	MaxPageMB       int    `json:"max_page_mb"`
	MaxChars        int    `json:"max_chars"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes"`
	CacheSize       int    `json:"cache_size"`
}

type ConversationConfig struct {
	CastFile  string `json:"cast_file"`
	Rounds    int    `json:"rounds"`
	Freshness string `json:"freshness"` // sequential | symmetric
}

type BrochureConfig struct {
	Backend        string `json:"backend"`
	LinkBackend    string `json:"link_backend"`
	MaxPromptChars int    `json:"max_prompt_chars"`
	UniPDFKeyEnv   string `json:"unipdf_key_env"`
}

type SummaryConfig struct {
	Backend string `json:"backend"`
}

type Config struct {
	Server struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Subpath   string `json:"subpath"`
		JWTSecret string `json:"jwtSecret"`
	} `json:"server"`
	Database struct {
		Driver string `json:"driver"` // sqlite | postgres
		DSN    string `json:"dsn"`
	} `json:"database"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Backends     []BackendConfig    `json:"backends"`
	Scraper      ScraperConfig      `json:"scraper"`
	Conversation ConversationConfig `json:"conversation"`
	Summary      SummaryConfig      `json:"summary"`
	Brochure     BrochureConfig     `json:"brochure"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads the config file from disk (singleton). Credentials are
// pulled from the environment, so a .env file next to the binary is loaded
// first and overrides anything already exported.
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		if err := LoadEnv(".env"); err != nil {
			cfgErr = err
			return
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			cfgErr = err
			return
		}
		cfg = &c
	})
	return cfg, cfgErr
}

// LoadEnv loads a dotenv file, overriding existing variables. A missing file is not an error.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}

// Default returns a config with every default applied and the three
// backends of the rugby conversation.
func Default() *Config {
	c := &Config{
		Backends: []BackendConfig{
			{Name: "gpt", Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", MaxTokens: 500},
			{Name: "llama", Provider: "ollama", Model: "llama3.2", URL: "http://localhost:11434/v1"},
			{Name: "claude", Provider: "anthropic", Model: "claude-3-haiku-20240307", APIKeyEnv: "ANTHROPIC_API_KEY", MaxTokens: 500},
			{Name: "gemini", Provider: "gemini", Model: "gemini-2.5-flash", APIKeyEnv: "GEMINI_API_KEY", MaxTokens: 500},
			{Name: "summarizer", Provider: "openai", Model: "gpt-4.1-mini", APIKeyEnv: "OPENAI_API_KEY"},
			{Name: "links", Provider: "openai", Model: "gpt-5-nano", APIKeyEnv: "OPENAI_API_KEY"},
		},
	}
	c.Summary.Backend = "summarizer"
	c.Brochure.Backend = "summarizer"
	c.Brochure.LinkBackend = "links"
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "llmlab.db"
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"
	}
	if c.Scraper.TimeoutSeconds == 0 {
		c.Scraper.TimeoutSeconds = 15
	}
	if c.Scraper.MaxPageMB == 0 {
		c.Scraper.MaxPageMB = 10
	}
	if c.Scraper.MaxChars == 0 {
		c.Scraper.MaxChars = 2000
	}
	if c.Scraper.CacheTTLMinutes == 0 {
		c.Scraper.CacheTTLMinutes = 30
	}
	if c.Scraper.CacheSize == 0 {
		c.Scraper.CacheSize = 256
	}
	if c.Conversation.Rounds == 0 {
		c.Conversation.Rounds = 5
	}
	if c.Conversation.Freshness == "" {
		c.Conversation.Freshness = "sequential"
	}
	if c.Brochure.MaxPromptChars == 0 {
		c.Brochure.MaxPromptChars = 5000
	}
	if c.Brochure.UniPDFKeyEnv == "" {
		c.Brochure.UniPDFKeyEnv = "UNIDOC_LICENSE_API_KEY"
	}
}

// Validate checks the fields the server and CLI cannot run without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Conversation.Freshness {
	case "sequential", "symmetric":
	default:
		return fmt.Errorf("unsupported freshness policy %q", c.Conversation.Freshness)
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" || b.Provider == "" {
			return errors.New("every backend needs a name and a provider")
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return nil
}

// Backend looks up a backend by name.
func (c *Config) Backend(name string) (BackendConfig, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}
