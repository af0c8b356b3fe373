// Package config loads the application configuration of the toolchat
// command from an optional YAML file plus environment overrides and turns it
// into the model gateway, thread store, tool options and logger the engine
// is wired with.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/toolchat/checkpoint"
	"github.com/hupe1980/toolchat/checkpoint/sqlite"
	"github.com/hupe1980/toolchat/checkpoint/yamlfile"
	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/engine"
	"github.com/hupe1980/toolchat/logging"
	"github.com/hupe1980/toolchat/model"
	"github.com/hupe1980/toolchat/model/anthropic"
	"github.com/hupe1980/toolchat/model/openai"
	"github.com/hupe1980/toolchat/tool/builtin"
)

// Supported model providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported thread store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreYAML   = "yaml"
)

// GeminiBaseURL is the OpenAI compatible endpoint of the Gemini API.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Config is the root of the application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Engine   EngineConfig   `yaml:"engine"`
	Store    StoreConfig    `yaml:"store"`
	Tools    ToolsConfig    `yaml:"tools"`
	Log      LogConfig      `yaml:"log"`
}

// ProviderConfig selects and configures the model gateway.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// EngineConfig mirrors engine.Config.
type EngineConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	ParallelTools bool   `yaml:"parallel_tools"`
	MaxParallel   int    `yaml:"max_parallel"`
	Stream        bool   `yaml:"stream"`
	SystemPrompt  string `yaml:"system_prompt"`
}

// StoreConfig selects the thread store. Path is the database file for
// sqlite and the directory for yaml.
type StoreConfig struct {
	Kind            string `yaml:"kind"`
	Path            string `yaml:"path"`
	KeepCheckpoints int    `yaml:"keep_checkpoints"`
}

// ToolsConfig carries the credentials of the builtin tools.
type ToolsConfig struct {
	SearchAPIKey   string        `yaml:"search_api_key"`
	SearchEngineID string        `yaml:"search_engine_id"`
	StockAPIKey    string        `yaml:"stock_api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Name:        ProviderGemini,
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Engine: EngineConfig{
			MaxIterations: engine.DefaultMaxIterations,
			Stream:        true,
		},
		Store: StoreConfig{
			Kind: StoreSQLite,
			Path: "chatbot.db",
		},
		Tools: ToolsConfig{
			StockAPIKey: "demo",
			Timeout:     10 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: logging.FormatConsole,
		},
	}
}

// Load reads path (optional) on top of Default, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := Decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode merges a YAML document into cfg. Unknown keys are rejected; an
// empty document leaves cfg unchanged.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables looked up through
// getenv. Provider API keys fall back to the provider's conventional
// variable when not set explicitly.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("TOOLCHAT_PROVIDER"); v != "" && !strings.EqualFold(v, c.Provider.Name) {
		// Switching providers drops the model and endpoint of the old one.
		c.Provider.Name = strings.ToLower(v)
		c.Provider.Model = ""
		c.Provider.BaseURL = ""
	}
	setString(&c.Provider.Model, "TOOLCHAT_MODEL")
	setString(&c.Provider.BaseURL, "TOOLCHAT_BASE_URL")
	setString(&c.Provider.APIKey, "TOOLCHAT_API_KEY")
	if c.Provider.APIKey == "" {
		if key := providerKeyVar(c.Provider.Name); key != "" {
			c.Provider.APIKey = getenv(key)
		}
	}

	if v := getenv("TOOLCHAT_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TOOLCHAT_MAX_ITERATIONS: %w", err)
		}
		c.Engine.MaxIterations = n
	}
	if v := getenv("TOOLCHAT_PARALLEL_TOOLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse TOOLCHAT_PARALLEL_TOOLS: %w", err)
		}
		c.Engine.ParallelTools = b
	}
	setString(&c.Engine.SystemPrompt, "TOOLCHAT_SYSTEM_PROMPT")

	setString(&c.Store.Kind, "TOOLCHAT_STORE")
	setString(&c.Store.Path, "TOOLCHAT_STORE_PATH")

	setString(&c.Tools.SearchAPIKey, "GOOGLE_SEARCH_API_KEY")
	setString(&c.Tools.SearchEngineID, "GOOGLE_SEARCH_CX")
	setString(&c.Tools.StockAPIKey, "ALPHAVANTAGE_API_KEY")
	if v := getenv("TOOLCHAT_TOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TOOLCHAT_TOOL_TIMEOUT: %w", err)
		}
		c.Tools.Timeout = d
	}

	setString(&c.Log.Level, "TOOLCHAT_LOG_LEVEL")
	setString(&c.Log.Format, "TOOLCHAT_LOG_FORMAT")
	if getenv("NO_COLOR") != "" {
		c.Log.NoColor = true
	}

	return nil
}

func providerKeyVar(provider string) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Provider.Name {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider.Name)
	}
	if c.Engine.MaxIterations < 0 {
		return fmt.Errorf("config: max_iterations must be >= 0")
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite, StoreYAML:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store %q requires a path", c.Store.Kind)
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	if c.Tools.Timeout < 0 {
		return fmt.Errorf("config: tools timeout must be >= 0")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatText, logging.FormatConsole:
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// NewModel builds the model gateway for the configured provider.
func (p ProviderConfig) NewModel() (model.Model, error) {
	switch p.Name {
	case ProviderGemini, ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			if p.Temperature > 0 {
				o.Temperature = p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxCompletionTokens = p.MaxTokens
			}
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
			if o.BaseURL == "" && p.Name == ProviderGemini {
				o.BaseURL = GeminiBaseURL
			}
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			if p.Temperature > 0 {
				o.Temperature = p.Temperature
			}
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
			o.APIKey = p.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("config: unknown provider %q", p.Name)
	}
}

// OpenStore opens the configured thread store. The returned close function
// releases durable stores and is never nil.
func (s StoreConfig) OpenStore() (core.ThreadStore, func() error, error) {
	noop := func() error { return nil }

	switch s.Kind {
	case StoreMemory:
		return checkpoint.NewInMemoryStore(), noop, nil
	case StoreSQLite:
		store, err := sqlite.Open(s.Path, func(o *sqlite.Options) {
			o.KeepCheckpoints = s.KeepCheckpoints
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case StoreYAML:
		store, err := yamlfile.Open(s.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("config: unknown store kind %q", s.Kind)
	}
}

// BuiltinOptions returns the builtin tool options derived from the config.
func (t ToolsConfig) BuiltinOptions() func(o *builtin.Options) {
	return func(o *builtin.Options) {
		o.SearchAPIKey = t.SearchAPIKey
		o.SearchEngineID = t.SearchEngineID
		if t.StockAPIKey != "" {
			o.StockAPIKey = t.StockAPIKey
		}
		if t.Timeout > 0 {
			o.Timeout = t.Timeout
		}
	}
}

// Config returns the engine configuration.
func (e EngineConfig) Config() engine.Config {
	cfg := engine.DefaultConfig
	cfg.MaxIterations = e.MaxIterations
	cfg.ParallelTools = e.ParallelTools
	cfg.MaxParallel = e.MaxParallel
	cfg.Stream = e.Stream
	cfg.SystemPrompt = e.SystemPrompt
	return cfg
}

// LoggerConfig returns the logging configuration writing to out.
func (l LogConfig) LoggerConfig(out io.Writer) *logging.LoggerConfig {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return &logging.LoggerConfig{
		Level:     level,
		Format:    l.Format,
		Output:    out,
		NoColor:   l.NoColor,
		Component: "toolchat",
	}
}
