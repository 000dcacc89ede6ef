package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g.
// SUPPLYCHAT_DATASOURCE_DSN for datasource.dsn.
const EnvPrefix = "SUPPLYCHAT"

// LLMConfig selects and tunes the dispatch model.
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"` // "openai", "gemini", "openai-compatible"
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float32       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxIterations int           `mapstructure:"max_iterations"` // tool-calling rounds per turn
}

// DataSourceConfig points at the supply-chain database.
type DataSourceConfig struct {
	Engine  string `mapstructure:"engine"` // "sqlite", "mysql", "snowflake"
	DSN     string `mapstructure:"dsn"`    // file path for sqlite
	MaxRows int    `mapstructure:"max_rows"`
}

// MemoryConfig sizes the per-thread memories.
type MemoryConfig struct {
	SessionWindow int    `mapstructure:"session_window"`
	ChartCapacity int    `mapstructure:"chart_capacity"`
	ChartScope    string `mapstructure:"chart_scope"` // "thread" or "agent"
}

// StoreConfig selects the conversation state backend.
type StoreConfig struct {
	Backend       string        `mapstructure:"backend"` // "memory", "file", "sqlite", "redis"
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"` // empty disables the log file
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config structure
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	DataSource DataSourceConfig `mapstructure:"datasource"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_iterations", 8)

	v.SetDefault("datasource.engine", "sqlite")
	v.SetDefault("datasource.dsn", "supply_chain.db")
	v.SetDefault("datasource.max_rows", 1000)

	v.SetDefault("memory.session_window", 5)
	v.SetDefault("memory.chart_capacity", 3)
	v.SetDefault("memory.chart_scope", "thread")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "conversations.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "supplychat:thread:")
	v.SetDefault("store.ttl", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")

	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from configPath (or supplychat.yaml in the
// working directory and the user config dir when empty), then applies
// SUPPLYCHAT_* environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "supplychat"))
		}
		v.SetConfigName("supplychat")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Provider keys are commonly exported under their vendor names.
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values the rest of the application cannot serve.
func (c *Config) Validate() error {
	var problems []string

	switch c.LLM.Provider {
	case "openai", "gemini", "openai-compatible":
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of openai, gemini, openai-compatible", c.LLM.Provider))
	}
	if c.LLM.Provider == "openai-compatible" && c.LLM.BaseURL == "" {
		problems = append(problems, "llm.base_url is required for openai-compatible providers")
	}
	if c.LLM.MaxIterations <= 0 {
		problems = append(problems, "llm.max_iterations must be positive")
	}

	switch c.DataSource.Engine {
	case "sqlite", "mysql", "snowflake":
	default:
		problems = append(problems, fmt.Sprintf("datasource.engine %q is not one of sqlite, mysql, snowflake", c.DataSource.Engine))
	}
	if c.DataSource.DSN == "" {
		problems = append(problems, "datasource.dsn is required")
	}
	if c.DataSource.MaxRows <= 0 {
		problems = append(problems, "datasource.max_rows must be positive")
	}

	if c.Memory.SessionWindow <= 0 {
		problems = append(problems, "memory.session_window must be positive")
	}
	if c.Memory.ChartCapacity <= 0 {
		problems = append(problems, "memory.chart_capacity must be positive")
	}
	switch c.Memory.ChartScope {
	case "thread", "agent":
	default:
		problems = append(problems, fmt.Sprintf("memory.chart_scope %q is not one of thread, agent", c.Memory.ChartScope))
	}

	switch c.Store.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the "+c.Store.Backend+" backend")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			problems = append(problems, "store.redis_addr is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.backend %q is not one of memory, file, sqlite, redis", c.Store.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
