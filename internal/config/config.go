package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        LogConfig         `mapstructure:"log"`
	API        APIConfig         `mapstructure:"api"`
	Auth       AuthConfig        `mapstructure:"auth"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Chat       ChatConfig        `mapstructure:"chat"`
	Weather    WeatherConfig     `mapstructure:"weather"`
	LLM        LLMConfig         `mapstructure:"llm"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// APIConfig points at the conversational message endpoint.
type APIConfig struct {
	// Backend selects the conversation backend: "rest" (default) or "llm".
	Backend string        `mapstructure:"backend"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds the fallback credential used when neither the local store
// nor the cookie carries a token.
type AuthConfig struct {
	FallbackToken string `mapstructure:"fallback_token"`
	UserName      string `mapstructure:"user_name"`
	CookieURL     string `mapstructure:"cookie_url"`
}

type StorageConfig struct {
	// Path of the SQLite file. Empty keeps everything in memory.
	Path string `mapstructure:"path"`
	// HistoryPath is the transcript database of the llm backend.
	HistoryPath string `mapstructure:"history_path"`
}

// ChatConfig tunes the session controller.
type ChatConfig struct {
	ReplyTimeout  time.Duration `mapstructure:"reply_timeout"`
	RevealDelay   time.Duration `mapstructure:"reveal_delay"`
	RevealReplies bool          `mapstructure:"reveal_replies"`
	HandoffDelay  time.Duration `mapstructure:"handoff_delay"`
	AgentName     string        `mapstructure:"agent_name"`
	NearBottomPx  int           `mapstructure:"near_bottom_px"`
}

// WeatherConfig selects the weather provider.
type WeatherConfig struct {
	Provider string        `mapstructure:"provider"` // "static" or "mcp"
	Delay    time.Duration `mapstructure:"delay"`
	Tool     string        `mapstructure:"tool"`
	// Server names the mcp_servers entry used by the mcp provider.
	Server string `mapstructure:"server"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// MCPServerConfig describes one MCP server.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Headers map[string]string `mapstructure:"headers"`
}

// MCPServer returns the configured server called name.
func (c *Config) MCPServer(name string) (MCPServerConfig, bool) {
	for _, s := range c.MCPServers {
		if s.Name == name {
			return s, true
		}
	}
	return MCPServerConfig{}, false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("api.backend", "rest")
	v.SetDefault("api.base_url", "https://ai-driven-travel.onrender.com/api/chatbot")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("storage.path", "ethiochat.db")
	v.SetDefault("storage.history_path", "history.db")
	v.SetDefault("chat.reply_timeout", 45*time.Second)
	v.SetDefault("chat.reveal_delay", 50*time.Millisecond)
	v.SetDefault("chat.reveal_replies", false)
	v.SetDefault("chat.handoff_delay", 2*time.Second)
	v.SetDefault("chat.agent_name", "Abebe")
	v.SetDefault("chat.near_bottom_px", 100)
	v.SetDefault("weather.provider", "static")
	v.SetDefault("weather.delay", time.Second)
	v.SetDefault("weather.tool", "get_weather")
}

// envKeys have no default but must still be readable from ETHIOCHAT_*
// variables; viper only consults the environment for keys it knows.
var envKeys = []string{
	"auth.fallback_token",
	"auth.user_name",
	"auth.cookie_url",
	"weather.server",
	"llm.provider",
	"llm.base_url",
	"llm.api_key",
	"llm.model",
	"llm.system_prompt",
}

// Load loads the configuration from CONFIG_PATH, or config.yaml in the
// working directory. A missing default file is not an error; ETHIOCHAT_*
// environment variables override file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ETHIOCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
