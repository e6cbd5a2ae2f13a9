package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main toolbridge configuration
type Config struct {
	// Server holds gateway server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// AI holds planner provider profiles
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Tools holds external collaborator settings for the built-in tools
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory (transcripts, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds gateway server configuration
type ServerConfig struct {
	Host          string        `json:"host" mapstructure:"host"`
	Port          int           `json:"port" mapstructure:"port"`
	IdleTimeout   time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`     // 0 disables the sweep
	SweepSchedule string        `json:"sweep_schedule" mapstructure:"sweep_schedule"` // cron expression
	ToolTimeout   time.Duration `json:"tool_timeout" mapstructure:"tool_timeout"`
}

// AIConfig holds planner provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents a model provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// ToolsConfig holds per-tool collaborator endpoints and credentials
type ToolsConfig struct {
	GitHub GitHubConfig `json:"github" mapstructure:"github"`
	Wiki   WikiConfig   `json:"wiki" mapstructure:"wiki"`
	News   NewsConfig   `json:"news" mapstructure:"news"`
	Social SocialConfig `json:"social" mapstructure:"social"`
}

// GitHubConfig holds repository lookup settings
type GitHubConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Token   string `json:"token" mapstructure:"token"`
}

// WikiConfig holds article summary lookup settings
type WikiConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// NewsConfig holds news feed search settings
type NewsConfig struct {
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	MaxItems int    `json:"max_items" mapstructure:"max_items"`
}

// SocialConfig holds post publishing settings
type SocialConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Token   string `json:"token" mapstructure:"token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			IdleTimeout:   30 * time.Minute,
			SweepSchedule: "* * * * *",
			ToolTimeout:   30 * time.Second,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		Tools: ToolsConfig{
			GitHub: GitHubConfig{BaseURL: "https://api.github.com"},
			Wiki:   WikiConfig{BaseURL: "https://en.wikipedia.org/api/rest_v1"},
			News:   NewsConfig{BaseURL: "https://news.google.com/rss", MaxItems: 5},
			Social: SocialConfig{},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server idle_timeout cannot be negative")
	}
	if c.Server.ToolTimeout <= 0 {
		return fmt.Errorf("server tool_timeout must be positive")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if profile.Model == "" {
			return fmt.Errorf("AI profile %s: model is required", profile.ID)
		}
		switch profile.Provider {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	if c.Tools.News.MaxItems < 0 {
		return fmt.Errorf("tools.news.max_items cannot be negative")
	}

	return nil
}
