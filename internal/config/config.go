package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates all service configuration.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Redis    RedisConfig
	Platform PlatformConfig
	Pipeline PipelineConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI: AIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4.1"),
		},
		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		},
		Platform: PlatformConfig{
			BaseURL: getEnvOrDefault("NESTJS_API_URL", "http://localhost:8080"),
		},
		Pipeline: pipeline,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	host := getEnvOrDefault("HOST", "0.0.0.0")
	port := getEnvOrDefault("PORT", "8001")

	if strings.Contains(port, ":") {
		// Allow passing ":8001" or "127.0.0.1:8001" directly.
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: host + ":" + port}, nil
}

// AIConfig describes the OpenAI-compatible model endpoint. Per-persona
// sampling parameters live on the personas, not here.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// NewChatModel builds a tool-calling chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing OpenAI configuration, set OPENAI_API_KEY and OPENAI_MODEL")
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
	})
}

// RedisConfig describes the optional Redis backend for sessions and UI state.
// When Redis is unreachable the stores run on their in-memory fallback.
type RedisConfig struct {
	URL string
}

// PlatformConfig describes the practice-management backend the tools call.
type PlatformConfig struct {
	BaseURL string
}

// PipelineConfig tunes the chat pipeline and session lifecycle.
type PipelineConfig struct {
	MaxRequestsPerUser int
	SessionTimeout     time.Duration
	ShowToolBanner     bool
	ShowRawToolJSON    bool
}

func loadPipelineConfig() (PipelineConfig, error) {
	maxRequests, err := parseIntEnv("MAX_REQUESTS_PER_USER", 10)
	if err != nil {
		return PipelineConfig{}, err
	}
	if maxRequests < 1 {
		maxRequests = 1
	}

	timeoutMinutes, err := parseIntEnv("SESSION_TIMEOUT_MINUTES", 240)
	if err != nil {
		return PipelineConfig{}, err
	}

	showBanner, err := parseBoolEnv("SHOW_TOOL_BANNER", true)
	if err != nil {
		return PipelineConfig{}, err
	}

	showRawJSON, err := parseBoolEnv("SHOW_RAW_TOOL_JSON", false)
	if err != nil {
		return PipelineConfig{}, err
	}

	return PipelineConfig{
		MaxRequestsPerUser: maxRequests,
		SessionTimeout:     time.Duration(timeoutMinutes) * time.Minute,
		ShowToolBanner:     showBanner,
		ShowRawToolJSON:    showRawJSON,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
