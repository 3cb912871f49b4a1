package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime's top-level configuration. Load builds one by
// layering, in order: built-in defaults, an optional YAML file, then
// environment variable overrides — the same three-tier precedence the
// teacher's opencode.json/opencode.jsonc loader used, adapted here from
// JSONC to YAML per this repository's ambient configuration stack.
type Config struct {
	// Listen is the address internal/rpcapi's HTTP/SSE server binds.
	Listen string `yaml:"listen"`

	// DataDir holds the on-disk event store and per-session storage
	// (todo lists, workspace metadata). Defaults to the XDG data dir.
	DataDir string `yaml:"dataDir"`

	// EventStoreBackend selects "memory" or "sqlite" (§4.3).
	EventStoreBackend string `yaml:"eventStoreBackend"`

	// MaxConcurrentSessions bounds the registry's active-session set
	// (§4.4, session-slot capacity).
	MaxConcurrentSessions int `yaml:"maxConcurrentSessions"`

	// IdleSuspendAfter is how long a session with zero subscribers
	// waits before the scheduler suspends it (§4.4, §5).
	IdleSuspendAfter time.Duration `yaml:"idleSuspendAfter"`

	// ToolTimeout is the default per-call tool execution timeout
	// (§4.5); a tool call may still request its own shorter timeout.
	ToolTimeout time.Duration `yaml:"toolTimeout"`

	// DefaultModel names the model a new session is created with when
	// the caller doesn't specify one.
	DefaultModel string `yaml:"defaultModel"`

	// WorkspaceRoot is the filesystem root internal/workspace.Local
	// resolves relative tool paths against.
	WorkspaceRoot string `yaml:"workspaceRoot"`

	// LogLevel is one of zerolog's level names ("debug", "info", "warn",
	// "error"); see internal/logging.
	LogLevel string `yaml:"logLevel"`

	// McpServers are the MCP servers made available to every session's
	// workspace, keyed by server name.
	McpServers map[string]McpServerConfig `yaml:"mcpServers"`
}

// McpServerConfig describes one MCP server connection.
type McpServerConfig struct {
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() Config {
	paths := GetPaths()
	return Config{
		Listen:                "127.0.0.1:7890",
		DataDir:               paths.Data,
		EventStoreBackend:     "sqlite",
		MaxConcurrentSessions: 64,
		IdleSuspendAfter:      30 * time.Minute,
		ToolTimeout:           5 * time.Minute,
		DefaultModel:          "claude-sonnet-4-5",
		WorkspaceRoot:         ".",
		LogLevel:              "info",
	}
}

// Load builds a Config by layering built-in defaults, the YAML file at
// path (skipped if path is "" or the file doesn't exist), then
// environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides applies AGENTRT_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTRT_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("AGENTRT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AGENTRT_EVENT_STORE_BACKEND"); v != "" {
		cfg.EventStoreBackend = v
	}
	if v := os.Getenv("AGENTRT_MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentSessions = n
		}
	}
	if v := os.Getenv("AGENTRT_IDLE_SUSPEND_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IdleSuspendAfter = d
		}
	}
	if v := os.Getenv("AGENTRT_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ToolTimeout = d
		}
	}
	if v := os.Getenv("AGENTRT_DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("AGENTRT_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("AGENTRT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: creating %s: %w", dir, err)
	}
	return os.WriteFile(path, data, 0644)
}
