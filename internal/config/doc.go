// Package config provides configuration loading and XDG path management
// for the agent session runtime.
//
// # Configuration Loading
//
// Load implements a three-tier precedence: built-in defaults, an optional
// YAML config file, then environment variable overrides. Later tiers win:
//
//  1. Default() — sensible defaults for every field
//  2. The YAML file at the path passed to Load (skipped entirely if the
//     path is empty or the file doesn't exist)
//  3. AGENTRT_* environment variables
//
// # Format
//
// Configuration files are plain YAML, parsed with gopkg.in/yaml.v3:
//
//	listen: 127.0.0.1:7890
//	dataDir: /var/lib/agentrt
//	eventStoreBackend: sqlite
//	maxConcurrentSessions: 128
//	idleSuspendAfter: 30m
//	toolTimeout: 5m
//	defaultModel: claude-sonnet-4-5
//	workspaceRoot: /srv/workspace
//	logLevel: info
//	mcpServers:
//	  search:
//	    transport: stdio
//	    command: mcp-search
//
// # Environment Variable Overrides
//
//   - AGENTRT_LISTEN
//   - AGENTRT_DATA_DIR
//   - AGENTRT_EVENT_STORE_BACKEND
//   - AGENTRT_MAX_CONCURRENT_SESSIONS
//   - AGENTRT_IDLE_SUSPEND_AFTER
//   - AGENTRT_TOOL_TIMEOUT
//   - AGENTRT_DEFAULT_MODEL
//   - AGENTRT_WORKSPACE_ROOT
//   - AGENTRT_LOG_LEVEL
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/agentrt (XDG_DATA_HOME)
//   - Config: ~/.config/agentrt (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/agentrt (XDG_CACHE_HOME)
//   - State: ~/.local/state/agentrt (XDG_STATE_HOME)
//
// On Windows these fall back to APPDATA.
//
// # Usage Example
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := config.Load(config.GlobalConfigPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
