package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "CALLBRIDGE_CONFIG"

// DefaultConfigFile is used when no path is given and it exists.
const DefaultConfigFile = "config.yaml"

// Config is the complete application configuration
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	MCP           MCPConfig          `yaml:"mcp"`
	CRM           CRMConfig          `yaml:"crm"`
	Security      SecurityConfig     `yaml:"security"`
	Storage       StorageConfig      `yaml:"storage"`
	Notifications NotificationConfig `yaml:"notifications"`
	Assignment    AssignmentConfig   `yaml:"assignment"`
	Log           LogConfig          `yaml:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port" validate:"min=1,max=65535"`
	ServiceName         string `yaml:"service_name" validate:"required"`
	ReadTimeoutSecs     int    `yaml:"read_timeout_secs" validate:"min=1"`
	WriteTimeoutSecs    int    `yaml:"write_timeout_secs" validate:"min=1"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs" validate:"min=1"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MCPConfig configures the MCP tool server and its HTTP transports
type MCPConfig struct {
	Name             string `yaml:"name" validate:"required"`
	Version          string `yaml:"version" validate:"required"`
	EndpointPath     string `yaml:"endpoint_path" validate:"startswith=/"`
	SSEPath          string `yaml:"sse_path" validate:"startswith=/"`
	MessagePath      string `yaml:"message_path" validate:"startswith=/"`
	BaseURL          string `yaml:"base_url" validate:"omitempty,url"`
	HeartbeatSecs    int    `yaml:"heartbeat_secs" validate:"min=0"`
	EnableStreamable bool   `yaml:"enable_streamable"`
	EnableSSE        bool   `yaml:"enable_sse"`
}

// CRMConfig configures the Follow Up Boss client
type CRMConfig struct {
	APIKey            string   `yaml:"api_key"`
	BaseURL           string   `yaml:"base_url" validate:"required,url"`
	TimeoutSecs       int      `yaml:"timeout_secs" validate:"min=1"`
	RequestsPerSecond float64  `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int      `yaml:"burst" validate:"min=1"`
	EventType         string   `yaml:"event_type" validate:"required"`
	EventSource       string   `yaml:"event_source" validate:"required"`
	PersonSource      string   `yaml:"person_source" validate:"required"`
	Tags              []string `yaml:"tags"`
}

// SecurityConfig configures the threat policy and the audit trail
type SecurityConfig struct {
	PolicyPath string      `yaml:"policy_path"`
	Audit      AuditConfig `yaml:"audit"`
}

// AuditConfig configures the JSON audit log; an empty path disables it
type AuditConfig struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level" validate:"auditlevel"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
	Compress   bool   `yaml:"compress"`
}

// StorageConfig configures the SQLite ledger; an empty path disables it
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// NotificationConfig configures Discord notifications
type NotificationConfig struct {
	DiscordWebhookURL  string `yaml:"discord_webhook_url" validate:"omitempty,url"`
	SecurityWebhookURL string `yaml:"security_webhook_url" validate:"omitempty,url"`
	Username           string `yaml:"username"`
	NotifyOnLead       bool   `yaml:"notify_on_lead"`
	AlertsPerWindow    int    `yaml:"alerts_per_window" validate:"min=1"`
	AlertWindowMins    int    `yaml:"alert_window_mins" validate:"min=1"`
}

// AssignmentConfig routes new leads to agents by property state
type AssignmentConfig struct {
	DefaultAgent string            `yaml:"default_agent"`
	ByState      map[string]string `yaml:"by_state"`
}

// LogConfig configures the operational logger
type LogConfig struct {
	Level      string `yaml:"level" validate:"loglevel"`
	Format     string `yaml:"format" validate:"logformat"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
	Compress   bool   `yaml:"compress"`
	Stderr     bool   `yaml:"stderr"`
}

// NewDefaultConfig returns the configuration used when no file is present
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8000,
			ServiceName:         "callbridge",
			ReadTimeoutSecs:     15,
			WriteTimeoutSecs:    60,
			ShutdownTimeoutSecs: 10,
		},
		MCP: MCPConfig{
			Name:             "followup-boss-mcp",
			Version:          "1.0.0",
			EndpointPath:     "/mcp",
			SSEPath:          "/sse",
			MessagePath:      "/message",
			HeartbeatSecs:    30,
			EnableStreamable: true,
			EnableSSE:        true,
		},
		CRM: CRMConfig{
			BaseURL:           "https://api.followupboss.com/v1",
			TimeoutSecs:       30,
			RequestsPerSecond: 5,
			Burst:             10,
			EventType:         "call",
			EventSource:       "ElevenLabs",
			PersonSource:      "ElevenLabs AI Call",
		},
		Security: SecurityConfig{
			Audit: AuditConfig{
				Level:      "standard",
				MaxSizeMB:  100,
				MaxBackups: 10,
				MaxAgeDays: 90,
			},
		},
		Storage: StorageConfig{
			SQLitePath: "data/callbridge.db",
		},
		Notifications: NotificationConfig{
			Username:        "CallBridge",
			NotifyOnLead:    true,
			AlertsPerWindow: 5,
			AlertWindowMins: 10,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load resolves the config path, reads it over the defaults, applies
// environment overrides and validates the result. A .env file in the working
// directory is loaded first when present.
func Load(providedPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := NewDefaultConfig()

	path := ResolvePath(providedPath)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	ApplyEnv(cfg, os.Getenv)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath picks the config file: the provided path, then
// CALLBRIDGE_CONFIG, then ./config.yaml if it exists. Empty means defaults only.
func ResolvePath(providedPath string) string {
	if providedPath != "" {
		return providedPath
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// ApplyEnv overlays environment variables on cfg. getenv is injectable for tests.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString("FOLLOWUP_BOSS_API_KEY", &cfg.CRM.APIKey)
	setString("FOLLOWUP_BOSS_BASE_URL", &cfg.CRM.BaseURL)
	setString("HOST", &cfg.Server.Host)
	setString("DISCORD_WEBHOOK_URL", &cfg.Notifications.DiscordWebhookURL)
	setString("DISCORD_SECURITY_WEBHOOK_URL", &cfg.Notifications.SecurityWebhookURL)
	setString("CALLBRIDGE_DB_PATH", &cfg.Storage.SQLitePath)
	setString("CALLBRIDGE_POLICY_PATH", &cfg.Security.PolicyPath)
	setString("CALLBRIDGE_AUDIT_PATH", &cfg.Security.Audit.Path)
	setString("MCP_BASE_URL", &cfg.MCP.BaseURL)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
