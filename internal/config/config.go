// Package config provides configuration types for mcp-guard.
//
// Configuration is file-based (mcp-guard.yaml) with environment overrides
// (MCP_GUARD_SECTION_KEY). It is read once at startup and never mutated
// afterwards; a configuration that fails Validate stops the process before
// it accepts traffic.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for mcp-guard.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Security configures the admission gate.
	Security SecurityConfig `yaml:"security" mapstructure:"security"`

	// RateLimit configures limiter housekeeping and the per-tool throttle.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Audit configures the security event log.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Tools configures the MCP tool handlers.
	Tools ToolsConfig `yaml:"tools" mapstructure:"tools"`

	// Telemetry configures tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development features (debug logging, audit to stdout).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ProtectedPath is the path prefix of the MCP endpoint. Auth and origin
	// checks apply only below it. Defaults to "/mcp".
	ProtectedPath string `yaml:"protected_path" mapstructure:"protected_path" validate:"required,startswith=/"`

	// TrustedProxies lists the peers (IP addresses or CIDR ranges) allowed to
	// set X-Forwarded-For and X-Real-IP. Empty means the client identifier is
	// always the TCP peer address.
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies" validate:"omitempty,dive,ip|cidr"`
}

// SecurityConfig configures the admission gate.
type SecurityConfig struct {
	// EnableAuth requires a bearer token on the protected path.
	EnableAuth bool `yaml:"enable_auth" mapstructure:"enable_auth"`

	// APIKey is the plaintext bearer secret.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// APIKeyHash is an alternative to APIKey: "$argon2id$..." (see `mcp-guard hash-key`)
	// or "sha256:<hex>". Takes precedence over APIKey when both are set.
	APIKeyHash string `yaml:"api_key_hash" mapstructure:"api_key_hash" validate:"omitempty,secret_hash"`

	// EnableRateLimit turns on per-client fixed-window limiting. Default: true.
	EnableRateLimit bool `yaml:"enable_rate_limit" mapstructure:"enable_rate_limit"`

	// MaxRequestsPerMinute is the per-client budget. Default: 100.
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute" mapstructure:"max_requests_per_minute" validate:"min=1"`

	// EnableRequestLogging logs every request that reaches the gate. Default: true.
	EnableRequestLogging bool `yaml:"enable_request_logging" mapstructure:"enable_request_logging"`

	// TrustedOrigins lists origins allowed on the protected path.
	// Empty means every origin passes.
	TrustedOrigins []string `yaml:"trusted_origins" mapstructure:"trusted_origins" validate:"omitempty,dive,url"`
}

// RateLimitConfig configures rate limiter housekeeping and tool throttling.
type RateLimitConfig struct {
	// CleanupInterval is how often expired windows are swept (e.g., "1m").
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"duration"`

	// ToolCallsPerMinute caps tools/call per tool name. 0 disables the throttle.
	ToolCallsPerMinute int `yaml:"tool_calls_per_minute" mapstructure:"tool_calls_per_minute" validate:"min=0"`
}

// AuditConfig configures the security event log.
type AuditConfig struct {
	// Capacity is the ring buffer size. Default: 1000.
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"min=1,max=1000000"`

	// Output forwards each event as a JSON line: "none", "stdout" or
	// "file://<absolute-path>". Default: "none".
	Output string `yaml:"output" mapstructure:"output" validate:"audit_output"`
}

// ToolsConfig configures the MCP tool handlers.
type ToolsConfig struct {
	// FileRoot is the directory read_file resolves paths against. Default: ".".
	FileRoot string `yaml:"file_root" mapstructure:"file_root" validate:"required"`

	// MaxInputLength caps free-form text arguments. Default: 1000.
	MaxInputLength int `yaml:"max_input_length" mapstructure:"max_input_length" validate:"min=1"`

	// MaxFileBytes caps read_file results. Default: 1 MiB.
	MaxFileBytes int64 `yaml:"max_file_bytes" mapstructure:"max_file_bytes" validate:"min=1"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	// Enabled exports gate spans to stdout.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// CleanupIntervalDuration returns the parsed cleanup interval, or one minute if
// it does not parse.
func (c *RateLimitConfig) CleanupIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// SetDevDefaults applies development-mode defaults before validation.
// It never supplies an auth secret: enable_auth without api_key or
// api_key_hash fails Validate in every mode.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	if c.Audit.Output == "" || c.Audit.Output == "none" {
		c.Audit.Output = "stdout"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only. Network access must be configured explicitly.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ProtectedPath == "" {
		c.Server.ProtectedPath = "/mcp"
	}

	// viper.IsSet distinguishes "not set" (zero value) from "explicitly false".
	if !viper.IsSet("security.enable_rate_limit") {
		c.Security.EnableRateLimit = true
	}
	if !viper.IsSet("security.enable_request_logging") {
		c.Security.EnableRequestLogging = true
	}
	if c.Security.MaxRequestsPerMinute == 0 {
		c.Security.MaxRequestsPerMinute = 100
	}

	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "1m"
	}
	if !viper.IsSet("rate_limit.tool_calls_per_minute") && c.RateLimit.ToolCallsPerMinute == 0 {
		c.RateLimit.ToolCallsPerMinute = 60
	}

	if c.Audit.Capacity == 0 {
		c.Audit.Capacity = 1000
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "none"
	}

	if c.Tools.FileRoot == "" {
		c.Tools.FileRoot = "."
	}
	if c.Tools.MaxInputLength == 0 {
		c.Tools.MaxInputLength = 1000
	}
	if c.Tools.MaxFileBytes == 0 {
		c.Tools.MaxFileBytes = 1 << 20
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.Security.APIKey != "" {
		c.Security.APIKey = "********"
	}
	if c.Security.APIKeyHash != "" {
		c.Security.APIKeyHash = "********"
	}
	c.Security.TrustedOrigins = append([]string(nil), c.Security.TrustedOrigins...)
	c.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	return c
}
