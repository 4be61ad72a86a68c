package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	configBaseName = "mcp-guard"
	envPrefix      = "MCP_GUARD"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for mcp-guard.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the binary itself,
// which shares the base name, is never picked up.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No search paths: ReadInConfig returns ConfigFileNotFoundError,
		// which callers treat as "env vars only".
		viper.SetConfigName(configBaseName)
		viper.SetConfigType("yaml")
	}

	// MCP_GUARD_SERVER_HTTP_ADDR overrides server.http_addr
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an mcp-guard config file.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".mcp-guard"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "mcp-guard"))
		}
	} else {
		paths = append(paths, "/etc/mcp-guard")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for mcp-guard.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configBaseName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// envKeys are the scalar keys overridable from the environment.
// Unmarshal only sees env values for keys viper knows about.
var envKeys = []string{
	"server.http_addr",
	"server.log_level",
	"server.protected_path",
	// Space-separated list, e.g. MCP_GUARD_SERVER_TRUSTED_PROXIES="10.0.0.0/8 192.0.2.7"
	"server.trusted_proxies",

	"security.enable_auth",
	"security.api_key",
	"security.api_key_hash",
	"security.enable_rate_limit",
	"security.max_requests_per_minute",
	"security.enable_request_logging",
	// Space-separated list, e.g. MCP_GUARD_SECURITY_TRUSTED_ORIGINS="https://a.com https://b.com"
	"security.trusted_origins",

	"rate_limit.cleanup_interval",
	"rate_limit.tool_calls_per_minute",

	"audit.capacity",
	"audit.output",

	"tools.file_root",
	"tools.max_input_length",
	"tools.max_file_bytes",

	"telemetry.enabled",

	"dev_mode",
}

func bindNestedEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, applies dev defaults and validates.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
