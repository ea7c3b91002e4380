package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix every environment override must carry, e.g.
// BIGBROTHER_DISCORD_TOKEN for discord_token.
const EnvPrefix = "BIGBROTHER_"

// ConfigPathEnvVar names the environment variable that, if set,
// overrides every entry in DefaultConfigPaths.
const ConfigPathEnvVar = "BIGBROTHER_CONFIG_PATH"

// DefaultConfigPaths lists the locations Load searches, in order, when
// ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"./bigbrother.toml",
	"/etc/bigbrother/bigbrother.toml",
}

// defaultConfigTemplate is written to disk on first run so an operator
// has a starting point instead of an opaque failure, grounded on
// original_source/src/settings.rs's create_default_config_file.
const defaultConfigTemplate = `# BigBrother configuration.
# discord_token is required; every other field has a working default.

discord_token = ""
data_path = "data"

[network]
timeout = "120s"
download_concurrency_limit = 10

[catchup]
messages_per_request = 100
write_batch_size = 1000
channel_concurrency = 4

[metadata]
member_fetch_limit = 1000

[storage]
autoflush_interval_ms = 60000

[logging]
level = "info"
format = "json"
caller = false

[ops]
listen_addr = ":9090"
`

// Load builds a Config by layering struct defaults, an optional TOML
// file, then BIGBROTHER_-prefixed environment variables, in that order
// of increasing precedence, following internal/config/koanf.go's
// Defaults→File→Env pattern.
//
// If no config file is found at any candidate path, Load writes
// defaultConfigTemplate to the first candidate path and returns an
// error asking the operator to fill in discord_token and restart,
// mirroring settings.rs's first-run UX.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	path, found := findConfigFile()
	if !found {
		created := writeDefaultConfigFile()
		if created != "" {
			return nil, fmt.Errorf("no config file found; wrote a starting point to %s — set discord_token and restart", created)
		}
		return nil, errors.New("no config file found and none could be written; set BIGBROTHER_CONFIG_PATH or create ./bigbrother.toml")
	}

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flatEnvKeys maps the handful of top-level keys whose own name
// contains an underscore to their koanf path, the same way
// envTransformFunc in the teacher's koanf.go special-cases legacy flat
// names before falling back to underscore-as-nesting.
var flatEnvKeys = map[string]string{
	"discord_token": "discord_token",
	"data_path":     "data_path",
}

// envTransformFunc turns BIGBROTHER_NETWORK_TIMEOUT into network.timeout,
// the koanf path the file layer already uses, special-casing the
// top-level keys in flatEnvKeys so their underscore isn't mistaken for
// nesting.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	if path, ok := flatEnvKeys[key]; ok {
		return path
	}
	return strings.Replace(key, "_", ".", 1)
}

// findConfigFile resolves ConfigPathEnvVar first, then the first
// existing entry in DefaultConfigPaths.
func findConfigFile() (string, bool) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
		return "", false
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// writeDefaultConfigFile writes defaultConfigTemplate to the first
// writable candidate path, returning the path written or "" on failure.
func writeDefaultConfigFile() string {
	target := DefaultConfigPaths[0]
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		target = p
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ""
		}
	}
	if err := os.WriteFile(target, []byte(defaultConfigTemplate), 0o644); err != nil {
		return ""
	}
	return target
}
