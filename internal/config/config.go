// Package config provides configuration loading and discovery for
// stagebake.
//
// Configuration is loaded from multiple sources with the following
// priority (highest to lowest):
//  1. CLI flags
//  2. Environment variables (STAGEBAKE_* prefix)
//  3. Config file (closest .stagebake.toml)
//  4. Built-in defaults
//
// Config file discovery is a cascading walk: starting from the target
// directory, walk up the filesystem until a config file is found. The
// closest config wins (no merging).
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigFileNames defines the config file names to search for, in
// priority order.
var ConfigFileNames = []string{".stagebake.toml", "stagebake.toml"}

// EnvPrefix is the prefix for environment variables.
const EnvPrefix = "STAGEBAKE_"

// Config represents the complete stagebake configuration.
type Config struct {
	// Discovery configures how the target tree is walked for build files.
	Discovery DiscoveryConfig `koanf:"discovery"`

	// Output configures the bake-file emission destination and format.
	Output OutputConfig `koanf:"output"`

	// Registry configures the optional external-reference verification.
	Registry RegistryConfig `koanf:"registry"`

	// ConfigFile is the path to the config file that was loaded (if
	// any). This is metadata, not loaded from config.
	ConfigFile string `koanf:"-"`
}

// DiscoveryConfig configures the directory walk that finds build files.
type DiscoveryConfig struct {
	// ExcludePatterns are doublestar glob patterns (relative to the
	// walk root) to skip, e.g. "vendor/**", "test/**".
	ExcludePatterns []string `koanf:"exclude-patterns"`

	// MaxFileSize caps how large a file the walk will read before
	// sniffing its content. Zero means no cap.
	MaxFileSize int64 `koanf:"max-file-size"`
}

// OutputConfig configures bake-file emission.
type OutputConfig struct {
	// Format is reserved for future non-HCL emitters; "hcl" is the only
	// value understood today.
	// Default: "hcl"
	Format string `koanf:"format"`

	// Path specifies where to write the bake file: "stdout", "stderr",
	// or a file path.
	// Default: "stdout"
	Path string `koanf:"path"`
}

// RegistryConfig configures the optional --verify-external check.
type RegistryConfig struct {
	// Verify enables HEAD-checking every external reference against its
	// registry. Off by default: a correct generate run never needs
	// network access.
	Verify bool `koanf:"verify"`

	// Platform is a platform string such as "linux/amd64". It is loaded
	// from file, env and --platform, but generate does not pass it to the
	// verifier: every check addresses the registry's default manifest.
	Platform string `koanf:"platform"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			ExcludePatterns: nil,
			MaxFileSize:     0,
		},
		Output: OutputConfig{
			Format: "hcl",
			Path:   "stdout",
		},
		Registry: RegistryConfig{
			Verify:   false,
			Platform: "",
		},
	}
}

// Load loads configuration for a target directory.
// It discovers the closest config file, loads it, and applies
// environment variable and then (by the caller, afterward) flag
// overrides.
func Load(targetDir string) (*Config, error) {
	return loadWithConfigPath(Discover(targetDir))
}

// LoadFromFile loads configuration from a specific config file path.
// Unlike Load, it does not perform config discovery.
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithConfigPath(configPath)
}

// loadWithConfigPath is an internal helper that loads config with an
// optional config file path.
func loadWithConfigPath(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults.
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, err
	}

	// 2. Load config file if provided.
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load environment variables (STAGEBAKE_* prefix).
	// STAGEBAKE_REGISTRY_VERIFY -> registry.verify
	envOpt := env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(key), value
		},
	}
	if err := k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, err
	}

	// 4. Unmarshal into config struct.
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.ConfigFile = configPath
	return cfg, nil
}

// knownHyphenatedKeys maps dot-separated patterns to their hyphenated
// equivalents. Add new entries here when adding fields with hyphenated
// names.
var knownHyphenatedKeys = map[string]string{
	"exclude.patterns": "exclude-patterns",
	"max.file.size":    "max-file-size",
}

// envKeyTransform converts environment variable names to config keys.
// STAGEBAKE_REGISTRY_VERIFY -> registry.verify
// STAGEBAKE_DISCOVERY_MAX_FILE_SIZE -> discovery.max-file-size
func envKeyTransform(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", ".")
	for pattern, replacement := range knownHyphenatedKeys {
		s = strings.ReplaceAll(s, pattern, replacement)
	}
	return s
}

// Discover finds the closest config file for a target directory.
// It walks up the directory tree from targetDir, checking for config
// files at each level. Returns empty string if no config file is
// found.
func Discover(targetDir string) string {
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return ""
	}

	dir := absPath
	if info, statErr := os.Stat(absPath); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(absPath)
	}

	for {
		for _, name := range ConfigFileNames {
			configPath := filepath.Join(dir, name)
			if fileExists(configPath) {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
