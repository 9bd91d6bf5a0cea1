// Package config loads the typed settings this feed server runs with: YAML
// on disk, overridable by environment variables, matching the teacher's own
// load-then-apply-defaults-then-validate shape in its config package.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/metacache"
	"gopkg.in/yaml.v3"
)

// Config is the typed, validated settings this feed server runs with,
// matching SPEC_FULL.md §6.
type Config struct {
	// Root is the repository root directory holding the package tree. It is
	// not a YAML key (it is supplied via the --root CLI flag) but
	// lives on Config since every component needs it.
	Root string `yaml:"-"`

	EnableDelisting                    bool   `yaml:"enableDelisting"`
	EnableFrameworkFiltering           bool   `yaml:"enableFrameworkFiltering"`
	IgnoreSymbolsPackages              bool   `yaml:"ignoreSymbolsPackages"`
	AllowOverrideExistingPackageOnPush bool   `yaml:"allowOverrideExistingPackageOnPush"`
	EnableFileSystemMonitoring         bool   `yaml:"enableFileSystemMonitoring"`
	CacheFileName                      string `yaml:"cacheFileName"`
	InitialCacheRebuildAfterSeconds    int    `yaml:"initialCacheRebuildAfterSeconds"`
	CacheRebuildFrequencyInMinutes     int    `yaml:"cacheRebuildFrequencyInMinutes"`
	HashAlgorithm                      string `yaml:"hashAlgorithm"`
	HooksEnabled                       bool   `yaml:"hooksEnabled"`
	ListenAddress                      string `yaml:"listenAddress"`
}

// envPrefix namespaces the environment-variable overrides this package reads
// (e.g. PKGFEED_ENABLE_DELISTING=true).
const envPrefix = "PKGFEED_"

// DefaultConfig returns a Config populated with the defaults from §6.
func DefaultConfig() *Config {
	cacheFileName := "pkgfeed.cache.bin"
	if host, err := os.Hostname(); err == nil && host != "" {
		cacheFileName = host + ".cache.bin"
	}
	return &Config{
		EnableDelisting:                    false,
		EnableFrameworkFiltering:           false,
		IgnoreSymbolsPackages:              false,
		AllowOverrideExistingPackageOnPush: true,
		EnableFileSystemMonitoring:         true,
		CacheFileName:                      cacheFileName,
		InitialCacheRebuildAfterSeconds:    15,
		CacheRebuildFrequencyInMinutes:     60,
		HashAlgorithm:                      "sha512",
		HooksEnabled:                       false,
		ListenAddress:                      ":8080",
	}
}

// Load reads a YAML config file (if path is non-empty; a path that does not
// exist is an error), applies defaults for unset fields, overlays
// environment variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config: %s: %w", path, pkgerrors.ErrInvalidConfigPath)
			}
			return nil, pkgerrors.Wrapf(err, "config: open %s", path)
		}
		defer func() { _ = f.Close() }()

		if err := loadFromReader(f, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.WithKind(pkgerrors.KindInvalidConfiguration, "config: validation", err)
	}
	return cfg, nil
}

func loadFromReader(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return pkgerrors.Wrap(err, "config: read")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInvalidConfiguration, "config: parse YAML", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnvBool("ENABLE_DELISTING"); ok {
		cfg.EnableDelisting = v
	}
	if v, ok := lookupEnvBool("ENABLE_FRAMEWORK_FILTERING"); ok {
		cfg.EnableFrameworkFiltering = v
	}
	if v, ok := lookupEnvBool("IGNORE_SYMBOLS_PACKAGES"); ok {
		cfg.IgnoreSymbolsPackages = v
	}
	if v, ok := lookupEnvBool("ALLOW_OVERRIDE_EXISTING_PACKAGE_ON_PUSH"); ok {
		cfg.AllowOverrideExistingPackageOnPush = v
	}
	if v, ok := lookupEnvBool("ENABLE_FILE_SYSTEM_MONITORING"); ok {
		cfg.EnableFileSystemMonitoring = v
	}
	if v, ok := os.LookupEnv(envPrefix + "CACHE_FILE_NAME"); ok {
		cfg.CacheFileName = v
	}
	if v, ok := lookupEnvInt("INITIAL_CACHE_REBUILD_AFTER_SECONDS"); ok {
		cfg.InitialCacheRebuildAfterSeconds = v
	}
	if v, ok := lookupEnvInt("CACHE_REBUILD_FREQUENCY_IN_MINUTES"); ok {
		cfg.CacheRebuildFrequencyInMinutes = v
	}
	if v, ok := os.LookupEnv(envPrefix + "HASH_ALGORITHM"); ok {
		cfg.HashAlgorithm = v
	}
	if v, ok := lookupEnvBool("HOOKS_ENABLED"); ok {
		cfg.HooksEnabled = v
	}
	if v, ok := os.LookupEnv(envPrefix + "LISTEN_ADDRESS"); ok {
		cfg.ListenAddress = v
	}
}

func lookupEnvBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupEnvInt(key string) (int, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the constraints § 6 places on each setting.
func (c *Config) Validate() error {
	if c.InitialCacheRebuildAfterSeconds <= 0 {
		return fmt.Errorf("initialCacheRebuildAfterSeconds must be > 0, got %d", c.InitialCacheRebuildAfterSeconds)
	}
	if c.CacheRebuildFrequencyInMinutes <= 0 {
		return fmt.Errorf("cacheRebuildFrequencyInMinutes must be > 0, got %d", c.CacheRebuildFrequencyInMinutes)
	}
	algo := strings.ToLower(c.HashAlgorithm)
	if algo != "sha256" && algo != "sha512" {
		return fmt.Errorf("hashAlgorithm must be sha256 or sha512, got %q", c.HashAlgorithm)
	}
	if _, err := metacache.ValidateFileName(c.CacheFileName); err != nil {
		return err
	}
	return nil
}
