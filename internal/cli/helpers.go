package cli

import (
	"fmt"
	"os"

	"github.com/glorpus-work/pkgfeed/internal/logger"
	"github.com/glorpus-work/pkgfeed/pkg/config"
	"github.com/glorpus-work/pkgfeed/pkg/feed"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

// These variables are set by the root command from persistent flags.
var (
	ConfigPath   *string
	Root         *string
	Verbose      *bool
	NoColor      *bool
	OutputFormat *string
)

// loadConfig loads the feed configuration from ConfigPath (or the built-in
// defaults if unset), applying the --root flag override.
func loadConfig() (*config.Config, error) {
	path := ""
	if ConfigPath != nil {
		path = *ConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Root != nil && *Root != "" {
		cfg.Root = *Root
	}
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine feed root: %w", err)
		}
		cfg.Root = wd
	}

	return cfg, nil
}

// loadEngine is the bridge function the CLI commands use: it loads the
// config and starts an Engine rooted at it, ready for one-shot use. Callers
// must Close the returned engine when done.
func loadEngine() (*feed.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := "info"
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	logger.InitLogger(level)

	eng, err := feed.New(cfg, vfs.NewOS(cfg.Root), logger.GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to start feed engine: %w", err)
	}
	return eng, nil
}
