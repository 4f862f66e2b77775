// Package cli implements the seamcarve command-line interface.
//
// This package provides commands for shrinking images by seam carving,
// inspecting the minimum-energy seam, printing image statistics, serving the
// carving pipeline over HTTP and managing the result cache. The CLI is built
// using cobra and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - carve: Remove N vertical seams and write the result
//   - seam: Print the first minimum-energy seam, one column per line
//   - stats: Print width, height and brightness
//   - energy: Write the cumulative energy map as a grayscale image
//   - serve: Run the HTTP carving service
//   - cache: Manage the result cache
//   - config: Show the effective configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/seamcarve/pkg/buildinfo"
	"github.com/matzehuels/seamcarve/pkg/cache"
	"github.com/matzehuels/seamcarve/pkg/config"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "seamcarve"

	// defaultOutput is where carve writes when -o is not given.
	defaultOutput = "out.ppm"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded in the root command's PersistentPreRunE.
	Config config.Config

	configPath string
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Seamcarve shrinks images by removing low-energy seams",
		Long:         `Seamcarve resizes images content-aware: it repeatedly removes the vertical path of pixels that contributes least to the picture, so the important parts keep their proportions.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.SetLogLevel(levelFor(c.verbose))
			if err := c.loadConfig(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/seamcarve/config.toml)")

	// Register all subcommands
	root.AddCommand(c.carveCommand())
	root.AddCommand(c.seamCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.energyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	var (
		cfg config.Config
		err error
	)
	if c.configPath != "" {
		if _, statErr := os.Stat(c.configPath); statErr != nil {
			return errors.Wrap(errors.ErrCodeFileNotFound, statErr, "config file %s", c.configPath)
		}
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

// newCache opens the configured cache backend. A file cache that cannot be
// located degrades to no caching; an unreachable Redis is an error.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.Config.Cache
	if noCache || cfg.Backend == config.BackendNone {
		return cache.NewNullCache(), nil
	}

	var (
		cc  cache.Cache
		err error
	)
	switch cfg.Backend {
	case config.BackendRedis:
		cc, err = cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: os.Getenv("SEAMCARVE_REDIS_PASSWORD"),
		})
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	default:
		dir, dirErr := c.cacheDir()
		if dirErr != nil {
			c.Logger.Debug("cache disabled", "error", dirErr)
			return cache.NewNullCache(), nil
		}
		if cc, err = cache.NewFileCache(dir); err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}
	return cache.WithTTL(cc, cfg.TTL.Duration), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG default
// (~/.cache/seamcarve/).
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return defaultCacheDir()
}

func defaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// readInput reads the image file named on the command line.
func readInput(path string) ([]byte, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "input file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
