package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"dvidsharvest/pkg/auth"
	"dvidsharvest/pkg/config"
	"dvidsharvest/pkg/dvids"
	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	apiKey     string
	rateLimit  int
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvidsharvest",
	Short: "Bulk harvester for DVIDS image metadata and images",
	Long: `dvidsharvest collects image metadata from the DVIDS search API and
downloads the referenced images.

  metadata   harvest one CSV file per day, then merge them into shards
  merge      re-run only the merge step over existing day files
  download   fetch every image listed in a metadata file
  auth       store the API key in the system keychain

Images are written under <output>/<2 hex chars>/<id>.jpg. Both harvesting
and downloading skip work that already exists on disk, so an interrupted run
can simply be started again.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.dvidsharvest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "DVIDS API key (default: stored key or DVIDS_API_KEY)")
	rootCmd.PersistentFlags().IntVar(&rateLimit, "rate-limit", 0, "maximum API requests per minute (0 = unlimited)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`dvidsharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags for config.Load
func globalFlags() map[string]interface{} {
	return map[string]interface{}{
		"api-key":    apiKey,
		"log-level":  logLevel,
		"log-file":   logFile,
		"rate-limit": rateLimit,
		"no-color":   noColor,
	}
}

// loadConfig loads configuration and initializes the global logger. The
// returned logger carries a fresh run_id.
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log, runID := logger.WithRunID(logger.GetLogger())
	log.InfoWithFields("dvidsharvest starting", map[string]interface{}{
		"version": version,
		"run_id":  runID,
	})
	return cfg, log, nil
}

// resolveAPIKey fills cfg.API.Key from the key store when no other source
// supplied one. A missing key is only an error when required is set.
func resolveAPIKey(cfg *config.Config, log logger.Logger, required bool) error {
	if cfg.API.Key != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err == nil {
		key, source, getErr := manager.Get()
		if getErr == nil {
			cfg.API.Key = key
			log.WithField("source", source).Info("Using stored API key")
			return nil
		}
		err = getErr
	}

	if !required {
		log.WithError(err).Warn("No API key configured; asset lookups will fail")
		return nil
	}
	if errors.Is(err, auth.ErrKeyNotFound) {
		return errors.New("no API key found; pass --api-key, set DVIDS_API_KEY or run 'dvidsharvest auth set-key'")
	}
	return fmt.Errorf("failed to read stored API key: %w", err)
}

func newClient(cfg *config.Config, log logger.Logger) *dvids.Client {
	return dvids.NewClient(dvids.Options{
		APIKey: cfg.API.Key,
		Endpoints: dvids.Endpoints{
			Search: cfg.API.SearchURL,
			Asset:  cfg.API.AssetURL,
			CDN:    cfg.API.CDNURL,
		},
		Timeout:           cfg.API.Timeout,
		MaxAttempts:       cfg.API.MaxAttempts,
		RetryDelay:        cfg.API.RetryDelay,
		RequestsPerMinute: cfg.API.RequestsPerMinute,
		Logger:            log,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
