package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/app"
	"github.com/flexops/flexfill/internal/common"
	"github.com/flexops/flexfill/internal/services/status"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles    configPaths // Multiple -config flags supported
	stationPrefix  = flag.String("prefix", "", "Station prefix filter (overrides config)")
	days           = flag.Int("days", 0, "Date window in days (overrides config)")
	maxConcurrency = flag.Int("concurrency", 0, "Max concurrent requests (overrides config)")
	watch          = flag.Bool("watch", false, "Run on the configured schedule instead of once")
	statusFile     = flag.String("status-file", "", "Poll upload status for the given file name instead of collecting")
	statusFileType = flag.String("status-type", "", "File type for the status check")
	showVersion    = flag.Bool("version", false, "Print version information")
	showVersionV   = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Flexfill version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence:
	// 1. Load config (defaults -> files -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("flexfill.toml"); err == nil {
			configFiles = append(configFiles, "flexfill.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *stationPrefix, *days, *maxConcurrency)

	logger = common.SetupLogger(config)

	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("portal", config.Portal.BaseURL).
		Str("mapping", config.Sites.MappingPath).
		Int("max_concurrency", config.Fetch.MaxConcurrency).
		Int("days", config.Fetch.Days).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *statusFile != "" {
		record, err := application.CheckUploadStatus(ctx, status.Query{
			FileName: *statusFile,
			FileType: *statusFileType,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("file", *statusFile).Msg("Upload status check failed")
			os.Exit(1)
		}
		logger.Info().
			Str("file", record.FileName).
			Str("status", record.Status).
			Msg("Upload status")
		return
	}

	if *watch || config.Watch.Enabled {
		scheduler := app.NewScheduler(application, logger)
		if err := scheduler.Start(config.Watch.Schedule); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}
		defer scheduler.Stop()

		logger.Info().Str("schedule", config.Watch.Schedule).Msg("Watching; press Ctrl+C to stop")
		<-ctx.Done()
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Collection run failed")
		os.Exit(1)
	}
}
