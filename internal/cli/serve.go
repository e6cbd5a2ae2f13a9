package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/logger"
	"github.com/toolbridge/toolbridge/internal/metrics"
	"github.com/toolbridge/toolbridge/pkg/gateway"
	"github.com/toolbridge/toolbridge/pkg/toolkit"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server",
	Long: `Run the gateway server: register the built-in tools, listen on
/endpoint for session traffic, and serve the observer event stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logg.Close()
	log := logg.GetZerolog()

	registry := tools.NewRegistry()
	if err := toolkit.RegisterAll(registry, toolkit.Options{
		GitHub: cfg.Tools.GitHub,
		Wiki:   cfg.Tools.Wiki,
		News:   cfg.Tools.News,
		Social: cfg.Tools.Social,
	}); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	log.Info().Int("tools", registry.Len()).Msg("Tools registered")

	server, err := gateway.NewServer(gateway.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		Registry:      registry,
		Metrics:       metrics.New(),
		Logger:        log,
		ToolTimeout:   cfg.Server.ToolTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		SweepSchedule: cfg.Server.SweepSchedule,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	configPath := config.NewLoader(cfgFile).GetConfigPath()
	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		log.Info().Msg("Config file changed; restart to apply server settings")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		} else {
			defer watcher.Stop()
		}
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal")

	return server.Stop()
}
