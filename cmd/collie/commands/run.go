package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/collie/internal/config"
	"github.com/dyluth/collie/internal/engine"
	"github.com/dyluth/collie/internal/notify"
	"github.com/dyluth/collie/internal/printer"
	"github.com/dyluth/collie/internal/ticket"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the correlation loop until interrupted",
	Long: `Run the correlation loop on its configured interval.

Each cycle discovers newly opened problem tickets, retires closed
incidents, scores recent tickets against every active incident, and links
each ticket to its single best match. The loop runs until SIGINT or
SIGTERM.

Examples:
  # Run with the default config file
  collie run

  # Run with an explicit config file
  collie run --config /etc/collie/collie.yml`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "collie.yml", "Path to collie.yml")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, cfg, err := buildEngine(runConfigPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Info("Collie watching %s (interval %ds, lookback %dm)\n",
		cfg.Store.BaseURL, cfg.Engine.PollIntervalSeconds, cfg.Engine.LookbackMinutes)

	return eng.Run(ctx)
}

// buildEngine wires config, store client, notifier and reporter into an
// engine. Shared by run and scan.
func buildEngine(configPath string) (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, printer.Error(
			"Failed to load configuration",
			err.Error(),
			[]string{"Check the --config path and the collie.yml syntax"},
		)
	}

	apiKey, err := cfg.Store.ResolveAPIKey()
	if err != nil {
		return nil, nil, printer.Error(
			"Store API key not available",
			err.Error(),
			[]string{"export " + cfg.Store.APIKeyEnv + "=<your store API key>"},
		)
	}

	store, err := ticket.NewClient(ticket.ClientConfig{
		BaseURL:           cfg.Store.BaseURL,
		APIKey:            apiKey,
		RequestsPerSecond: cfg.Store.RequestsPerSecond,
		PageSize:          cfg.Store.PageSize,
	})
	if err != nil {
		return nil, nil, printer.Error("Failed to create store client", err.Error(), nil)
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, nil, printer.Error("Failed to create chat notifier", err.Error(), nil)
	}

	eng := engine.New(store, notifier, consoleReporter{}, engine.Config{
		Interval: cfg.Engine.PollInterval(),
		Lookback: cfg.Engine.Lookback(),
	})
	return eng, cfg, nil
}

// buildNotifier returns the webhook notifier when configured, Noop otherwise.
func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Notify == nil {
		return notify.Noop{}, nil
	}
	return notify.NewWebhook(notify.WebhookConfig{
		URL:     cfg.Notify.WebhookURL,
		Token:   cfg.Notify.ResolveToken(),
		Timeout: cfg.Notify.Timeout(),
	})
}
