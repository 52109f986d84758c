package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/collie/internal/config"
	"github.com/dyluth/collie/internal/printer"
	"github.com/dyluth/collie/internal/ticket"
)

var checkConfigPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and store connectivity",
	Long: `Validate collie.yml, resolve the store API key, and probe the ticket
store with a single open-problems query. Exits non-zero on any failure, so
it is safe to use as a deployment gate.

Examples:
  collie check
  collie check --config /etc/collie/collie.yml`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkConfigPath, "config", "collie.yml", "Path to collie.yml")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(checkConfigPath)
	if err != nil {
		return printer.Error(
			"Configuration is invalid",
			err.Error(),
			[]string{"Fix collie.yml and run 'collie check' again"},
		)
	}
	printer.Success("Configuration valid (%s)\n", checkConfigPath)

	apiKey, err := cfg.Store.ResolveAPIKey()
	if err != nil {
		return printer.Error(
			"Store API key not available",
			err.Error(),
			[]string{"export " + cfg.Store.APIKeyEnv + "=<your store API key>"},
		)
	}
	printer.Success("Store API key resolved from %s\n", cfg.Store.APIKeyEnv)

	store, err := ticket.NewClient(ticket.ClientConfig{
		BaseURL:           cfg.Store.BaseURL,
		APIKey:            apiKey,
		RequestsPerSecond: cfg.Store.RequestsPerSecond,
		PageSize:          cfg.Store.PageSize,
	})
	if err != nil {
		return printer.Error("Failed to create store client", err.Error(), nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	problems, err := store.ListOpenProblems(ctx)
	if err != nil {
		return printer.Error(
			"Ticket store not reachable",
			err.Error(),
			[]string{
				"Check store.base_url in collie.yml",
				"Check the API key in " + cfg.Store.APIKeyEnv,
			},
		)
	}
	printer.Success("Ticket store reachable (%d open problem ticket(s))\n", len(problems))

	if cfg.Notify != nil {
		printer.Info("Chat notifications: enabled (%s)\n", cfg.Notify.WebhookURL)
	} else {
		printer.Info("Chat notifications: disabled\n")
	}

	return nil
}
