package main

import (
	"os"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/client"
	"github.com/alfredjeanlab/chainreg/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL     string
	authToken   string
	jsonOutput  bool
	httpTimeout time.Duration

	crClient client.Client
	style    *ui.Styler
)

func defaultHTTPURL() string {
	if s := os.Getenv("CHAINREG_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:           "chainreg <command>",
	Short:         "Register assets and sell event tickets on a smart-contract ledger",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		crClient = client.NewHTTPClient(httpURL, authToken, httpTimeout)
		style = ui.NewStyler(!jsonOutput && ui.ShouldUseColor(os.Stdout))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if crClient != nil {
			crClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "chainreg server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("CHAINREG_AUTH_TOKEN"), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "timeout", 0, "per-request timeout (0 = none)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "ledger", Title: "Ledger:"},
		&cobra.Group{ID: "workflow", Title: "Workflows:"},
		&cobra.Group{ID: "notify", Title: "Notifications:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	// Ledger
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(exportCmd)

	// Workflows
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(createEventCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(runsCmd)

	// Notifications
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
