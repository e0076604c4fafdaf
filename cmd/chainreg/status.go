package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show what the server sees on the ledger",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := crClient.Status(context.Background())
		if err != nil {
			return fmt.Errorf("getting status: %w", err)
		}
		if jsonOutput {
			return printJSON(st)
		}

		fmt.Printf("Network:       %s\n", st.Network)
		fmt.Printf("Contract:      %s\n", style.Accent(st.Contract))
		fmt.Printf("Started:       %s\n", st.StartedAt.Local().Format(time.DateTime))
		if st.RefreshedAt.IsZero() {
			fmt.Printf("Refreshed:     %s\n", style.Muted("never"))
		} else {
			fmt.Printf("Refreshed:     %s\n", st.RefreshedAt.Local().Format(time.DateTime))
			fmt.Printf("Height:        %s\n", style.Height(st.Height, st.HeightEstimated))
		}
		fmt.Printf("Assets:        %d\n", st.Assets)
		fmt.Printf("Events:        %d\n", st.Events)
		fmt.Printf("Tickets:       %d\n", st.Tickets)
		fmt.Printf("Notifications: %d\n", st.Notifications)
		if st.WorkflowsReady {
			fmt.Printf("Workflows:     enabled\n")
		} else {
			fmt.Printf("Workflows:     %s\n", style.Muted("disabled (no signer)"))
		}
		if st.LastError != "" {
			fmt.Printf("Last error:    %s\n", style.Warn(st.LastError))
		}
		return nil
	},
}
