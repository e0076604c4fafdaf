package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Short:   "List live notifications",
	GroupID: "notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := crClient.ListNotifications(context.Background())
		if err != nil {
			return fmt.Errorf("listing notifications: %w", err)
		}
		if jsonOutput {
			return printJSON(notes)
		}
		printNotificationTable(os.Stdout, notes)
		return nil
	},
}

var notificationsDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss a notification before it expires",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", args[0])
		}
		if err := crClient.DismissNotification(context.Background(), id); err != nil {
			return fmt.Errorf("dismissing notification: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"id": id, "dismissed": true})
		}
		fmt.Printf("Dismissed notification %d\n", id)
		return nil
	},
}

func init() {
	notificationsCmd.AddCommand(notificationsDismissCmd)
}
