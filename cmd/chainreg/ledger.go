package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alfredjeanlab/chainreg/internal/client"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/spf13/cobra"
)

var assetsCmd = &cobra.Command{
	Use:     "assets",
	Short:   "List registered assets",
	GroupID: "ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		search, _ := cmd.Flags().GetString("search")
		sort, _ := cmd.Flags().GetString("sort")

		assets, err := crClient.ListAssets(context.Background(), &client.ListAssetsRequest{
			Category: category,
			Search:   search,
			Sort:     sort,
		})
		if err != nil {
			return fmt.Errorf("listing assets: %w", err)
		}
		if jsonOutput {
			return printJSON(assets)
		}
		printAssetTable(os.Stdout, assets)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "List ticketed events",
	GroupID: "ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		organizer, _ := cmd.Flags().GetString("organizer")
		category, _ := cmd.Flags().GetString("category")
		upcoming, _ := cmd.Flags().GetBool("upcoming")

		resp, err := crClient.ListEvents(context.Background(), &client.ListEventsRequest{
			Organizer: organizer,
			Category:  category,
			Upcoming:  upcoming,
		})
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printEventTable(os.Stdout, resp.Events, resp.Height)
		fmt.Printf("Height: %s\n", style.Height(resp.Height, resp.HeightEstimated))
		return nil
	},
}

var ticketsCmd = &cobra.Command{
	Use:     "tickets",
	Short:   "List tickets held by an owner",
	GroupID: "ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		tickets, err := crClient.ListTickets(context.Background(), owner)
		if err != nil {
			return fmt.Errorf("listing tickets: %w", err)
		}
		if jsonOutput {
			return printJSON(tickets)
		}
		printTicketTable(os.Stdout, tickets)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Short:   "Reconcile the server's view with the ledger now",
	GroupID: "ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := crClient.Refresh(context.Background())
		if err != nil {
			return fmt.Errorf("refreshing: %w", err)
		}
		if jsonOutput {
			return printJSON(snap)
		}
		fmt.Printf("Reconciled %d assets, %d events, %d tickets at height %s\n",
			len(snap.Assets), len(snap.Events), len(snap.Tickets),
			style.Height(snap.Height, snap.HeightEstimated))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write a fresh snapshot as JSON lines",
	GroupID: "ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		snap, err := crClient.Refresh(context.Background())
		if err != nil {
			return fmt.Errorf("refreshing: %w", err)
		}

		var w io.Writer = os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := reconcile.ExportJSONL(snap, w); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if w != os.Stdout {
			stderrf("Exported %d assets, %d events, %d tickets to %s\n",
				len(snap.Assets), len(snap.Events), len(snap.Tickets), output)
		}
		return nil
	},
}

func init() {
	assetsCmd.Flags().String("category", "", "filter by category (\"all\" for every category)")
	assetsCmd.Flags().String("search", "", "match title or description, case-insensitive")
	assetsCmd.Flags().String("sort", "", "newest, oldest or title")

	eventsCmd.Flags().String("organizer", "", "filter by organizer principal")
	eventsCmd.Flags().String("category", "", "filter by category")
	eventsCmd.Flags().Bool("upcoming", false, "only active events that have not started")

	ticketsCmd.Flags().String("owner", "", "ticket owner principal (default: the server's configured owner)")

	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}
