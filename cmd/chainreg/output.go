package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/ui"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
)

const titleWidth = 40

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printAssetTable(w io.Writer, assets []model.AssetRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLICENSE\tTITLE\tOWNER")
	for _, a := range assets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Category,
			ui.Truncate(a.LicenseTag, 20),
			ui.Truncate(a.Title, titleWidth),
			a.Owner,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d assets\n", len(assets))
}

func printEventTable(w io.Writer, events []model.EventRecord, height uint64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBLOCK\tPRICE (STX)\tSOLD\tSTATUS\tTITLE")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d/%d\t%s\t%s\n",
			e.ID,
			e.EventBlock,
			model.FormatMicro(e.TicketPriceMicro),
			e.SoldTickets,
			e.MaxTickets,
			eventStatus(&e, height),
			ui.Truncate(e.Title, titleWidth),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events\n", len(events))
}

// eventStatus summarises an event for a table row.
func eventStatus(e *model.EventRecord, height uint64) string {
	switch {
	case !e.IsActive:
		return "inactive"
	case !e.Upcoming(height):
		return "past"
	case e.Remaining() == 0:
		return "sold out"
	}
	return fmt.Sprintf("%d left", e.Remaining())
}

func printTicketTable(w io.Writer, tickets []model.TicketView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tEVENT\tVALID\tPURCHASED AT\tEVENT TITLE")
	for _, t := range tickets {
		fmt.Fprintf(tw, "%d\t%d\t%t\t%d\t%s\n",
			t.TicketID,
			t.EventID,
			t.IsValid,
			t.PurchaseTime,
			ui.Truncate(t.Event.Title, titleWidth),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tickets\n", len(tickets))
}

func printNotificationTable(w io.Writer, notes []model.Notification) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tMESSAGE")
	for _, n := range notes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, style.Kind(n.Kind), n.Title, ui.Truncate(n.Message, 60))
	}
	tw.Flush()
}

func printRunTable(w io.Writer, runs []*model.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tWORKFLOW\tOUTCOME\tSTAGE\tTX\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Workflow,
			style.Outcome(r.Outcome),
			r.Stage,
			ui.Truncate(r.TxID, 18),
			r.StartedAt.Local().Format(time.DateTime),
		)
	}
	tw.Flush()
}

// printResult shows a finished workflow run and returns an error when the
// run failed, so the command exits non-zero.
func printResult(res *workflow.Result) error {
	if jsonOutput {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, s := range res.Statuses {
			fmt.Println(style.Muted("· ") + s)
		}
		fmt.Printf("\n%s %s\n", style.Outcome(res.Outcome), res.RunID)
		if res.ContentID != "" {
			fmt.Printf("Content ID:  %s\n", res.ContentID)
		}
		if res.TxID != "" {
			fmt.Printf("Transaction: %s\n", res.TxID)
		}
		if ref := res.Notification.Reference; ref != "" {
			fmt.Printf("Explorer:    %s\n", style.Accent(ref))
		}
	}
	if res.Outcome == model.OutcomeFailure {
		return fmt.Errorf("%s failed during %s: %s", res.Workflow, res.Stage, res.Error)
	}
	return nil
}

func stderrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}
