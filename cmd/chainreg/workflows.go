package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:     "register",
	Short:   "Register ownership of a file",
	GroupID: "workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		category, _ := cmd.Flags().GetString("category")
		license, _ := cmd.Flags().GetString("license")
		filePath, _ := cmd.Flags().GetString("file")
		licensePath, _ := cmd.Flags().GetString("license-file")

		in := &workflow.RegistrationInput{
			Title:       title,
			Description: description,
			Category:    category,
			License:     license,
		}
		var err error
		if in.File, err = loadFile(filePath); err != nil {
			return err
		}
		if in.LicenseFile, err = loadFile(licensePath); err != nil {
			return err
		}

		res, err := crClient.Register(context.Background(), in)
		return finishWorkflow(res, err)
	},
}

var createEventCmd = &cobra.Command{
	Use:     "create-event",
	Short:   "Create a ticketed event",
	GroupID: "workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		location, _ := cmd.Flags().GetString("location")
		venue, _ := cmd.Flags().GetString("venue")
		organizer, _ := cmd.Flags().GetString("organizer")
		category, _ := cmd.Flags().GetString("category")
		startsAt, _ := cmd.Flags().GetString("starts-at")
		price, _ := cmd.Flags().GetString("price")
		maxTickets, _ := cmd.Flags().GetUint64("max-tickets")
		imagePath, _ := cmd.Flags().GetString("image")
		bannerPath, _ := cmd.Flags().GetString("banner")

		in := &workflow.EventInput{
			Title:       title,
			Description: description,
			Location:    location,
			Venue:       venue,
			Organizer:   organizer,
			Category:    category,
			MaxTickets:  maxTickets,
		}
		var err error
		if in.StartsAt, err = parseStartsAt(startsAt, time.Now()); err != nil {
			return err
		}
		if in.TicketPriceMicro, err = model.ParseMicro(price); err != nil {
			return fmt.Errorf("invalid --price: %w", err)
		}
		if in.Image, err = loadFile(imagePath); err != nil {
			return err
		}
		if in.Banner, err = loadFile(bannerPath); err != nil {
			return err
		}

		res, err := crClient.CreateEvent(context.Background(), in)
		return finishWorkflow(res, err)
	},
}

var buyCmd = &cobra.Command{
	Use:     "buy <event-id>",
	Short:   "Buy one ticket for an event",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid event id %q", args[0])
		}
		res, err := crClient.Purchase(context.Background(), &workflow.PurchaseInput{EventID: id})
		return finishWorkflow(res, err)
	},
}

var runsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "List recent workflow runs",
	GroupID: "workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := crClient.ListRuns(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if jsonOutput {
			return printJSON(runs)
		}
		if len(runs) == 0 {
			fmt.Println("No runs.")
			return nil
		}
		printRunTable(os.Stdout, runs)
		return nil
	},
}

// finishWorkflow prints a run result. A rejected request that still carries
// a result, such as a validation failure, is shown like any other failure.
func finishWorkflow(res *workflow.Result, err error) error {
	if res == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		return fmt.Errorf("running workflow: %w", err)
	}
	return printResult(res)
}

// loadFile reads path into a workflow file. An empty path yields nil.
func loadFile(path string) (*workflow.File, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	name := filepath.Base(path)
	return &workflow.File{Name: name, MediaType: mediaType(name, data), Data: data}, nil
}

// mediaType guesses a media type from the file extension, falling back to
// content sniffing.
func mediaType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	t := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

// startsAtLayouts are tried in order after RFC 3339.
var startsAtLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseStartsAt accepts an absolute time or a duration from now such as
// "72h". Times without a zone are local.
func parseStartsAt(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("--starts-at is required")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("--starts-at %q must be in the future", s)
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range startsAtLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --starts-at %q: want RFC 3339, \"YYYY-MM-DD HH:MM\" or a duration", s)
}

func init() {
	registerCmd.Flags().String("title", "", "asset title (required)")
	registerCmd.Flags().String("description", "", "asset description (required)")
	registerCmd.Flags().String("category", "", "asset category (required)")
	registerCmd.Flags().String("license", "", "licence tag, or CUSTOM with --license-file (required)")
	registerCmd.Flags().String("file", "", "file to register (required)")
	registerCmd.Flags().String("license-file", "", "licence document for a CUSTOM licence")

	createEventCmd.Flags().String("title", "", "event title (required)")
	createEventCmd.Flags().String("description", "", "event description (required)")
	createEventCmd.Flags().String("location", "", "event location (required)")
	createEventCmd.Flags().String("venue", "", "venue name")
	createEventCmd.Flags().String("organizer", "", "organizer display name")
	createEventCmd.Flags().String("category", "", "event category (required)")
	createEventCmd.Flags().String("starts-at", "", "start time (RFC 3339, \"YYYY-MM-DD HH:MM\" or a duration like 72h)")
	createEventCmd.Flags().String("price", "0", "ticket price in STX, up to six decimals")
	createEventCmd.Flags().Uint64("max-tickets", 0, "number of tickets for sale (required)")
	createEventCmd.Flags().String("image", "", "event image (required)")
	createEventCmd.Flags().String("banner", "", "optional banner image")

	runsCmd.Flags().Int("limit", 20, "maximum number of runs")
}
