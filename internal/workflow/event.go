package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/content"
	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
)

// EventInput describes an event to create.
type EventInput struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	Venue            string    `json:"venue,omitempty"`
	Organizer        string    `json:"organizer,omitempty"`
	Category         string    `json:"category"`
	StartsAt         time.Time `json:"starts_at"`
	TicketPriceMicro uint64    `json:"ticket_price_micro"`
	MaxTickets       uint64    `json:"max_tickets"`
	Image            *File     `json:"image"`
	Banner           *File     `json:"banner,omitempty"`
}

// EventCreation creates one ticketed event.
type EventCreation struct {
	deps *Deps
	once once
}

// NewEventCreation creates a single-use event creation workflow.
func NewEventCreation(deps *Deps) *EventCreation {
	return &EventCreation{deps: deps}
}

// Run drives event creation to a reported outcome.
func (w *EventCreation) Run(ctx context.Context, in EventInput) (*Result, error) {
	if err := w.once.claim(); err != nil {
		return nil, err
	}
	r, err := newRun(w.deps, NameEventCreation)
	if err != nil {
		return nil, err
	}
	const failTitle = "Event Creation Failed"

	if err := r.enter(ctx, StateValidating, "Validating event details..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	now := w.deps.clock().Now()
	if err := validateEvent(in, now); err != nil {
		return r.fail(ctx, failTitle, err)
	}

	meta := map[string]any{
		"title":              in.Title,
		"description":        in.Description,
		"location":           in.Location,
		"category":           in.Category,
		"starts_at":          in.StartsAt.UTC().Format(time.RFC3339),
		"ticket_price":       model.FormatMicro(in.TicketPriceMicro),
		"ticket_price_micro": in.TicketPriceMicro,
		"max_tickets":        in.MaxTickets,
		"status":             "active",
	}
	if in.Venue != "" {
		meta["venue"] = in.Venue
	}
	if in.Organizer != "" {
		meta["organizer"] = in.Organizer
	}

	if err := r.enter(ctx, StateUploadingPrimary, "Uploading event image..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	image := asBlob(in.Image, content.RoleImage)
	imageCID, err := w.deps.Uploader.Upload(ctx, []content.Blob{image}, with(meta, "type", "event-image"))
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	meta["image_cid"] = imageCID
	meta["image_name"] = image.Name

	if !in.Banner.empty() {
		if err := r.enter(ctx, StateUploadingSecondary, "Uploading event banner..."); err != nil {
			return r.fail(ctx, failTitle, err)
		}
		banner := asBlob(in.Banner, content.RoleImage)
		bannerCID, err := w.deps.Uploader.Upload(ctx, []content.Blob{banner}, with(meta, "type", "event-banner"))
		if err != nil {
			return r.fail(ctx, failTitle, err)
		}
		meta["banner_cid"] = bannerCID
		meta["banner_name"] = banner.Name
	}

	if err := r.enter(ctx, StateUploadingMetadata, "Uploading event metadata..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	contentID, err := w.deps.Uploader.Upload(ctx, nil, with(meta, "type", "event"))
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	r.result.ContentID = contentID

	if err := r.enter(ctx, StateSubmitting, "Creating event on the ledger..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	height, estimated := w.deps.Heights.Current(ctx)
	block := reconcile.EstimateBlock(now, in.StartsAt, height)
	if estimated {
		w.deps.logger().Warn("event block derived from estimated height", "run_id", r.id, "height", height, "event_block", block)
	}
	d, err := w.deps.Builder.CreateEvent(txbuild.CreateEventFields{
		ContentID:        contentID,
		Title:            in.Title,
		Description:      in.Description,
		Location:         in.Location,
		EventBlock:       block,
		TicketPriceMicro: in.TicketPriceMicro,
		MaxTickets:       in.MaxTickets,
		Category:         in.Category,
	})
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	txid, err := w.deps.Submitter.Submit(ctx, d)
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}

	msg := fmt.Sprintf("Event %q has been created on the ledger.", in.Title)
	return r.succeed(ctx, txid, "Event Created", msg), nil
}

func validateEvent(in EventInput, now time.Time) error {
	ve := &model.ValidationError{}
	ve.Require(
		"title", in.Title,
		"description", in.Description,
		"location", in.Location,
		"category", in.Category,
	)
	txbuild.RequireASCII(ve,
		"title", in.Title,
		"description", in.Description,
		"location", in.Location,
		"category", in.Category,
	)
	if in.StartsAt.IsZero() {
		ve.Add("starts_at", "is required")
	} else if !in.StartsAt.After(now) {
		ve.Add("starts_at", "must be in the future")
	}
	if in.MaxTickets == 0 {
		ve.Add("max_tickets", "must be greater than zero")
	}
	if in.Image.empty() {
		ve.Add("image", "is required")
	} else if err := content.ValidateBlob(asBlob(in.Image, content.RoleImage)); err != nil {
		return mergeValidation(ve, err)
	}
	if !in.Banner.empty() {
		if err := content.ValidateBlob(asBlob(in.Banner, content.RoleImage)); err != nil {
			return mergeValidation(ve, err)
		}
	}
	return ve.Err()
}

// with returns a copy of m with key set to v.
func with(m map[string]any, key string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, x := range m {
		out[k] = x
	}
	out[key] = v
	return out
}
