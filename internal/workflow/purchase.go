package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
)

// PurchaseInput selects the event to buy a ticket for.
type PurchaseInput struct {
	EventID uint64 `json:"event_id"`
}

// TicketPurchase buys one ticket. Availability is left to the ledger: a
// sold-out event fails at submission with the node's message.
type TicketPurchase struct {
	deps *Deps
	once once
}

// NewTicketPurchase creates a single-use purchase workflow.
func NewTicketPurchase(deps *Deps) *TicketPurchase {
	return &TicketPurchase{deps: deps}
}

// Run drives the purchase to a reported outcome.
func (w *TicketPurchase) Run(ctx context.Context, in PurchaseInput) (*Result, error) {
	if err := w.once.claim(); err != nil {
		return nil, err
	}
	r, err := newRun(w.deps, NameTicketPurchase)
	if err != nil {
		return nil, err
	}
	const failTitle = "Purchase Failed"

	if err := r.enter(ctx, StateValidating, "Resolving event..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	if w.deps.Sender == "" {
		return r.fail(ctx, failTitle, model.NewFieldError("sender", "is required"))
	}
	event, err := w.deps.Events.GetEvent(ctx, in.EventID)
	if errors.Is(err, model.ErrNotFound) {
		return r.fail(ctx, failTitle, model.NewFieldError("event_id", fmt.Sprintf("event %d not found", in.EventID)))
	}
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	r.result.ContentID = event.ContentID

	if err := r.enter(ctx, StateSubmitting, fmt.Sprintf("Purchasing ticket for %s STX...", model.FormatMicro(event.TicketPriceMicro))); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	d, err := w.deps.Builder.PurchaseTicket(txbuild.PurchaseTicketFields{
		EventID:          event.ID,
		Sender:           w.deps.Sender,
		TicketPriceMicro: event.TicketPriceMicro,
	})
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	txid, err := w.deps.Submitter.Submit(ctx, d)
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}

	msg := fmt.Sprintf("Ticket purchased for %q.", event.Title)
	return r.succeed(ctx, txid, "Ticket Purchased", msg), nil
}
