package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/chainreg/internal/clarity"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// TicketIDs returns the ids of the tickets owner holds.
func (r *Reconciler) TicketIDs(ctx context.Context, owner string) ([]uint64, error) {
	v, err := r.call(ctx, "get-user-tickets", clarity.Principal(owner))
	if err != nil {
		return nil, fmt.Errorf("user tickets: %w", err)
	}
	for v.Type == clarity.TypeOK || v.Type == clarity.TypeSome {
		if v, err = v.Inner(); err != nil {
			return nil, fmt.Errorf("user tickets: %w", err)
		}
	}
	if v.Type == clarity.TypeNone {
		return nil, nil
	}
	items, err := v.AsList()
	if err != nil {
		return nil, fmt.Errorf("user tickets: %w", err)
	}
	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		id, err := it.AsUInt()
		if err != nil {
			return nil, fmt.Errorf("user tickets: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListTickets returns owner's tickets joined with their events. Tickets
// whose event cannot be resolved are dropped.
func (r *Reconciler) ListTickets(ctx context.Context, owner string) ([]model.TicketView, error) {
	ids, err := r.TicketIDs(ctx, owner)
	if err != nil {
		return nil, err
	}
	tickets, err := fetchIndexed(ctx, r, KindTicket, ids, DecodeTicket)
	if err != nil {
		return nil, err
	}
	return r.joinEvents(ctx, tickets)
}

// joinEvents attaches each ticket's event, fetching each distinct event once.
func (r *Reconciler) joinEvents(ctx context.Context, tickets []model.TicketRecord) ([]model.TicketView, error) {
	seen := make(map[uint64]bool)
	var eventIDs []uint64
	for _, t := range tickets {
		if !seen[t.EventID] {
			seen[t.EventID] = true
			eventIDs = append(eventIDs, t.EventID)
		}
	}
	evs, err := fetchIndexed(ctx, r, KindEvent, eventIDs, DecodeEvent)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]model.EventRecord, len(evs))
	for _, e := range evs {
		byID[e.ID] = e
	}

	views := make([]model.TicketView, 0, len(tickets))
	for _, t := range tickets {
		e, ok := byID[t.EventID]
		if !ok {
			r.logger.Debug("dropping ticket with unresolved event", "ticket_id", t.TicketID, "event_id", t.EventID)
			continue
		}
		views = append(views, model.TicketView{TicketRecord: t, Event: e})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].TicketID < views[j].TicketID })
	return views, nil
}

// HasTicket reports whether owner holds a ticket for eventID.
func (r *Reconciler) HasTicket(ctx context.Context, owner string, eventID uint64) (bool, error) {
	v, err := r.call(ctx, "has-ticket-for-event", clarity.Principal(owner), clarity.UInt(eventID))
	if err != nil {
		return false, fmt.Errorf("has ticket: %w", err)
	}
	for v.Type == clarity.TypeOK || v.Type == clarity.TypeSome {
		if v, err = v.Inner(); err != nil {
			return false, fmt.Errorf("has ticket: %w", err)
		}
	}
	switch v.Type {
	case clarity.TypeNone:
		return false, nil
	case clarity.TypeBool:
		return v.AsBool()
	case clarity.TypeTuple:
		fields, err := v.AsTuple()
		if err != nil {
			return false, fmt.Errorf("has ticket: %w", err)
		}
		found, ok := fields["found"]
		if !ok {
			return false, fmt.Errorf("has ticket: tuple has no found field")
		}
		return found.AsBool()
	}
	return false, fmt.Errorf("has ticket: unexpected %s response", v.Type)
}
