package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	RefreshedAt     time.Time `json:"refreshed_at"`
	Height          uint64    `json:"height"`
	HeightEstimated bool      `json:"height_estimated"`
	AssetCount      int       `json:"asset_count"`
	EventCount      int       `json:"event_count"`
	TicketCount     int       `json:"ticket_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes snap as JSONL to w: a header line, then assets, events
// and tickets in snapshot order.
func ExportJSONL(snap *Snapshot, w io.Writer) error {
	if snap == nil {
		return fmt.Errorf("no snapshot to export")
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		RefreshedAt:     snap.RefreshedAt,
		Height:          snap.Height,
		HeightEstimated: snap.HeightEstimated,
		AssetCount:      len(snap.Assets),
		EventCount:      len(snap.Events),
		TicketCount:     len(snap.Tickets),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, a := range snap.Assets {
		if err := enc.Encode(record{Type: "asset", Data: a}); err != nil {
			return fmt.Errorf("encode asset %d: %w", a.ID, err)
		}
	}
	for _, e := range snap.Events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %d: %w", e.ID, err)
		}
	}
	for _, t := range snap.Tickets {
		if err := enc.Encode(record{Type: "ticket", Data: t}); err != nil {
			return fmt.Errorf("encode ticket %d: %w", t.TicketID, err)
		}
	}
	return nil
}
