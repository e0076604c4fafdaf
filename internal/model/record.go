package model

// AssetRecord is a registered asset as stored by the registry contract.
// ID is the dense zero-based ordinal the ledger assigned at registration.
type AssetRecord struct {
	ID           uint64 `json:"id"`
	ContentID    string `json:"content_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	LicenseTag   string `json:"license_tag"`
	ContentHash  string `json:"content_hash"` // sha-256 hex of the raw bytes, computed client side
	Category     string `json:"category"`
	Filename     string `json:"filename"`
	Owner        string `json:"owner"`
	RegisteredAt uint64 `json:"registered_at"`
}

// EventRecord is a ticketed event. Only the ledger mutates it.
type EventRecord struct {
	ID               uint64 `json:"id"`
	ContentID        string `json:"content_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Location         string `json:"location"`
	EventBlock       uint64 `json:"event_block"`
	TicketPriceMicro uint64 `json:"ticket_price_micro"`
	MaxTickets       uint64 `json:"max_tickets"`
	SoldTickets      uint64 `json:"sold_tickets"`
	Organizer        string `json:"organizer"`
	Category         string `json:"category"`
	CreatedAt        uint64 `json:"created_at"`
	IsActive         bool   `json:"is_active"`
}

// Remaining returns the number of unsold tickets.
func (e *EventRecord) Remaining() uint64 {
	if e.SoldTickets >= e.MaxTickets {
		return 0
	}
	return e.MaxTickets - e.SoldTickets
}

// Upcoming reports whether the event is active and scheduled after height.
func (e *EventRecord) Upcoming(height uint64) bool {
	return e.IsActive && e.EventBlock > height
}

// Purchasable reports whether a ticket could still be bought at height.
// The ledger remains the final arbiter.
func (e *EventRecord) Purchasable(height uint64) bool {
	return e.Upcoming(height) && e.Remaining() > 0
}

// TicketRecord is a purchased ticket. Many tickets reference one event.
type TicketRecord struct {
	TicketID     uint64 `json:"ticket_id"`
	EventID      uint64 `json:"event_id"`
	PurchaseTime uint64 `json:"purchase_time"`
	IsValid      bool   `json:"is_valid"`
	Owner        string `json:"owner"`
}

// TicketView is a ticket joined with the event it admits to.
type TicketView struct {
	TicketRecord
	Event EventRecord `json:"event"`
}
