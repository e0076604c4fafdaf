package txbuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/chainreg/internal/clarity"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// Builder builds descriptors against one deployed contract.
type Builder struct {
	address string
	name    string
}

// NewBuilder returns a Builder targeting address.name.
func NewBuilder(contractAddress, contractName string) *Builder {
	return &Builder{address: contractAddress, name: contractName}
}

// Fields carries untyped intent fields keyed by their snake_case names.
type Fields map[string]string

// RegisterAssetFields are the register-ip arguments.
type RegisterAssetFields struct {
	ContentID   string
	Title       string
	Description string
	LicenseTag  string
	ContentHash string
	Category    string
	Filename    string
}

// CreateEventFields are the create-event arguments.
type CreateEventFields struct {
	ContentID        string
	Title            string
	Description      string
	Location         string
	EventBlock       uint64
	TicketPriceMicro uint64
	MaxTickets       uint64
	Category         string
}

// PurchaseTicketFields are the purchase-ticket arguments. Sender and the
// event's current price are needed for the post-condition.
type PurchaseTicketFields struct {
	EventID          uint64
	Sender           string
	TicketPriceMicro uint64
}

// Build dispatches on intent, parsing numeric fields from f.
func (b *Builder) Build(intent Intent, f Fields) (*CallDescriptor, error) {
	switch intent {
	case IntentRegisterAsset:
		return b.RegisterAsset(RegisterAssetFields{
			ContentID:   f["content_id"],
			Title:       f["title"],
			Description: f["description"],
			LicenseTag:  f["license_tag"],
			ContentHash: f["content_hash"],
			Category:    f["category"],
			Filename:    f["filename"],
		})
	case IntentCreateEvent:
		ve := &model.ValidationError{}
		ev := CreateEventFields{
			ContentID:        f["content_id"],
			Title:            f["title"],
			Description:      f["description"],
			Location:         f["location"],
			EventBlock:       parseUint(ve, f, "event_block"),
			TicketPriceMicro: parseUint(ve, f, "ticket_price_micro"),
			MaxTickets:       parseUint(ve, f, "max_tickets"),
			Category:         f["category"],
		}
		if err := ve.Err(); err != nil {
			return nil, err
		}
		return b.CreateEvent(ev)
	case IntentPurchaseTicket:
		ve := &model.ValidationError{}
		p := PurchaseTicketFields{
			EventID:          parseUint(ve, f, "event_id"),
			Sender:           f["sender"],
			TicketPriceMicro: parseUint(ve, f, "ticket_price_micro"),
		}
		if err := ve.Err(); err != nil {
			return nil, err
		}
		return b.PurchaseTicket(p)
	}
	return nil, model.NewFieldError("intent", fmt.Sprintf("unknown intent %q", intent))
}

func parseUint(ve *model.ValidationError, f Fields, key string) uint64 {
	s := strings.TrimSpace(f[key])
	if s == "" {
		ve.Add(key, "is required")
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		ve.Add(key, "must be a non-negative integer")
		return 0
	}
	return n
}

// RegisterAsset builds a register-ip call. Arguments are in the contract's
// declared order.
func (b *Builder) RegisterAsset(f RegisterAssetFields) (*CallDescriptor, error) {
	ve := &model.ValidationError{}
	ve.Require(
		"content_id", f.ContentID,
		"title", f.Title,
		"description", f.Description,
		"license_tag", f.LicenseTag,
		"content_hash", f.ContentHash,
		"category", f.Category,
		"filename", f.Filename,
	)
	RequireASCII(ve,
		"content_id", f.ContentID,
		"title", f.Title,
		"description", f.Description,
		"license_tag", f.LicenseTag,
		"content_hash", f.ContentHash,
		"category", f.Category,
		"filename", f.Filename,
	)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return b.descriptor(IntentRegisterAsset, []clarity.Value{
		clarity.ASCII(f.ContentID),
		clarity.ASCII(f.Title),
		clarity.ASCII(f.Description),
		clarity.ASCII(f.LicenseTag),
		clarity.ASCII(f.ContentHash),
		clarity.ASCII(f.Category),
		clarity.ASCII(f.Filename),
	}), nil
}

// CreateEvent builds a create-event call.
func (b *Builder) CreateEvent(f CreateEventFields) (*CallDescriptor, error) {
	ve := &model.ValidationError{}
	ve.Require(
		"content_id", f.ContentID,
		"title", f.Title,
		"description", f.Description,
		"location", f.Location,
		"category", f.Category,
	)
	RequireASCII(ve,
		"content_id", f.ContentID,
		"title", f.Title,
		"description", f.Description,
		"location", f.Location,
		"category", f.Category,
	)
	if f.EventBlock == 0 {
		ve.Add("event_block", "is required")
	}
	if f.MaxTickets == 0 {
		ve.Add("max_tickets", "must be greater than zero")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return b.descriptor(IntentCreateEvent, []clarity.Value{
		clarity.ASCII(f.ContentID),
		clarity.ASCII(f.Title),
		clarity.ASCII(f.Description),
		clarity.ASCII(f.Location),
		clarity.UInt(f.EventBlock),
		clarity.UInt(f.TicketPriceMicro),
		clarity.UInt(f.MaxTickets),
		clarity.ASCII(f.Category),
	}), nil
}

// PurchaseTicket builds a purchase-ticket call whose single post-condition
// pins the sender's outflow to exactly the ticket price. A free ticket
// carries no post-condition; Deny mode still forbids any movement.
func (b *Builder) PurchaseTicket(f PurchaseTicketFields) (*CallDescriptor, error) {
	ve := &model.ValidationError{}
	ve.Require("sender", f.Sender)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	d := b.descriptor(IntentPurchaseTicket, []clarity.Value{clarity.UInt(f.EventID)})
	d.Sender = f.Sender
	if f.TicketPriceMicro > 0 {
		d.Transfer = f.TicketPriceMicro
		d.PostConditions = []PostCondition{{
			Asset:     AssetNative,
			Principal: f.Sender,
			Condition: CondEq,
			Amount:    f.TicketPriceMicro,
		}}
	}
	return d, nil
}

func (b *Builder) descriptor(intent Intent, args []clarity.Value) *CallDescriptor {
	return &CallDescriptor{
		Intent:          intent,
		ContractAddress: b.address,
		ContractName:    b.name,
		Function:        intent.Function(),
		Args:            args,
		PostConditions:  []PostCondition{},
		Mode:            ModeDeny,
	}
}

// RequireASCII flags values that cannot be encoded as string-ascii. Pairs
// are field name, value.
func RequireASCII(ve *model.ValidationError, pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		for _, r := range pairs[i+1] {
			if r > 0x7e || (r < 0x20 && r != '\n' && r != '\t' && r != '\r') {
				ve.Add(pairs[i], "must contain printable ASCII only")
				break
			}
		}
	}
}
