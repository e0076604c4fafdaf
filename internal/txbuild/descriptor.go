// Package txbuild turns typed intents into contract-call descriptors with
// their post-condition set.
package txbuild

import (
	"fmt"

	"github.com/alfredjeanlab/chainreg/internal/clarity"
)

// Intent names a user operation that maps to one contract function.
type Intent string

const (
	IntentRegisterAsset  Intent = "register-asset"
	IntentCreateEvent    Intent = "create-event"
	IntentPurchaseTicket Intent = "purchase-ticket"
)

func (i Intent) String() string { return string(i) }

// Function returns the contract function the intent calls.
func (i Intent) Function() string {
	switch i {
	case IntentRegisterAsset:
		return "register-ip"
	case IntentCreateEvent:
		return "create-event"
	case IntentPurchaseTicket:
		return "purchase-ticket"
	}
	return ""
}

// Mode controls what happens to asset movements not covered by a
// post-condition. Deny aborts the transaction.
type Mode string

const (
	ModeAllow Mode = "allow"
	ModeDeny  Mode = "deny"
)

// Condition compares the actual movement against Amount.
type Condition string

const (
	CondEq  Condition = "eq"
	CondGte Condition = "gte"
	CondLte Condition = "lte"
)

// AssetNative is the ledger's native token.
const AssetNative = "STX"

// PostCondition asserts how much of an asset Principal sends.
type PostCondition struct {
	Asset     string    `json:"asset"`
	Principal string    `json:"principal"`
	Condition Condition `json:"condition"`
	Amount    uint64    `json:"amount"`
}

// CallDescriptor is a fully specified contract call, consumed once by the
// submitter.
type CallDescriptor struct {
	Intent          Intent          `json:"intent"`
	ContractAddress string          `json:"contract_address"`
	ContractName    string          `json:"contract_name"`
	Function        string          `json:"function"`
	Args            []clarity.Value `json:"args"`
	PostConditions  []PostCondition `json:"post_conditions"`
	Mode            Mode            `json:"mode"`
	Transfer        uint64          `json:"transfer"` // declared movement in micro-units
	Sender          string          `json:"sender,omitempty"`
}

// Validate enforces the Deny-by-default policy: only the declared transfer
// may move, and it must be covered by exactly one eq post-condition on the
// sender.
func (d *CallDescriptor) Validate() error {
	if d.ContractAddress == "" || d.ContractName == "" || d.Function == "" {
		return fmt.Errorf("descriptor has no contract target")
	}
	if d.Mode != ModeDeny {
		return fmt.Errorf("post-condition mode must be %s, got %q", ModeDeny, d.Mode)
	}
	if d.Transfer == 0 {
		if len(d.PostConditions) != 0 {
			return fmt.Errorf("non-transferring call carries %d post-conditions", len(d.PostConditions))
		}
		return nil
	}
	if d.Sender == "" {
		return fmt.Errorf("transferring call has no sender")
	}
	if len(d.PostConditions) != 1 {
		return fmt.Errorf("transferring call must carry exactly one post-condition, got %d", len(d.PostConditions))
	}
	pc := d.PostConditions[0]
	if pc.Principal != d.Sender {
		return fmt.Errorf("post-condition principal %s is not the sender %s", pc.Principal, d.Sender)
	}
	if pc.Condition != CondEq {
		return fmt.Errorf("post-condition on %s must be %s, got %q", pc.Principal, CondEq, pc.Condition)
	}
	if pc.Asset != AssetNative {
		return fmt.Errorf("unexpected post-condition asset %q", pc.Asset)
	}
	if pc.Amount != d.Transfer {
		return fmt.Errorf("post-condition covers %d micro-units, declared transfer is %d", pc.Amount, d.Transfer)
	}
	return nil
}
