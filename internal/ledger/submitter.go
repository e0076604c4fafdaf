package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
)

// Broadcaster delivers a signed call to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *SignedCall) (string, error)
}

// Submitter validates, signs and broadcasts a descriptor exactly once.
// Submissions are never retried: a retry could double-spend.
type Submitter struct {
	signer      Signer
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(signer Signer, broadcaster Broadcaster, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{signer: signer, broadcaster: broadcaster, logger: logger}
}

// Submit returns the transaction id once the node accepts the call. It
// does not wait for confirmation. Failures are *model.ContractError,
// except a descriptor that breaks the post-condition policy, which is a
// *model.ValidationError raised before anything is signed.
func (s *Submitter) Submit(ctx context.Context, d *txbuild.CallDescriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", model.NewFieldError("post_conditions", err.Error())
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	signed, err := s.signer.Sign(ctx, d)
	if err != nil {
		if errors.Is(err, ErrSignRejected) {
			return "", &model.ContractError{Kind: model.ContractRejected, Message: err.Error()}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &model.ContractError{Kind: model.ContractUnknown, Message: err.Error()}
	}

	txid, err := s.broadcaster.Broadcast(ctx, signed)
	if err != nil {
		cerr := classify(err)
		s.logger.Warn("broadcast failed", "function", d.Function, "kind", cerr.Kind, "err", err)
		return "", cerr
	}
	s.logger.Info("broadcast transaction", "function", d.Function, "txid", txid)
	return txid, nil
}

func classify(err error) *model.ContractError {
	var be *BroadcastError
	if errors.As(err, &be) {
		msg := be.Message()
		if be.Reason == "NotEnoughFunds" || strings.Contains(strings.ToLower(msg), "insufficient") {
			return &model.ContractError{Kind: model.ContractInsufficientFunds, Message: msg, Reason: be.Reason}
		}
		return &model.ContractError{Kind: model.ContractBroadcastRejected, Message: msg, Reason: be.Reason}
	}
	return &model.ContractError{Kind: model.ContractUnknown, Message: err.Error()}
}

// ExplorerURL links to a transaction in the block explorer.
func ExplorerURL(explorer, txid, network string) string {
	u := strings.TrimRight(explorer, "/") + "/txid/" + url.PathEscape(txid)
	if network != "" {
		u += "?chain=" + url.QueryEscape(network)
	}
	return u
}
