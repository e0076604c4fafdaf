package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a ledger lookup resolves to no record.
var ErrNotFound = errors.New("not found")

// UploadError reports a content-store failure. Uploads are never retried.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %s: %v", e.Reason, e.Err)
	}
	return "upload failed: " + e.Reason
}

func (e *UploadError) Unwrap() error { return e.Err }

// ContractErrorKind classifies a submission failure.
type ContractErrorKind string

const (
	ContractRejected          ContractErrorKind = "rejected"
	ContractInsufficientFunds ContractErrorKind = "insufficient_funds"
	ContractBroadcastRejected ContractErrorKind = "broadcast_rejected"
	ContractUnknown           ContractErrorKind = "unknown"
)

// ContractError reports a failed ledger submission. Message carries the
// node's own text verbatim when there is one; Reason is the node's reason
// code, kept apart so Message is never rewritten.
type ContractError struct {
	Kind    ContractErrorKind
	Message string
	Reason  string
}

func (e *ContractError) Error() string {
	switch e.Kind {
	case ContractRejected:
		return "transaction rejected by signer"
	case ContractInsufficientFunds:
		if e.Message != "" {
			return "insufficient funds: " + e.Message
		}
		return "insufficient funds"
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// DecodeError reports a ledger response that does not match the expected
// record shape. The reconciler logs it and treats the record as absent.
type DecodeError struct {
	Kind   string
	Index  uint64
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s %d: %s", e.Kind, e.Index, e.Reason)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
