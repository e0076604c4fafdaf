package model

import (
	"errors"
	"fmt"
	"testing"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidationError_Require(t *testing.T) {
	ve := &ValidationError{}
	ve.Require("title", "x", "description", "  \t", "category", "")
	errs := fieldErrors(t, ve.Err())
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	if !hasFieldError(errs, "description") || !hasFieldError(errs, "category") {
		t.Errorf("missing expected fields: %v", errs)
	}
	if ve.Field() != "description" {
		t.Errorf("Field() = %q, want description", ve.Field())
	}
}

func TestValidationError_EmptyIsNil(t *testing.T) {
	ve := &ValidationError{}
	ve.Require("title", "ok")
	if err := ve.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestIsValidation_Wrapped(t *testing.T) {
	err := fmt.Errorf("stage: %w", NewFieldError("file", "is required"))
	if !IsValidation(err) {
		t.Error("IsValidation should see through wrapping")
	}
	if IsValidation(&UploadError{Reason: "x"}) {
		t.Error("UploadError is not a validation error")
	}
}

func TestContractError_Message(t *testing.T) {
	for _, tc := range []struct {
		err  ContractError
		want string
	}{
		{ContractError{Kind: ContractRejected}, "transaction rejected by signer"},
		{ContractError{Kind: ContractInsufficientFunds}, "insufficient funds"},
		{ContractError{Kind: ContractBroadcastRejected, Message: "(err u3)"}, "(err u3)"},
		{ContractError{Kind: ContractUnknown}, "unknown"},
	} {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("%s: Error() = %q, want %q", tc.err.Kind, got, tc.want)
		}
	}
}

func TestUploadError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &UploadError{Reason: "pin", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("UploadError should unwrap to its cause")
	}
}

func TestEventRecord_Helpers(t *testing.T) {
	for _, tc := range []struct {
		name        string
		ev          EventRecord
		height      uint64
		remaining   uint64
		upcoming    bool
		purchasable bool
	}{
		{"open", EventRecord{EventBlock: 200, MaxTickets: 10, SoldTickets: 3, IsActive: true}, 100, 7, true, true},
		{"sold out", EventRecord{EventBlock: 200, MaxTickets: 1, SoldTickets: 1, IsActive: true}, 100, 0, true, false},
		{"past", EventRecord{EventBlock: 100, MaxTickets: 5, IsActive: true}, 100, 5, false, false},
		{"inactive", EventRecord{EventBlock: 200, MaxTickets: 5}, 100, 5, false, false},
	} {
		if got := tc.ev.Remaining(); got != tc.remaining {
			t.Errorf("%s: Remaining() = %d, want %d", tc.name, got, tc.remaining)
		}
		if got := tc.ev.Upcoming(tc.height); got != tc.upcoming {
			t.Errorf("%s: Upcoming() = %v, want %v", tc.name, got, tc.upcoming)
		}
		if got := tc.ev.Purchasable(tc.height); got != tc.purchasable {
			t.Errorf("%s: Purchasable() = %v, want %v", tc.name, got, tc.purchasable)
		}
	}
}

func TestNotificationKind_IsValid(t *testing.T) {
	for _, tc := range []struct {
		kind NotificationKind
		want bool
	}{
		{NotifyInfo, true},
		{NotifySuccess, true},
		{NotifyError, true},
		{NotificationKind(""), false},
		{NotificationKind("warn"), false},
	} {
		if got := tc.kind.IsValid(); got != tc.want {
			t.Errorf("NotificationKind(%q).IsValid() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
