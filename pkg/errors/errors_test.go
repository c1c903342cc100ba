package errors_test

import (
	"fmt"
	"testing"

	"omnitip-relay/pkg/errors"
)

func TestAppErrorMessage(t *testing.T) {
	err := errors.New(errors.ErrStorageFault, "insert tip", fmt.Errorf("disk full"))
	if got, want := err.Error(), "[STORAGE_FAULT] insert tip: disk full"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	bare := errors.New(errors.ErrInvalidSide, "unknown side France", nil)
	if got, want := bare.Error(), "[INVALID_SIDE] unknown side France"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := errors.New(errors.ErrLedgerCallFailed, "send tx", fmt.Errorf("nonce too low"))
	wrapped := fmt.Errorf("ingest: %w", inner)
	outer := errors.New(errors.ErrStorageFault, "record", wrapped)

	if !errors.HasCode(wrapped, errors.ErrLedgerCallFailed) {
		t.Error("expected wrapped error to carry LEDGER_CALL_FAILED")
	}
	if !errors.HasCode(outer, errors.ErrLedgerCallFailed) {
		t.Error("expected nested AppError code to be found")
	}
	if errors.HasCode(inner, errors.ErrInvalidSide) {
		t.Error("did not expect INVALID_SIDE")
	}
	if errors.HasCode(nil, errors.ErrStorageFault) {
		t.Error("nil error must not carry a code")
	}
	if got := errors.Code(wrapped); got != errors.ErrLedgerCallFailed {
		t.Errorf("expected outermost code LEDGER_CALL_FAILED, got %q", got)
	}
	if got := errors.Code(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty code, got %q", got)
	}
}
