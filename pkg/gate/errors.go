package gate

import (
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/vaultgate/pkg/audit"
	"github.com/Mindburn-Labs/vaultgate/pkg/policy"
	"github.com/Mindburn-Labs/vaultgate/pkg/threshold"
)

// Code classifies gate errors so callers can explain why an operation
// failed without parsing message strings.
type Code string

const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeExpired            Code = "EXPIRED"
	CodeAlreadySigned      Code = "ALREADY_SIGNED"
	CodePaused             Code = "PAUSED"
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
	CodeInternal           Code = "INTERNAL"
)

// Error is a gate-level failure with a stable code and a
// human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the Code from err, or CodeInternal for foreign
// errors.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

func unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// translate maps component sentinel errors onto gate codes, preserving
// the original message.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, threshold.ErrNotFound),
		errors.Is(err, policy.ErrNotFound),
		errors.Is(err, audit.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, threshold.ErrExpired):
		return &Error{Code: CodeExpired, Message: err.Error()}
	case errors.Is(err, threshold.ErrAlreadySigned):
		return &Error{Code: CodeAlreadySigned, Message: err.Error()}
	case errors.Is(err, threshold.ErrInvalidStatus),
		errors.Is(err, audit.ErrResultRecorded):
		return &Error{Code: CodeInvalidState, Message: err.Error()}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
