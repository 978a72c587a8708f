package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNotFound         = fmt.Errorf("not found")
	ErrValidation       = fmt.Errorf("validation error")
	ErrStoreFailure     = fmt.Errorf("store failure")
)

var (
	ErrUsernameRequired   = fmt.Errorf("%w: username is required", ErrValidation)
	ErrInvalidDestination = fmt.Errorf("%w: exactly one of room or recipientId is required", ErrValidation)
	ErrSelfMessage        = fmt.Errorf("%w: cannot send a private message to yourself", ErrValidation)
	ErrInvalidKind        = fmt.Errorf("%w: unknown message kind", ErrValidation)
	ErrInvalidFileURL     = fmt.Errorf("%w: file message body must be an URL", ErrValidation)
	ErrContentTooLong     = fmt.Errorf("%w: message body is too long", ErrValidation)
	ErrRoomMessageRead    = fmt.Errorf("%w: read receipts only apply to private messages", ErrValidation)
	ErrUnknownEvent       = fmt.Errorf("%w: unknown event", ErrValidation)
	ErrInvalidPayload     = fmt.Errorf("%w: invalid payload", ErrValidation)

	ErrMessageNotFound   = fmt.Errorf("%w: message", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("%w: user", ErrNotFound)
	ErrRecipientNotFound = fmt.Errorf("%w: recipient", ErrNotFound)
	ErrRoomNotJoined     = fmt.Errorf("%w: room not joined", ErrNotFound)

	ErrInvalidToken  = fmt.Errorf("%w: invalid token", ErrNotAuthenticated)
	ErrSessionClosed = fmt.Errorf("%w: session closed", ErrNotAuthenticated)

	ErrSinkFull   = fmt.Errorf("sink buffer full")
	ErrSinkClosed = fmt.Errorf("sink closed")

	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
)

// ErrorCode is the error taxonomy reported to clients.
type ErrorCode string

const (
	CodeNotAuthenticated ErrorCode = "NotAuthenticated"
	CodeNotFound         ErrorCode = "NotFound"
	CodeValidation       ErrorCode = "ValidationError"
	CodeStoreFailure     ErrorCode = "StoreFailure"
	CodeInternal         ErrorCode = "Internal"
)

// Code classifies err. Unknown errors are Internal.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrNotAuthenticated):
		return CodeNotAuthenticated
	case stderrors.Is(err, ErrNotFound):
		return CodeNotFound
	case stderrors.Is(err, ErrValidation):
		return CodeValidation
	case stderrors.Is(err, ErrStoreFailure):
		return CodeStoreFailure
	default:
		return CodeInternal
	}
}

// Validation wraps err (typically from the validator) as a ValidationError.
func Validation(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// StoreFailure wraps a storage error so it is reported as StoreFailure.
func StoreFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
