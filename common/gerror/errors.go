package gerror

import (
	"errors"
	"net/http"
)

const (
	ErrCodeInternal         Code = "Internal"
	ErrCodeValidationFailed Code = "ValidationFailed"
	ErrCodeNotFound         Code = "NotFound"
	ErrCodeUnauthorized     Code = "Unauthorized"
	ErrCodeAlreadyExists    Code = "AlreadyExists"
	ErrHttpOperationFailed  Code = "HttpOperationFailed"
	ErrCodeInvalidPinRule   Code = "InvalidPinRule"
	ErrCodePinFailed        Code = "PinFailed"
)

// ToError finds the first Error in err's chain (including every error of a multierror) with the
// specified code. Returns nil if there is none.
func ToError(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	var gErr Error
	if errors.As(err, &gErr) && gErr.Code() == code {
		return &gErr
	}
	// errors.As stops at the first Error; keep looking further down the chain for the code.
	if inner := errors.Unwrap(err); inner != nil {
		return ToError(inner, code)
	}
	return nil
}

// Is returns true if err's chain contains an Error with the specified code.
func Is(err error, code Code) bool {
	return ToError(err, code) != nil
}

func NewErrInternal() Error {
	return NewError("An internal server error occurred", AudienceExternal, ErrCodeInternal, http.StatusInternalServerError, nil)
}

func IsInternal(err error) bool {
	return Is(err, ErrCodeInternal)
}

func NewErrValidationFailed(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeValidationFailed, http.StatusBadRequest, nil)
}

func IsValidationFailed(err error) bool {
	return Is(err, ErrCodeValidationFailed)
}

func NewErrNotFound(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeNotFound, http.StatusNotFound, nil)
}

func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

func NewErrUnauthorized(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeUnauthorized, http.StatusUnauthorized, nil)
}

func IsUnauthorized(err error) bool {
	return Is(err, ErrCodeUnauthorized)
}

func NewErrAlreadyExists(message string) Error {
	return NewError(message, AudienceExternal, ErrCodeAlreadyExists, http.StatusConflict, nil)
}

func IsAlreadyExists(err error) bool {
	return Is(err, ErrCodeAlreadyExists)
}

// NewErrInvalidPinRule is returned for a pin rule that can't be evaluated, e.g. one with a malformed
// branch pattern. Such a rule never pins anything.
func NewErrInvalidPinRule(message string, err error) Error {
	return NewError(message, AudienceExternal, ErrCodeInvalidPinRule, http.StatusBadRequest, err)
}

func IsInvalidPinRule(err error) bool {
	return Is(err, ErrCodeInvalidPinRule)
}

// NewErrPinFailed is returned when the build server refused or failed to pin a build.
func NewErrPinFailed(message string, err error) Error {
	return NewError(message, AudienceInternal, ErrCodePinFailed, http.StatusBadGateway, err)
}

func IsPinFailed(err error) bool {
	return Is(err, ErrCodePinFailed)
}
