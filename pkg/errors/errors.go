// Package errors carries the API error taxonomy. Every error that reaches the
// HTTP layer is rendered from its Code, so handlers never pick status codes.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeProvider         Code = "PAYMENT_PROVIDER_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is exposed to clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func clientFault(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details}
}

func serverFault(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       clientFault(http.StatusBadRequest, "validation failed", true),
	CodeSignatureInvalid: clientFault(http.StatusBadRequest, "signature verification failed", false),
	CodeUnauthorized:     clientFault(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:        clientFault(http.StatusForbidden, "access denied", false),
	CodeNotFound:         clientFault(http.StatusNotFound, "resource not found", false),
	CodeConflict:         clientFault(http.StatusConflict, "conflict detected", false),
	CodePayloadTooLarge:  clientFault(http.StatusRequestEntityTooLarge, "request body too large", true),
	CodeStateConflict:    clientFault(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeProvider:         clientFault(http.StatusBadGateway, "payment provider rejected the request", true),
	CodeInternal:         serverFault(http.StatusInternalServerError, "internal server error", false),
	CodeDependency:       serverFault(http.StatusServiceUnavailable, "dependency unavailable", true),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. Message is for logs; clients see the public
// message of the code plus Details when the code allows them.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// NotFound builds a CodeNotFound error naming the missing entity.
func NotFound(entity string) *Error {
	return New(CodeNotFound, entity+" not found")
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost coded error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
