package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// CodeInvalidInput covers missing or malformed request fields.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeUnauthenticated covers webhook signature verification failures.
	// It maps to 400 on purpose: a 401 on the webhook route would hint at
	// the endpoint's semantics to a probing caller.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	// CodeUnconfigured covers missing secrets or credentials. Operator
	// error, not client error.
	CodeUnconfigured Code = "UNCONFIGURED"
	// CodeUpstream covers failed calls to Stripe or the ledger store.
	CodeUpstream Code = "UPSTREAM_ERROR"
	CodeInternal Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeInvalidInput: {
		HTTPStatus:    http.StatusBadRequest,
		Retryable:     false,
		PublicMessage: "invalid request",
	},
	CodeUnauthenticated: {
		HTTPStatus:    http.StatusBadRequest,
		Retryable:     false,
		PublicMessage: "invalid signature",
	},
	CodeUnconfigured: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     false,
		PublicMessage: "service misconfigured",
	},
	CodeUpstream: {
		HTTPStatus:    http.StatusBadGateway,
		Retryable:     true,
		PublicMessage: "upstream dependency failed",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal error",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
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

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
