package errors

import (
	"errors"
	"net/http"
	"strings"
)

type ErrCode string

const (
	ErrCodeNotImplemented    ErrCode = "NotImplemented"
	ErrCodeNotFound          ErrCode = "NotFound"
	ErrCodeServiceFailure    ErrCode = "ServiceFailure"
	ErrCodeBadRequest        ErrCode = "BadRequest"
	ErrCodeDependencyFailure ErrCode = "DependencyFailure"
	// sample rejected for poor accuracy. Expected in steady state, never fatal
	ErrCodeLowAccuracy ErrCode = "LowAccuracy"
	// discovery or reverse geocode call failed; picked up again on the next natural cycle
	ErrCodeNetworkFailure ErrCode = "NetworkFailure"
	// pin vanished from discovery while still inside the interaction zone
	ErrCodeStaleZoneEntry ErrCode = "StaleZoneEntry"
)

// Err is the error type shared by all serendipity components.
type Err struct {
	Code  ErrCode
	msg   string
	cause error
}

func (e *Err) Error() string {
	return e.msg
}

// Trace returns the chain of causes associated with the error
func (e *Err) Trace() string {
	b := &strings.Builder{}
	b.WriteString(e.msg)
	indent := "\n"
	err := errors.Unwrap(e)
	for err != nil {
		indent += "\t"
		b.WriteString(indent)
		b.WriteString("Caused by: ")
		b.WriteString(err.Error())
		err = errors.Unwrap(err)
	}
	return b.String()
}

func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *Err) WithCause(c error) *Err {
	e.cause = c
	return e
}

// prefer appSpecificErr(msg) over appSpecificErr(msg, cause) since the latter's method signature has less
// readability - user needs to look up docs to know the 2nd param is for cause, while the first one can use
// WithCause() to be explicit
func NewServiceFailure(m string) *Err {
	return &Err{Code: ErrCodeServiceFailure, msg: m}
}

func NewNotFound(m string) *Err {
	return &Err{Code: ErrCodeNotFound, msg: m}
}

func NewBadInput(m string) *Err {
	return &Err{Code: ErrCodeBadRequest, msg: m}
}

func NewDependencyFailure(m string) *Err {
	return &Err{Code: ErrCodeDependencyFailure, msg: m}
}

func NewLowAccuracy(m string) *Err {
	return &Err{Code: ErrCodeLowAccuracy, msg: m}
}

func NewNetworkFailure(m string) *Err {
	return &Err{Code: ErrCodeNetworkFailure, msg: m}
}

func NewStaleZoneEntry(m string) *Err {
	return &Err{Code: ErrCodeStaleZoneEntry, msg: m}
}

func NewNotImplemented() *Err {
	return &Err{Code: ErrCodeNotImplemented, msg: "Not implemented"}
}

// HasCode reports whether any *Err in err's chain carries the given code.
func HasCode(err error, code ErrCode) bool {
	for err != nil {
		if e, ok := err.(*Err); ok && e != nil && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func IsNetworkFailure(err error) bool {
	return HasCode(err, ErrCodeNetworkFailure)
}

// StatusCode returns the http response status code associated with the Err value
func (e *Err) StatusCode() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeBadRequest, ErrCodeLowAccuracy:
		return http.StatusBadRequest
	case ErrCodeNetworkFailure, ErrCodeDependencyFailure:
		return http.StatusBadGateway
	case ErrCodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
