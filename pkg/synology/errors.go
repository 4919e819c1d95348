package synology

import (
	"errors"
	"strconv"
)

// AuthenticationError - login rejected by the device, malformed login response
// or request attempted without a session.
type AuthenticationError struct {
	Code int // device error code, 0 if unknown
	Raw  []byte
	Err  error
}

func (e *AuthenticationError) Error() string {
	s := "synology: authentication failed"
	if e.Code != 0 {
		s += ": code " + strconv.Itoa(e.Code)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// TransportError - network failure, timeout or non-2xx HTTP status.
// StatusCode is 0 when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return "synology: wrong status: " + strconv.Itoa(e.StatusCode)
	}
	if e.Err != nil {
		return "synology: transport: " + e.Err.Error()
	}
	return "synology: transport"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request was cut by a deadline.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return "synology: unsupported method: " + strconv.Quote(e.Method)
}

// APIError - the device answered but its success flag is not true.
// Raw holds the whole response body for diagnostics.
type APIError struct {
	Code int
	Raw  []byte
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return "synology: api error " + strconv.Itoa(e.Code) + ": " + string(e.Raw)
	}
	return "synology: api error: " + string(e.Raw)
}

// SessionInvalid reports whether the device rejected the session token.
func (e *APIError) SessionInvalid() bool {
	switch e.Code {
	case CodeNoPermission, CodeSessionTimeout, CodeSessionInterrupted, CodeSessionNotFound:
		return true
	}
	return false
}

// Common error codes of the Synology Web API.
const (
	CodeUnknown            = 100
	CodeInvalidParameter   = 101
	CodeNoSuchAPI          = 102
	CodeNoSuchMethod       = 103
	CodeNotSupportVersion  = 104
	CodeNoPermission       = 105
	CodeSessionTimeout     = 106
	CodeSessionInterrupted = 107
	CodeSessionNotFound    = 119

	CodeAuthWrongCredentials = 400
	CodeAuthAccountDisabled  = 401
	CodeAuthPermissionDenied = 402
)

var errNoSession = errors.New("no session, call Authenticate first")
var errNoToken = errors.New("response has no sid")
var errClosed = errors.New("client closed")
