package syncgw

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoSession is returned by ExtractSession when no header carries the
// session cookie.
var ErrNoSession = errors.New("no session cookie in response")

// UnsupportedMethodError is returned before any I/O for a Command whose
// method is not one of GET, POST, PUT or DELETE.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported method: %q", e.Method)
}

// AuthenticationError reports a login that did not yield a usable session.
// Response is nil when the request never completed.
type AuthenticationError struct {
	Response *Response
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("authentication failed: status code %d: %v", e.Response.StatusCode, e.Err)
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// HTTPStatusError represents a non-2xx response. It keeps the full status,
// headers and raw body so that callers can inspect what the gateway said.
type HTTPStatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	var payload struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("status code %d: %s: %s", e.StatusCode, payload.Error, payload.Reason)
	}
	return fmt.Sprintf("status code %d, headers: %q, body: %q", e.StatusCode, e.Header, e.Body)
}

// StatusClass is the status code divided by 100.
func (e *HTTPStatusError) StatusClass() int {
	return e.StatusCode / 100
}

// Response rebuilds the buffered response the error was classified from.
func (e *HTTPStatusError) Response() *Response {
	return &Response{StatusCode: e.StatusCode, Header: e.Header, Body: e.Body}
}

// IsConflict reports whether err is an HTTPStatusError with status 409.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsNotFound reports whether err is an HTTPStatusError with status 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an HTTPStatusError with status 401.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, code int) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// ParseError reports a multipart body that could not be decoded. State is
// the parser state at the time of failure and Buffered holds the bytes that
// had been read but not consumed.
type ParseError struct {
	State    ParserState
	Buffered []byte
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("multipart: %s while %s (%d bytes buffered)", e.Reason, e.State, len(e.Buffered))
}

// TransportError wraps a failure of the underlying HTTP transport.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
