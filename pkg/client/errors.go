package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies request pipeline errors.
type Kind string

const (
	// KindIO represents transport failures (DNS, connection, timeout). May be transient.
	KindIO Kind = "io"

	// KindHTTP represents an upstream response with an unexpected status code.
	KindHTTP Kind = "http"

	// KindValidation represents a violated caller-side precondition.
	KindValidation Kind = "validation"

	// KindDecode represents a body that could not be interpreted as JSON.
	KindDecode Kind = "decode"

	// KindRateLimit represents a request refused locally to protect the upstream quota.
	KindRateLimit Kind = "rate_limit"

	// KindUnknown is used for errors that carry no classification.
	KindUnknown Kind = "unknown"
)

// Error is the typed error returned by every component of the pipeline.
type Error struct {
	Kind       Kind
	URI        string
	StatusCode int

	// Key is the offending cache key, if any.
	Key string

	// Message is a plain description, used when Payload is empty.
	Message string

	// Payload is the upstream JSON error body, kept verbatim.
	Payload json.RawMessage

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.URI != "" {
		fmt.Fprintf(&b, " for %s", e.URI)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " on key %q", e.Key)
	}
	switch {
	case len(e.Payload) > 0:
		fmt.Fprintf(&b, ": %s", e.Payload)
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as {"type": kind, "error": payload}. The
// payload is the upstream JSON body when there is one, a string otherwise.
func (e *Error) MarshalJSON() ([]byte, error) {
	var payload any
	switch {
	case len(e.Payload) > 0:
		payload = e.Payload
	case e.Message != "":
		payload = e.Message
	case e.Err != nil:
		payload = e.Err.Error()
	default:
		payload = "Unknown error"
	}
	return json.Marshal(struct {
		Type  Kind `json:"type"`
		Error any  `json:"error"`
	}{Type: e.Kind, Error: payload})
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// NewValidationError creates a validation error with a plain message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewIOError wraps a transport failure for uri.
func NewIOError(uri string, err error) *Error {
	return &Error{Kind: KindIO, URI: uri, Err: err}
}

// NewHTTPError builds an HTTP error from an upstream response. A JSON body is
// kept as payload, anything else becomes the message.
func NewHTTPError(uri string, resp *Response) *Error {
	e := &Error{Kind: KindHTTP, URI: uri}
	if resp == nil {
		e.Message = "no response"
		return e
	}
	e.StatusCode = resp.StatusCode

	body := strings.TrimSpace(resp.BodyString())
	switch {
	case body != "" && gjson.Valid(body):
		e.Payload = json.RawMessage(body)
	case body != "":
		e.Message = body
	default:
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
