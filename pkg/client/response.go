package client

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response is the raw result of a Command.
type Response struct {
	StatusCode int

	// Body is nil when the upstream sent no body (always on 304).
	Body *string

	Headers Headers
}

// NotModified returns a synthetic 304 response with no body and no headers.
func NotModified() *Response {
	return &Response{StatusCode: http.StatusNotModified, Headers: Headers{}}
}

// BodyString returns the body, or "" when absent.
func (r *Response) BodyString() string {
	if r == nil || r.Body == nil {
		return ""
	}
	return *r.Body
}

// JSONResponse is a parsed 200 response handed to a Mapper.
type JSONResponse struct {
	Body    gjson.Result
	Headers Headers
}

// Mapper projects an upstream payload into the shape that gets cached and
// decoded. It must be deterministic and free of side effects: its output is
// what a 304 replays.
type Mapper func(JSONResponse) (any, error)

// IdentityMapper keeps the upstream body as is.
func IdentityMapper(r JSONResponse) (any, error) {
	return json.RawMessage(r.Body.Raw), nil
}
