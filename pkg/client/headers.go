package client

import (
	"net/http"
	"strings"
)

// Header names used by the pipeline.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderETag          = "ETag"
	HeaderIfNoneMatch   = "If-None-Match"
	HeaderUserAgent     = "User-Agent"
)

// Headers maps a header name to its values, in insertion order.
//
// Names are stored as given. Lookups try the exact name first and then fall
// back to a case-insensitive match, so "ETag" finds the "Etag" key produced
// by net/http.
type Headers map[string][]string

// name returns the stored name matching name, if any.
func (h Headers) name(name string) (string, bool) {
	if _, ok := h[name]; ok {
		return name, true
	}
	for k := range h {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Add appends value to the values of name.
func (h Headers) Add(name, value string) {
	if stored, ok := h.name(name); ok {
		name = stored
	}
	h[name] = append(h[name], value)
}

// Set replaces all values of name with value.
func (h Headers) Set(name, value string) {
	h.Del(name)
	h[name] = []string{value}
}

// Del removes name.
func (h Headers) Del(name string) {
	for {
		stored, ok := h.name(name)
		if !ok {
			return
		}
		delete(h, stored)
	}
}

// Get returns the first value of name, or "".
func (h Headers) Get(name string) string {
	values := h.Values(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns all values of name.
func (h Headers) Values(name string) []string {
	stored, ok := h.name(name)
	if !ok {
		return nil
	}
	return h[stored]
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.name(name)
	return ok
}

// Clone returns a deep copy of h. Cloning nil yields an empty map.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// HTTP converts h to an http.Header, canonicalizing names.
func (h Headers) HTTP() http.Header {
	out := make(http.Header, len(h))
	for k, values := range h {
		for _, v := range values {
			out.Add(k, v)
		}
	}
	return out
}

// FromHTTP converts an http.Header to Headers.
func FromHTTP(header http.Header) Headers {
	out := make(Headers, len(header))
	for k, v := range header {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Merge appends every value of other to h.
func (h Headers) Merge(other Headers) {
	for k, values := range other {
		for _, v := range values {
			h.Add(k, v)
		}
	}
}
