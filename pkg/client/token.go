package client

import "encoding/base64"

// AccessToken is an authorization credential sent as a single header.
type AccessToken interface {
	// Key returns the header name.
	Key() (string, error)

	// Value returns the header value.
	Value() (string, error)
}

// Unauthorized is the token of a client that was never authorized. Reading
// it fails, so a forgotten Authorized call surfaces before any request is sent.
var Unauthorized AccessToken = unauthorized{}

type unauthorized struct{}

func (unauthorized) Key() (string, error)   { return "", errUnauthorized() }
func (unauthorized) Value() (string, error) { return "", errUnauthorized() }

func errUnauthorized() error {
	return NewValidationError("The access token for current provider is not set")
}

type headerToken struct {
	value string
}

func (t headerToken) Key() (string, error)   { return HeaderAuthorization, nil }
func (t headerToken) Value() (string, error) { return t.value, nil }

// Bearer returns an "Authorization: Bearer <token>" credential.
func Bearer(token string) AccessToken {
	return headerToken{value: "Bearer " + token}
}

// Basic returns an "Authorization: Basic <base64(username:password)>" credential.
func Basic(username, password string) AccessToken {
	return BasicEncoded(base64.StdEncoding.EncodeToString([]byte(username + ":" + password)))
}

// BasicEncoded is Basic with the credentials already encoded.
func BasicEncoded(encoded string) AccessToken {
	return headerToken{value: "Basic " + encoded}
}
