package cache

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Separator joins the kind prefix and the logical key before encoding.
const Separator = "[$---$]"

// ErrMalformedKey indicates a raw key that cannot be decoded into a Key.
var ErrMalformedKey = errors.New("malformed cache key")

// Kind tags what a cache entry holds for a logical key.
type Kind int

const (
	// KindETag holds the upstream ETag of a resource.
	KindETag Kind = iota + 1

	// KindResponse holds the canonical (post-mapping) JSON body.
	KindResponse

	// KindTime holds the timestamp of the last RESPONSE write.
	KindTime
)

var kindPrefixes = map[Kind]string{
	KindETag:     "etag",
	KindResponse: "res",
	KindTime:     "time",
}

// Prefix returns the prefix stored in the raw key.
func (k Kind) Prefix() string {
	return kindPrefixes[k]
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if p, ok := kindPrefixes[k]; ok {
		return p
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func kindFromPrefix(prefix string) (Kind, bool) {
	for kind, p := range kindPrefixes {
		if strings.EqualFold(p, prefix) {
			return kind, true
		}
	}
	return 0, false
}

// Key addresses one entry of a cached resource: the kind of data and the
// logical key (usually the request URI) it belongs to.
type Key struct {
	Kind    Kind
	Logical string
}

// NewKey creates a key of the given kind for a logical key.
func NewKey(kind Kind, logical string) Key {
	return Key{Kind: kind, Logical: logical}
}

// Raw encodes the key as {prefix}[$---$]{logical} in unpadded base64, which is
// safe to use as a flat key in any store.
//
// Example:
//
//	NewKey(KindETag, "/").Raw() == "ZXRhZ1skLS0tJF0v"
func (k Key) Raw() string {
	return base64.RawStdEncoding.EncodeToString([]byte(k.Kind.Prefix() + Separator + k.Logical))
}

// Switch returns a sibling key with the same logical part and a new kind.
func (k Key) Switch(kind Kind) Key {
	if k.Kind == kind {
		return k
	}
	return Key{Kind: kind, Logical: k.Logical}
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Kind.String() + ":" + k.Logical
}

// KeyError describes why a raw key could not be parsed.
type KeyError struct {
	Raw    string
	Reason string
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedKey, e.Raw, e.Reason)
}

// Unwrap allows errors.Is(err, ErrMalformedKey).
func (e *KeyError) Unwrap() error {
	return ErrMalformedKey
}

// ParseKey decodes a raw key produced by Key.Raw. It never returns a partially
// populated key: any failure yields a *KeyError.
func ParseKey(raw string) (Key, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return Key{}, &KeyError{Raw: raw, Reason: "invalid base64: " + err.Error()}
	}

	// The prefix never contains the separator, so splitting on the first
	// occurrence keeps logical keys that contain it intact.
	prefix, logical, found := strings.Cut(string(decoded), Separator)
	if !found {
		return Key{}, &KeyError{
			Raw:    raw,
			Reason: fmt.Sprintf("must follow the format {prefix}%s{value}, got %q", Separator, decoded),
		}
	}

	kind, ok := kindFromPrefix(prefix)
	if !ok {
		return Key{}, &KeyError{Raw: raw, Reason: fmt.Sprintf("unknown kind prefix %q", prefix)}
	}

	return Key{Kind: kind, Logical: logical}, nil
}
