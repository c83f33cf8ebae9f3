package client

import (
	"context"
	"encoding/json"
	"reflect"
)

// FastCacheClient memoizes decoded values per URI in front of another Client.
//
// Hits touch neither the network nor the cache store. The memo is unbounded
// and never evicted, and the client is not safe for concurrent use: create one
// per aggregation (one incoming request, one paginated walk) and drop it.
//
// Memo entries are keyed by URI only. A hit is served when out has the type
// the value was first decoded into; otherwise the request goes to the
// wrapped client. Every hit decodes a fresh copy, so callers may mutate what
// they get back.
type FastCacheClient struct {
	delegate Client
	memo     map[string]memoEntry
}

type memoEntry struct {
	typ  reflect.Type
	body []byte
}

// NewFastCacheClient wraps delegate with an empty memo.
func NewFastCacheClient(delegate Client) *FastCacheClient {
	return &FastCacheClient{
		delegate: delegate,
		memo:     make(map[string]memoEntry),
	}
}

// Request implements Client.
func (c *FastCacheClient) Request(ctx context.Context, uri string, out any, opts ...RequestOption) error {
	target := reflect.ValueOf(out)
	if out == nil || target.Kind() != reflect.Pointer || target.IsNil() {
		return c.delegate.Request(ctx, uri, out, opts...)
	}
	typ := target.Elem().Type()

	if e, ok := c.memo[uri]; ok && e.typ == typ {
		fresh := reflect.New(typ)
		if err := json.Unmarshal(e.body, fresh.Interface()); err == nil {
			target.Elem().Set(fresh.Elem())
			fastCacheHits.Inc()
			return nil
		}
		delete(c.memo, uri)
	}

	if err := c.delegate.Request(ctx, uri, out, opts...); err != nil {
		return err
	}

	body, err := json.Marshal(out)
	if err != nil {
		// Not memoizable; the caller still has its value.
		return nil
	}
	c.memo[uri] = memoEntry{typ: typ, body: body}
	return nil
}

// Authorized returns a fast cache with an empty memo over the newly
// authorized delegate.
func (c *FastCacheClient) Authorized(token AccessToken) Client {
	return NewFastCacheClient(c.delegate.Authorized(token))
}

// FastCache returns c.
func (c *FastCacheClient) FastCache() Client {
	return c
}

// Len returns the number of memoized URIs.
func (c *FastCacheClient) Len() int {
	return len(c.memo)
}
