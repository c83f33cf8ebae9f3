package client

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// NewTransport returns a pooled *http.Transport. With a non-nil resolver,
// host lookups go through the DNS cache; provider APIs are few and hot.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
			}
			var d net.Dialer
			var lastErr error
			for _, ip := range ips {
				conn, err := d.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		}
	}
	return t
}

// NewHTTPClient returns an *http.Client with the given timeout over NewTransport.
func NewHTTPClient(timeout time.Duration, resolver *dnscache.Resolver) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(resolver),
	}
}
