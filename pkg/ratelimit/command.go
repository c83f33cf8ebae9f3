package ratelimit

import (
	"context"
	"net/url"

	"github.com/criske/my-git-feed-server/pkg/client"
)

// Command gates a client.Command with a Tracker and feeds it the rate limit
// headers of every response. Place it under the grace-period mediator so
// locally answered requests do not count.
type Command struct {
	next    client.Command
	tracker *Tracker
}

// NewCommand wraps next.
func NewCommand(next client.Command, tracker *Tracker) *Command {
	return &Command{next: next, tracker: tracker}
}

// Request implements client.Command.
func (c *Command) Request(ctx context.Context, uri string, headers client.Headers) (*client.Response, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, &client.Error{Kind: client.KindValidation, URI: uri, Message: "invalid request uri", Err: err}
	}
	host := u.Host

	if err := c.tracker.Allow(ctx, host, uri); err != nil {
		return nil, err
	}

	resp, err := c.next.Request(ctx, uri, headers)
	if err != nil {
		return nil, err
	}
	if err := c.tracker.UpdateFromHeaders(ctx, host, resp.Headers); err != nil {
		c.tracker.logger.Warn().Err(err).Str("host", host).Msg("Failed to update rate limit state")
	}
	return resp, nil
}
