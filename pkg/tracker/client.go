package tracker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const statsPath = "/stats.json"

// defaultTimeout bounds a single status read - a tracker that takes longer
// than this is treated as unavailable.
//
const defaultTimeout = 5 * time.Second

// Client reads statistics from a single tracker site.
//
type Client struct {
	name string
	rest *resty.Client
}

// Option is a type used by functional arguments to mutate the client to
// override default behavior.
//
type Option func(c *Client)

// WithTimeout overrides the default per-read timeout.
//
func WithTimeout(v time.Duration) Option {
	return func(c *Client) {
		c.rest.SetTimeout(v)
	}
}

// NewClient instantiates a client for the tracker reachable at `baseURL`,
// identified as `name` in the metrics it ends up producing.
//
func NewClient(name, baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse url '%s': %w", baseURL, err)
	}

	if !parsed.IsAbs() {
		return nil, fmt.Errorf("url '%s' is not absolute", baseURL)
	}

	c := &Client{
		name: name,
		rest: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Name gives back the identifier under which this tracker's samples are
// labelled.
//
func (c *Client) Name() string {
	return c.name
}

// Stats performs a single read of the tracker's status endpoint.
//
// it is idempotent and safe to retry; failures are either ErrUnavailable
// (nothing answered within the timeout) or ErrProtocol (the answer could
// not be parsed), both testable via `errors.Is`.
//
func (c *Client) Stats(ctx context.Context) (*RawStats, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		Get(statsPath)
	if err != nil {
		return nil, fmt.Errorf("get '%s': %w: %w",
			statsPath, ErrUnavailable, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("get '%s': %w: unexpected status %d",
			statsPath, ErrProtocol, resp.StatusCode())
	}

	stats, err := decodeStats(resp.Body(), time.Now())
	if err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	return stats, nil
}
