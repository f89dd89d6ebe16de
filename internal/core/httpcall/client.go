// Package httpcall wraps outbound authenticated POSTs with bounded
// exponential backoff and jitter.
//
// Only transient faults are retried: connection errors, timeouts, and
// 5xx-equivalent responses. Application-level statuses below 500 are returned
// to the caller for decoding; the retry loop never interprets them
package httpcall

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
)

// Config tunes one client. The zero value gets the gateway defaults
type Config struct {
	// Timeout bounds a single attempt including token minting (default 10s)
	Timeout time.Duration
	// MaxRetries is the number of re-attempts after the initial call (default 3)
	MaxRetries int
	// BaseDelay seeds the backoff schedule (default 1s)
	BaseDelay time.Duration
	// MaxDelay caps any single backoff wait (default 60s)
	MaxDelay time.Duration
	// Tokens mints the bearer token per attempt; nil sends unauthenticated calls
	Tokens TokenSource
}

// Response is the decoded-enough result of an outbound call
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the status is 2xx
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Client is a retrying form-POST client. Safe for concurrent use
type Client struct {
	cfg  Config
	http *stdhttp.Client
	log  *logger.Logger
}

// New constructs a Client with defaults applied
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	return &Client{
		cfg: cfg,
		// per-attempt deadlines come from the request context
		http: &stdhttp.Client{},
		log:  logger.Named("httpcall"),
	}
}

// PostForm posts a form-encoded body to rawurl, retrying transient faults up
// to MaxRetries times. The last underlying error is wrapped, never swallowed
func (c *Client) PostForm(ctx context.Context, rawurl string, form url.Values) (*Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BaseDelay
	bo.MaxInterval = c.cfg.MaxDelay
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // attempts are bounded by count, not elapsed time
	bo.Reset()

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, rawurl, form)
		if err == nil && resp.Status < 500 {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = perr.Unavailablef("upstream returned %d", resp.Status)
		}

		if attempt >= c.cfg.MaxRetries {
			c.log.Error().
				Str("url", rawurl).
				Int("attempts", attempt+1).
				Err(lastErr).
				Msg("max retry attempts reached")
			return nil, perr.Wrapf(lastErr, perr.ErrorCodeUnavailable, "call %s failed after %d attempts", rawurl, attempt+1)
		}

		wait := bo.NextBackOff()
		c.log.Warn().
			Str("url", rawurl).
			Int("attempt", attempt+1).
			Dur("delay", wait).
			Err(lastErr).
			Msg("request failed, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "call cancelled during backoff")
		}
	}
}

// attempt performs one authenticated POST, minting the token fresh
func (c *Client) attempt(ctx context.Context, rawurl string, form url.Values) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, rawurl, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if c.cfg.Tokens != nil {
		tok, err := c.cfg.Tokens.Token(ctx, rawurl)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "mint token")
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "post")
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read response body")
	}
	return &Response{Status: res.StatusCode, Body: body}, nil
}
