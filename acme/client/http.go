package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/jws"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
	acmenet "github.com/alexpeattie/letsencrypt-fromscratch/net"
)

// signAndPost builds a JWS envelope for the given URL and payload and POSTs
// it. Missing SigningOptions fields default to the client's Account (its key,
// its ID as the "kid") and the client's NonceManager. Replay-Nonce headers
// are banked from every response, including failures.
//
// If the server rejects the envelope with a badNonce problem the entire
// envelope is rebuilt with a fresh nonce and retried exactly once; a second
// badNonce rejection surfaces to the caller as the problem error. No other
// failure is retried.
func (c *Client) signAndPost(ctx context.Context, url string, payload []byte, opts jws.SigningOptions) (*acmenet.Response, error) {
	if opts.Key == nil {
		if c.Account == nil {
			return nil, fmt.Errorf("no Account loaded and no Key specified in SigningOptions")
		}
		opts.Key = c.Account.Key
	}
	if !opts.EmbedKey && opts.KeyID == "" {
		if c.AccountID() == "" {
			return nil, fmt.Errorf("account has not been registered: no key ID to sign with")
		}
		opts.KeyID = c.Account.ID
	}
	if opts.NonceSource == nil {
		opts.NonceSource = nonceSource{ctx: ctx, nm: c.nonces}
	}

	resp, problem, err := c.postJWS(ctx, url, payload, opts)
	if err != nil {
		return nil, err
	}
	if problem != nil && problem.IsBadNonce() {
		// The rejection response itself carried a fresh Replay-Nonce that
		// Observe banked, so the rebuilt envelope picks it up.
		log.Printf("Server rejected our nonce at %q; retrying with a fresh nonce", url)
		resp, problem, err = c.postJWS(ctx, url, payload, opts)
		if err != nil {
			return nil, err
		}
	}
	if problem != nil {
		return resp, problem
	}
	return resp, nil
}

// postJWS performs a single sign-and-POST attempt. An ACME problem document
// in the response is returned separately from transport errors so the caller
// can apply the badNonce retry policy.
func (c *Client) postJWS(ctx context.Context, url string, payload []byte, opts jws.SigningOptions) (*acmenet.Response, *resources.Problem, error) {
	envelope, err := jws.Sign(url, payload, opts)
	if err != nil {
		return nil, nil, err
	}
	body, err := envelope.Marshal()
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.net.PostURL(ctx, url, body)
	if err != nil {
		return nil, nil, err
	}
	c.nonces.Observe(resp.Header)

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, problemFromResponse(resp), nil
	}
	return resp, nil, nil
}

// fetchURL performs an authenticated fetch of an ACME resource URL: a
// POST-as-GET (signed envelope with an empty payload) when the client is
// configured for it, a plain GET otherwise.
//
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Client) fetchURL(ctx context.Context, url string) (*acmenet.Response, error) {
	if c.PostAsGet {
		return c.signAndPost(ctx, url, nil, jws.SigningOptions{})
	}

	resp, err := c.net.GetURL(ctx, url)
	if err != nil {
		return nil, err
	}
	c.nonces.Observe(resp.Header)
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, problemFromResponse(resp)
	}
	return resp, nil
}

// fetchInto fetches a resource URL and unmarshals the JSON response body into
// v.
func (c *Client) fetchInto(ctx context.Context, url string, v interface{}) (*acmenet.Response, error) {
	resp, err := c.fetchURL(ctx, url)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return resp, fmt.Errorf("server returned invalid JSON for %q: %s", url, err)
	}
	return resp, nil
}

// problemFromResponse parses an ACME problem document from an error
// response's body. A problem with only the HTTP status is returned when the
// body does not parse, so the status code is never lost.
func problemFromResponse(resp *acmenet.Response) *resources.Problem {
	problem := &resources.Problem{Status: resp.StatusCode}
	if err := json.Unmarshal(resp.Body, problem); err != nil {
		problem.Detail = string(resp.Body)
	}
	return problem
}

func unexpectedStatusError(got, want int) error {
	return fmt.Errorf("server returned status code %d, expected %d", got, want)
}

// retryAfter returns the delay before the next poll attempt: the server's
// Retry-After value when one is present, the fallback otherwise.
func retryAfter(header http.Header, fallback time.Duration) time.Duration {
	value := header.Get(acme.RETRY_AFTER_HEADER)
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return fallback
}
