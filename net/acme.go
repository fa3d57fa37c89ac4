// Package net provides the HTTP transport used for all requests to the ACME
// server.
package net

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
)

const (
	version       = "0.1.0"
	userAgentBase = "letsencrypt-fromscratch"
	locale        = "en-us"
)

// ACMENet is a thin wrapper around an *http.Client that adds the headers
// every ACME request carries (User-Agent, Accept-Language, and the JOSE
// content type on POSTs) and reads response bodies eagerly.
type ACMENet struct {
	httpClient *http.Client
}

// New creates an ACMENet. If customCABundle is not empty it must be a file
// path to one or more PEM encoded CA certificates to use as trust roots for
// HTTPS requests to the ACME server (e.g. Pebble's
// "test/certs/pebble.minica.pem") in place of the system roots.
func New(customCABundle string) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if customCABundle != "" {
		pemBundle, err := os.ReadFile(customCABundle)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		if !caBundle.AppendCertsFromPEM(pemBundle) {
			return nil, fmt.Errorf("no CA certificates found in %q", customCABundle)
		}
	}

	return &ACMENet{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
	}, nil
}

// Response holds the results from making an HTTP request to the ACME server.
type Response struct {
	// The HTTP status code.
	StatusCode int
	// The response headers. Replay-Nonce, Location and Retry-After are the
	// ones ACME cares about.
	Header http.Header
	// The response body, already read to completion.
	Body []byte
}

// Do performs an HTTP request, returning a pointer to a Response instance or
// an error. User-Agent and Accept-Language headers are automatically added to
// the request.
func (c *ACMENet) Do(req *http.Request) (*Response, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", locale)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	log.Debugf("%s %q returned status %d (%d body bytes)",
		req.Method, req.URL, resp.StatusCode, len(body))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// GetURL performs an HTTP GET of the given URL.
func (c *ACMENet) GetURL(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// HeadURL performs an HTTP HEAD of the given URL. ACME uses HEAD only for the
// newNonce endpoint.
func (c *ACMENet) HeadURL(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostURL performs an HTTP POST of the given body to the given URL with the
// "application/jose+json" content type all signed ACME requests require.
func (c *ACMENet) PostURL(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", acme.JOSE_CONTENT_TYPE)
	return c.Do(req)
}
