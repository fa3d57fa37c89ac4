package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	acmenet "github.com/alexpeattie/letsencrypt-fromscratch/net"
)

// NonceManager caches the single next-usable anti-replay nonce for a client.
// Every response from the ACME server may carry a Replay-Nonce header; Observe
// banks it, and Take consumes it for the next signed request. With concurrent
// orders the manager is the only shared mutable state between flows, so the
// single slot is mutex guarded.
//
// See https://tools.ietf.org/html/rfc8555#section-6.5
type NonceManager struct {
	mu sync.Mutex
	// The cached nonce, empty when the slot is spent.
	nonce string
	// The ACME server's newNonce endpoint, used to refill when the slot is
	// empty.
	newNonceURL string
	net         *acmenet.ACMENet
}

// NewNonceManager creates a NonceManager that refills from the given newNonce
// endpoint URL.
func NewNonceManager(net *acmenet.ACMENet, newNonceURL string) *NonceManager {
	return &NonceManager{
		newNonceURL: newNonceURL,
		net:         net,
	}
}

// Observe unconditionally banks any Replay-Nonce header present in a
// response, replacing the cached value. It must be called for every response,
// including error responses: nonces issued alongside failures are still valid
// and must not be discarded.
func (nm *NonceManager) Observe(header http.Header) {
	nonce := header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return
	}
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.nonce = nonce
	log.Debugf("Banked nonce %q", nonce)
}

// Take returns the cached nonce and clears the slot, enforcing single use.
// With no cached nonce it performs a HEAD request to the newNonce endpoint. A
// *NonceUnavailableError is returned when the server omits the Replay-Nonce
// header from that response.
func (nm *NonceManager) Take(ctx context.Context) (string, error) {
	nm.mu.Lock()
	if nm.nonce != "" {
		nonce := nm.nonce
		nm.nonce = ""
		nm.mu.Unlock()
		return nonce, nil
	}
	nm.mu.Unlock()

	return nm.refresh(ctx)
}

// refresh fetches a fresh nonce from the ACME server's newNonce endpoint.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (nm *NonceManager) refresh(ctx context.Context) (string, error) {
	log.Debugf("No nonce cached; sending HTTP HEAD request to %q", nm.newNonceURL)
	resp, err := nm.net.HeadURL(ctx, nm.newNonceURL)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return "", fmt.Errorf("%q returned HTTP status %d, expected %d",
			nm.newNonceURL, resp.StatusCode, http.StatusOK)
	}

	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return "", &NonceUnavailableError{URL: nm.newNonceURL}
	}
	return nonce, nil
}

// nonceSource binds a NonceManager to a context so it can satisfy
// jws.NonceSource, whose Nonce method has no context argument.
type nonceSource struct {
	ctx context.Context
	nm  *NonceManager
}

func (s nonceSource) Nonce() (string, error) {
	return s.nm.Take(s.ctx)
}
