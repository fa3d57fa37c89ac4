package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	acmenet "github.com/alexpeattie/letsencrypt-fromscratch/net"
)

func newTestNet(t *testing.T) *acmenet.ACMENet {
	t.Helper()
	net, err := acmenet.New("")
	require.NoError(t, err)
	return net
}

func TestNonceManagerObserveThenTake(t *testing.T) {
	fetches := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set(acme.REPLAY_NONCE_HEADER, fmt.Sprintf("fetched-%d", fetches))
	}))
	defer ts.Close()

	nm := NewNonceManager(newTestNet(t), ts.URL)

	header := http.Header{}
	header.Set(acme.REPLAY_NONCE_HEADER, "banked-nonce")
	nm.Observe(header)

	// The banked nonce comes back exactly once.
	nonce, err := nm.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "banked-nonce", nonce)
	assert.Equal(t, 0, fetches, "a cached nonce must not trigger a fetch")

	// The slot is now empty, so the next Take performs a live fetch.
	nonce, err = nm.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fetched-1", nonce)
	assert.Equal(t, 1, fetches)
}

func TestNonceManagerObserveOverwrites(t *testing.T) {
	nm := NewNonceManager(newTestNet(t), "http://unused.invalid")

	first := http.Header{}
	first.Set(acme.REPLAY_NONCE_HEADER, "older")
	nm.Observe(first)

	second := http.Header{}
	second.Set(acme.REPLAY_NONCE_HEADER, "newer")
	nm.Observe(second)

	// A header with no nonce leaves the slot alone.
	nm.Observe(http.Header{})

	nonce, err := nm.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "newer", nonce)
}

func TestNonceManagerMissingHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Replay-Nonce header at all.
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	nm := NewNonceManager(newTestNet(t), ts.URL)
	_, err := nm.Take(context.Background())

	var unavailable *NonceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ts.URL, unavailable.URL)
}
