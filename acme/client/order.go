package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/jws"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
)

// CreateOrder places a new order for the given domain names. On success the
// returned Order carries the server's authorization URLs (one per
// identifier), the finalize URL, and the order's own URL (from the Location
// header) in its ID field for later re-fetches.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) CreateOrder(ctx context.Context, domains []string) (*resources.Order, error) {
	if c.AccountID() == "" {
		return nil, fmt.Errorf("createOrder: account has not been registered")
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("createOrder: no identifiers specified")
	}

	identifiers := make([]resources.Identifier, len(domains))
	for i, domain := range domains {
		identifiers[i] = resources.Identifier{
			Type:  acme.IDENTIFIER_DNS,
			Value: domain,
		}
	}

	reqBody, err := json.Marshal(struct {
		Identifiers []resources.Identifier `json:"identifiers"`
	}{Identifiers: identifiers})
	if err != nil {
		return nil, err
	}

	newOrderURL := c.directory.NewOrder
	if newOrderURL == "" {
		return nil, fmt.Errorf(
			"createOrder: ACME server missing %q endpoint in directory",
			acme.NEW_ORDER_ENDPOINT)
	}

	resp, err := c.signAndPost(ctx, newOrderURL, reqBody, jws.SigningOptions{})
	if err != nil {
		return nil, fmt.Errorf("createOrder: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("createOrder: %s",
			unexpectedStatusError(resp.StatusCode, http.StatusCreated))
	}

	locHeader := resp.Header.Get(acme.LOCATION_HEADER)
	if locHeader == "" {
		return nil, fmt.Errorf("createOrder: server returned response with no Location header")
	}

	var order resources.Order
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, fmt.Errorf("createOrder: server returned invalid JSON: %s", err)
	}

	// Store the Location header as the Order's ID
	order.ID = locHeader
	log.Printf("Created new order with ID %q", order.ID)
	c.Account.Orders = append(c.Account.Orders, order.ID)
	return &order, nil
}

// UpdateOrder refreshes a given Order by fetching its ID URL from the ACME
// server. Calling UpdateOrder is required to synchronize an Order's Status
// field with the server-side representation.
func (c *Client) UpdateOrder(ctx context.Context, order *resources.Order) error {
	if order == nil {
		return fmt.Errorf("updateOrder: order must not be nil")
	}
	if order.ID == "" {
		return fmt.Errorf("updateOrder: order must have an ID")
	}
	_, err := c.fetchInto(ctx, order.ID, order)
	return err
}

// UpdateAuthz refreshes a given Authorization by fetching its ID URL from the
// ACME server.
func (c *Client) UpdateAuthz(ctx context.Context, authz *resources.Authorization) error {
	if authz == nil {
		return fmt.Errorf("updateAuthz: authz must not be nil")
	}
	if authz.ID == "" {
		return fmt.Errorf("updateAuthz: authz must have an ID")
	}
	_, err := c.fetchInto(ctx, authz.ID, authz)
	return err
}

// UpdateChallenge refreshes a given Challenge by fetching its URL from the
// ACME server.
func (c *Client) UpdateChallenge(ctx context.Context, chall *resources.Challenge) error {
	if chall == nil {
		return fmt.Errorf("updateChallenge: chall must not be nil")
	}
	if chall.URL == "" {
		return fmt.Errorf("updateChallenge: chall must have a URL")
	}
	_, err := c.fetchInto(ctx, chall.URL, chall)
	return err
}

// SelectChallenge picks the single challenge to attempt for an
// authorization: the one matching the client's PreferredChallenge type.
// Exactly one challenge type is attempted per authorization; there is no
// fallback between types. A *ChallengeUnsupportedError is returned, before
// any challenge request is made, when the identifier is a wildcard and the
// preferred type is not dns-01, or when the server did not offer the
// preferred type.
func (c *Client) SelectChallenge(authz *resources.Authorization) (*resources.Challenge, error) {
	if authz.Wildcard && c.PreferredChallenge != acme.CHALLENGE_DNS01 {
		return nil, &ChallengeUnsupportedError{
			Identifier: authz.Identifier.Value,
			Preferred:  c.PreferredChallenge,
			Wildcard:   true,
		}
	}

	offered := make([]string, len(authz.Challenges))
	for i := range authz.Challenges {
		if authz.Challenges[i].Type == c.PreferredChallenge {
			return &authz.Challenges[i], nil
		}
		offered[i] = authz.Challenges[i].Type
	}
	return nil, &ChallengeUnsupportedError{
		Identifier: authz.Identifier.Value,
		Preferred:  c.PreferredChallenge,
		Offered:    offered,
	}
}

// NotifyChallengeReady tells the server the challenge response is provisioned
// and validation may begin, by POSTing an empty JSON object to the
// challenge's URL.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5.1
func (c *Client) NotifyChallengeReady(ctx context.Context, chall *resources.Challenge) error {
	resp, err := c.signAndPost(ctx, chall.URL, []byte("{}"), jws.SigningOptions{})
	if err != nil {
		return fmt.Errorf("notifyChallengeReady: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifyChallengeReady: %s",
			unexpectedStatusError(resp.StatusCode, http.StatusOK))
	}
	log.Printf("Started validation of %q challenge %q", chall.Type, chall.URL)
	return nil
}

// PollChallenge re-fetches the challenge until it reaches a terminal status,
// sleeping the poll interval (or a server-provided Retry-After) between
// attempts. A nil error means the challenge is valid. A terminal status
// other than valid returns a *ChallengeFailedError with the CA's error
// detail. Exceeding the client's poll budget or the context deadline returns
// a *PollTimeoutError instead, so callers can tell the CA rejecting the
// challenge apart from the client giving up.
func (c *Client) PollChallenge(ctx context.Context, chall *resources.Challenge, identifier string) error {
	ctx, cancel := context.WithTimeout(ctx, c.PollTimeout)
	defer cancel()

	for {
		resp, err := c.fetchInto(ctx, chall.URL, chall)
		if err != nil {
			if ctx.Err() != nil {
				return &PollTimeoutError{Resource: chall.URL, LastStatus: chall.Status}
			}
			return err
		}

		switch chall.Status {
		case acme.STATUS_VALID:
			log.Printf("Challenge %q is valid", chall.URL)
			return nil
		case acme.STATUS_PENDING, acme.STATUS_PROCESSING:
			// keep polling
		default:
			return &ChallengeFailedError{Identifier: identifier, Problem: chall.Error}
		}

		select {
		case <-ctx.Done():
			return &PollTimeoutError{Resource: chall.URL, LastStatus: chall.Status}
		case <-time.After(retryAfter(resp.Header, c.PollInterval)):
		}
	}
}

// PollOrder re-fetches the order until it reaches the wanted status. An
// order that turns invalid while waiting returns
// a *UnexpectedOrderStatusError carrying the order's problem document; the
// poll budget expiring returns a *PollTimeoutError.
func (c *Client) PollOrder(ctx context.Context, order *resources.Order, wantStatus string) error {
	ctx, cancel := context.WithTimeout(ctx, c.PollTimeout)
	defer cancel()

	for {
		resp, err := c.fetchInto(ctx, order.ID, order)
		if err != nil {
			if ctx.Err() != nil {
				return &PollTimeoutError{Resource: order.ID, LastStatus: order.Status}
			}
			return err
		}

		switch order.Status {
		case wantStatus:
			return nil
		case acme.STATUS_INVALID:
			return &UnexpectedOrderStatusError{
				Order:    order.ID,
				Status:   order.Status,
				Expected: wantStatus,
				Problem:  order.Error,
			}
		}

		select {
		case <-ctx.Done():
			return &PollTimeoutError{Resource: order.ID, LastStatus: order.Status}
		case <-time.After(retryAfter(resp.Header, c.PollInterval)):
		}
	}
}

// FinalizeOrder submits a DER encoded CSR to the order's finalize URL. The
// order must have status "ready". The server's updated order representation
// replaces the given order in place; depending on the CA it may already be
// "valid" or still "processing", in which case the caller polls.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) FinalizeOrder(ctx context.Context, order *resources.Order, csrDER []byte) error {
	if order.Finalize == "" {
		return fmt.Errorf("finalize: order %q has no finalize URL", order.ID)
	}

	reqBody, err := json.Marshal(struct {
		CSR string `json:"csr"`
	}{CSR: codec.Base64URL(csrDER)})
	if err != nil {
		return err
	}

	resp, err := c.signAndPost(ctx, order.Finalize, reqBody, jws.SigningOptions{})
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("finalize: %s", unexpectedStatusError(resp.StatusCode, http.StatusOK))
	}

	if err := json.Unmarshal(resp.Body, order); err != nil {
		return fmt.Errorf("finalize: server returned invalid JSON: %s", err)
	}
	log.Printf("Finalized order %q (status %q)", order.ID, order.Status)
	return nil
}

// FetchCertificate downloads the issued certificate for a valid order. The
// returned bytes are the complete PEM chain; no separate intermediate fetch
// is required.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4.2
func (c *Client) FetchCertificate(ctx context.Context, certURL string) ([]byte, error) {
	if certURL == "" {
		return nil, fmt.Errorf("fetchCertificate: order has no certificate URL")
	}
	resp, err := c.fetchURL(ctx, certURL)
	if err != nil {
		return nil, fmt.Errorf("fetchCertificate: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchCertificate: %s",
			unexpectedStatusError(resp.StatusCode, http.StatusOK))
	}
	log.Printf("Downloaded certificate chain from %q (%d bytes)", certURL, len(resp.Body))
	return resp.Body, nil
}

// RevokeCertificate asks the server to revoke the given DER encoded
// certificate, signing the request with the account key. The reason is an
// RFC 5280 CRLReason code; 0 ("unspecified") is always acceptable.
//
// See https://tools.ietf.org/html/rfc8555#section-7.6
func (c *Client) RevokeCertificate(ctx context.Context, certDER []byte, reason int) error {
	revokeURL := c.directory.RevokeCert
	if revokeURL == "" {
		return fmt.Errorf(
			"revoke: ACME server missing %q endpoint in directory",
			acme.REVOKE_CERT_ENDPOINT)
	}

	reqBody, err := json.Marshal(struct {
		Certificate string `json:"certificate"`
		Reason      int    `json:"reason,omitempty"`
	}{
		Certificate: codec.Base64URL(certDER),
		Reason:      reason,
	})
	if err != nil {
		return err
	}

	resp, err := c.signAndPost(ctx, revokeURL, reqBody, jws.SigningOptions{})
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke: %s", unexpectedStatusError(resp.StatusCode, http.StatusOK))
	}
	log.Printf("Revoked certificate (reason %d)", reason)
	return nil
}
