package client

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/keys"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
	"github.com/alexpeattie/letsencrypt-fromscratch/challenge"
)

// IssuedCertificate is the result of a completed issuance: the PEM encoded
// certificate chain, the private key it was issued for, and the order it came
// from.
type IssuedCertificate struct {
	// The complete PEM encoded certificate chain, leaf first.
	ChainPEM []byte
	// The certificate's private key. Generated fresh for the order; never
	// the account key.
	Key keys.SigningKey
	// The URL of the order the certificate was issued for.
	OrderURL string
}

// IssueCertificate runs the whole protocol state machine for a set of domain
// names: it places an order, authorizes every identifier (provisioning
// challenge responses through the given Provisioner and polling the CA for
// validation), finalizes the order with a freshly generated certificate key,
// and downloads the issued chain.
//
// Identifiers are authorized sequentially. The order's server-side expiry
// caps the whole run; each poll loop is further bounded by the client's
// PollTimeout. Provisioned challenge responses are torn down once their
// authorization reaches a terminal state, on failure as much as on success.
func (c *Client) IssueCertificate(ctx context.Context, domains []string, prov challenge.Provisioner) (*IssuedCertificate, error) {
	order, err := c.CreateOrder(ctx, domains)
	if err != nil {
		return nil, err
	}

	// The order expiry is a hard deadline from the server; give up at it
	// rather than polling a corpse.
	if expiry, ok := order.ExpiresTime(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, expiry)
		defer cancel()
	}

	for _, authzURL := range order.Authorizations {
		if err := c.authorize(ctx, authzURL, prov); err != nil {
			return nil, err
		}
	}

	// With every authorization valid the order must be ready for
	// finalization.
	if err := c.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	if order.Status != acme.STATUS_READY {
		return nil, &UnexpectedOrderStatusError{
			Order:    order.ID,
			Status:   order.Status,
			Expected: acme.STATUS_READY,
			Problem:  order.Error,
		}
	}

	certKey, err := keys.GenerateEC("P-256")
	if err != nil {
		return nil, err
	}
	csrDER, err := NewCSR(certKey, domains)
	if err != nil {
		return nil, err
	}

	if err := c.FinalizeOrder(ctx, order, csrDER); err != nil {
		return nil, err
	}
	if order.Status != acme.STATUS_VALID {
		if err := c.PollOrder(ctx, order, acme.STATUS_VALID); err != nil {
			return nil, err
		}
	}

	chainPEM, err := c.FetchCertificate(ctx, order.Certificate)
	if err != nil {
		return nil, err
	}

	log.Printf("Issued certificate for %v", domains)
	return &IssuedCertificate{
		ChainPEM: chainPEM,
		Key:      certKey,
		OrderURL: order.ID,
	}, nil
}

// authorize completes a single authorization: select the one challenge to
// attempt, provision its response, tell the CA to validate, and poll to
// a terminal status. The provisioned response is torn down before returning,
// whatever the outcome.
func (c *Client) authorize(ctx context.Context, authzURL string, prov challenge.Provisioner) error {
	authz := &resources.Authorization{ID: authzURL}
	if err := c.UpdateAuthz(ctx, authz); err != nil {
		return err
	}

	// A still-valid authorization from an earlier order needs no challenge.
	if authz.Status == acme.STATUS_VALID {
		log.Printf("Authorization %q for %q is already valid", authz.ID, authz.Identifier.Value)
		return nil
	}
	if authz.Status != acme.STATUS_PENDING {
		return fmt.Errorf("authorization %q has status %q, expected %q",
			authz.ID, authz.Status, acme.STATUS_PENDING)
	}

	chall, err := c.SelectChallenge(authz)
	if err != nil {
		return err
	}

	keyAuth, err := keys.KeyAuthorization(c.Account.Key, chall.Token)
	if err != nil {
		return err
	}

	identifier := authz.Identifier.Value
	log.Printf("Solving %q challenge for %q", chall.Type, identifier)

	switch chall.Type {
	case acme.CHALLENGE_HTTP01:
		if err := prov.ProvisionHTTP(ctx, chall.Token, keyAuth); err != nil {
			return fmt.Errorf("provisioning http-01 response for %q: %s", identifier, err)
		}
		defer func() {
			if err := prov.TeardownHTTP(context.WithoutCancel(ctx), chall.Token); err != nil {
				log.Warnf("Failed to remove http-01 response for %q: %s", identifier, err)
			}
		}()

	case acme.CHALLENGE_DNS01:
		record, err := prov.ProvisionDNS(ctx, identifier, keyAuth)
		if err != nil {
			return fmt.Errorf("provisioning dns-01 record for %q: %s", identifier, err)
		}
		// Teardown must run once the authorization is terminal, success or
		// not; a cancelled context must not leave the record behind.
		defer func() {
			if err := prov.TeardownDNS(context.WithoutCancel(ctx), record); err != nil {
				log.Warnf("Failed to remove TXT record %q: %s", record.Name, err)
			}
		}()

		if err := prov.WaitForDNSPropagation(ctx, record); err != nil {
			return fmt.Errorf("waiting for dns-01 record for %q: %s", identifier, err)
		}

	default:
		// SelectChallenge only returns configured types; anything else is
		// a bug.
		return fmt.Errorf("selected challenge has unexpected type %q", chall.Type)
	}

	if err := c.NotifyChallengeReady(ctx, chall); err != nil {
		return err
	}
	return c.PollChallenge(ctx, chall, identifier)
}
