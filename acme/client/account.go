package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/jws"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/keys"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
)

// RegisterAccount registers the client's Account with the ACME server,
// unconditionally agreeing to the server's terms of service. The Account's ID
// is populated from the Location header of the response.
//
// Registration is idempotent: re-registering an already-registered key
// returns HTTP 200 (instead of 201) with the same account URL, which is
// treated as success. A *RegistrationError carrying the server's problem
// document is returned when the CA rejects the registration.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3
func (c *Client) RegisterAccount(ctx context.Context) error {
	if c.Account == nil {
		return fmt.Errorf("register: client has no Account to register")
	}

	newAcctReq := struct {
		Contact   []string `json:"contact,omitempty"`
		ToSAgreed bool     `json:"termsOfServiceAgreed"`
	}{
		Contact:   c.Account.Contact,
		ToSAgreed: true,
	}
	reqBody, err := json.Marshal(&newAcctReq)
	if err != nil {
		return err
	}

	newAcctURL := c.directory.NewAccount
	if newAcctURL == "" {
		return fmt.Errorf(
			"register: ACME server missing %q endpoint in directory",
			acme.NEW_ACCOUNT_ENDPOINT)
	}

	log.Printf("Sending %q request (contact: %s) to %q",
		acme.NEW_ACCOUNT_ENDPOINT, c.Account.Contact, newAcctURL)
	resp, err := c.signAndPost(ctx, newAcctURL, reqBody, jws.SigningOptions{
		// The server does not know the key yet, so it travels in the
		// protected header as a JWK.
		EmbedKey: true,
		Key:      c.Account.Key,
	})
	if err != nil {
		var problem *resources.Problem
		if errors.As(err, &problem) {
			return &RegistrationError{Problem: problem}
		}
		return fmt.Errorf("register: %s", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register: %s", unexpectedStatusError(resp.StatusCode, http.StatusCreated))
	}

	locHeader := resp.Header.Get(acme.LOCATION_HEADER)
	if locHeader == "" {
		return fmt.Errorf("register: server returned response with no Location header")
	}

	// Store the Location header as the Account's ID
	c.Account.ID = locHeader
	if resp.StatusCode == http.StatusOK {
		log.Printf("Key was already registered; account ID %q", c.Account.ID)
	} else {
		log.Printf("Registered account with ID %q", c.Account.ID)
	}
	return nil
}

// DeactivateAccount posts a status of "deactivated" to the Account's URL,
// permanently retiring it with the ACME server.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3.6
func (c *Client) DeactivateAccount(ctx context.Context) error {
	if c.AccountID() == "" {
		return fmt.Errorf("deactivate: account has not been registered")
	}

	reqBody, err := json.Marshal(struct {
		Status string `json:"status"`
	}{Status: acme.STATUS_DEACTIVATED})
	if err != nil {
		return err
	}

	resp, err := c.signAndPost(ctx, c.Account.ID, reqBody, jws.SigningOptions{})
	if err != nil {
		return fmt.Errorf("deactivate: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deactivate: %s", unexpectedStatusError(resp.StatusCode, http.StatusOK))
	}

	log.Printf("Deactivated account %q", c.Account.ID)
	return nil
}

// Rollover switches the registered Account to the given replacement key. The
// request is a nested JWS: the inner envelope is signed by the new key with
// its JWK embedded (and no nonce), the outer envelope by the current account
// key. On success the Account's key is replaced in place.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3.5
func (c *Client) Rollover(ctx context.Context, newKey keys.SigningKey) error {
	if c.AccountID() == "" {
		return fmt.Errorf("rollover: account has not been registered")
	}

	targetURL := c.directory.KeyChange
	if targetURL == "" {
		return fmt.Errorf(
			"rollover: ACME server missing %q endpoint in directory",
			acme.KEY_CHANGE_ENDPOINT)
	}

	rolloverReq := struct {
		Account string   `json:"account"`
		OldKey  keys.JWK `json:"oldKey"`
	}{
		Account: c.Account.ID,
		OldKey:  c.Account.Key.PublicJWK(),
	}
	rolloverJSON, err := json.Marshal(&rolloverReq)
	if err != nil {
		return fmt.Errorf("rollover: failed to marshal request to JSON: %s", err)
	}

	innerEnvelope, err := jws.Sign(targetURL, rolloverJSON, jws.SigningOptions{
		EmbedKey:    true,
		Key:         newKey,
		NonceSource: jws.NoNonce,
	})
	if err != nil {
		return fmt.Errorf("rollover: error signing inner JWS: %s", err)
	}
	innerBody, err := innerEnvelope.Marshal()
	if err != nil {
		return err
	}

	log.Printf("Rolling over account %q to use new key", c.Account.ID)
	resp, err := c.signAndPost(ctx, targetURL, innerBody, jws.SigningOptions{})
	if err != nil {
		return fmt.Errorf("rollover: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rollover: %s", unexpectedStatusError(resp.StatusCode, http.StatusOK))
	}

	c.Account.Key = newKey
	log.Printf("Rollover for %q completed", c.Account.ID)
	return nil
}
