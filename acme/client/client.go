// Package client provides an ACME v2 client: account registration, order and
// authorization orchestration, challenge polling and certificate
// finalization. See RFC 8555.
package client

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
	acmenet "github.com/alexpeattie/letsencrypt-fromscratch/net"
)

const (
	// How often poll loops re-fetch a pending resource when the server does
	// not suggest a Retry-After delay.
	defaultPollInterval = 2 * time.Second
	// The longest a poll loop will wait for a resource to reach a terminal
	// status. The protocol itself sets no bound; an unbounded loop is an
	// availability risk, so the client always imposes one.
	defaultPollTimeout = 5 * time.Minute
)

// Client interacts with a single ACME server. It owns the directory cache,
// the account used to authenticate requests, and the nonce slot; none of that
// state is process-wide, so independent Clients can run concurrently.
//
// The Client's DirectoryURL field is a parsed *url.URL for the ACME server's
// directory. The client configures itself with the correct URLs for ACME
// operations using the directory resource accessed at this URL. See
// https://tools.ietf.org/html/rfc8555#section-7.1.1
//
// The Client's Account field holds the keypair that signs every request and,
// once registered, the account URL the server knows the keypair by.
type Client struct {
	// A parsed *url.URL pointer for the ACME server's directory URL.
	DirectoryURL *url.URL
	// The Account used for authenticating ACME requests with JSON Web
	// Signatures (JWS).
	Account *resources.Account
	// The challenge type to attempt for every authorization: "http-01" or
	// "dns-01". Exactly one type is attempted per authorization; there is no
	// fallback between types.
	PreferredChallenge string
	// Use POST-as-GET requests instead of GET for fetching orders,
	// authorizations, challenges and certificates.
	PostAsGet bool
	// Fixed delay between poll attempts, overridden by a server-provided
	// Retry-After.
	PollInterval time.Duration
	// Upper bound on how long a single poll loop may run.
	PollTimeout time.Duration
	// the net object is used to make HTTP GET/POST/HEAD requests to the ACME
	// server.
	net *acmenet.ACMENet
	// nonces caches the single next-usable anti-replay nonce.
	nonces *NonceManager
	// directory is the in-memory representation of the ACME server's
	// directory resource.
	directory *resources.Directory
}

// ClientConfig contains configuration options provided to NewClient when
// creating a Client instance.
type ClientConfig struct {
	// A fully qualified URL for the ACME server's directory resource. Must
	// include an HTTP/HTTPS protocol prefix. Mandatory.
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to be
	// used as trust roots for HTTPS requests to the ACME server. If empty the
	// default system roots are used. If you are using Pebble as the ACME
	// server, it should be the file path to the "test/certs/pebble.minica.pem"
	// file from the Pebble source directory.
	CACert string
	// An optional email address to use if AutoRegister is true and an Account
	// is created with the ACME server. It should not have a "mailto:" prefix;
	// one is added automatically. This field only supports one email address.
	ContactEmail string
	// An optional file path to a previously saved account. It will be loaded
	// and used as the Account. If provided this field takes precedence over
	// AutoRegister and will prevent an account from being auto-registered
	// even if AutoRegister is true.
	AccountPath string
	// If AutoRegister is true NewClient will automatically register a new
	// Account with the ACME server, agreeing to its terms of service. If
	// ContactEmail is specified it will be used as the new ACME account's
	// Contact mailto address.
	AutoRegister bool
	// The challenge type to attempt for authorizations. Defaults to
	// "http-01". Orders containing wildcard identifiers require "dns-01".
	PreferredChallenge string
	// If POSTAsGET is true then GET requests to Orders, Authorizations,
	// Challenges and Certificates will be made as POST-as-GET requests, as
	// RFC 8555 requires of modern servers.
	POSTAsGET bool
	// Optional overrides for the poll loop cadence and budget.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// normalize validates a ClientConfig and fills in defaults.
func (conf *ClientConfig) normalize() error {
	// Clean up any junk whitespace that might have snuck in
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)
	conf.ContactEmail = strings.TrimSpace(conf.ContactEmail)
	conf.AccountPath = strings.TrimSpace(conf.AccountPath)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}

	if conf.ContactEmail != "" {
		addr, err := mail.ParseAddress(conf.ContactEmail)
		if err != nil {
			return fmt.Errorf("ContactEmail is invalid: %s", err.Error())
		}
		conf.ContactEmail = addr.Address
	}

	switch conf.PreferredChallenge {
	case "":
		conf.PreferredChallenge = acme.CHALLENGE_HTTP01
	case acme.CHALLENGE_HTTP01, acme.CHALLENGE_DNS01:
	default:
		return fmt.Errorf("PreferredChallenge %q is not supported: must be %q or %q",
			conf.PreferredChallenge, acme.CHALLENGE_HTTP01, acme.CHALLENGE_DNS01)
	}

	if conf.PollInterval <= 0 {
		conf.PollInterval = defaultPollInterval
	}
	if conf.PollTimeout <= 0 {
		conf.PollTimeout = defaultPollTimeout
	}

	return nil
}

// NewClient creates a Client instance from the given ClientConfig: it fetches
// and caches the server's directory, restores or registers the account per
// the config, and leaves the client ready to place orders. If the config is
// not valid or if another error occurs it will be returned along with a nil
// Client.
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(config.CACert)
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %s", err)
	}

	// NOTE: It's safe to throw away the returned err here because we check
	// that `url.Parse` will succeed in `config.normalize()` above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	client := &Client{
		DirectoryURL:       dirURL,
		PreferredChallenge: config.PreferredChallenge,
		PostAsGet:          config.POSTAsGET,
		PollInterval:       config.PollInterval,
		PollTimeout:        config.PollTimeout,
		net:                net,
	}
	if client.PostAsGet {
		log.Printf("Using POST-as-GET requests")
	}

	if err := client.UpdateDirectory(ctx); err != nil {
		return nil, err
	}
	client.nonces = NewNonceManager(net, client.directory.NewNonce)

	// If requested, try to load an existing account from disk
	if config.AccountPath != "" {
		log.Printf("Trying to restore account from %q", config.AccountPath)
		acct, err := resources.RestoreAccount(config.AccountPath)

		// if there was an error loading the account and auto-register is not
		// enabled then return an error. We have no account to use.
		if err != nil && !config.AutoRegister {
			return nil, fmt.Errorf("error restoring account from %q : %s",
				config.AccountPath, err)
		} else if err != nil {
			log.Printf("No account restored")
		}

		if err == nil {
			client.Account = acct
			log.Printf("Restored account with ID %q (Contact %s)",
				acct.ID, acct.Contact)
		}
	}

	if config.AutoRegister && client.AccountID() == "" {
		log.Printf("AutoRegister is enabled and there is no loaded account. " +
			"Registering a new account")
		acct, err := resources.NewAccount([]string{config.ContactEmail}, nil)
		if err != nil {
			return nil, err
		}
		client.Account = acct
		if err := client.RegisterAccount(ctx); err != nil {
			return nil, err
		}

		// if there is an account path configured, save the account we just
		// registered to that path
		if config.AccountPath != "" {
			err := resources.SaveAccount(config.AccountPath, client.Account)
			if err != nil {
				return nil, fmt.Errorf("error saving account to %q : %s",
					config.AccountPath, err)
			}
			log.Printf("Saved account data to %q", config.AccountPath)
		}
	} else if config.AutoRegister {
		log.Printf("AutoRegister is enabled but there is a loaded account (ID: %q). "+
			"Skipping registration", client.Account.ID)
	}

	if acctID := client.AccountID(); acctID != "" {
		log.Printf("Active account: %q", acctID)
	}

	return client, nil
}

// AccountID returns the server-assigned URL of the client's Account. An empty
// string is returned when there is no Account or it has not been registered
// with the ACME server yet.
func (c *Client) AccountID() string {
	if c.Account == nil {
		return ""
	}
	return c.Account.ID
}
