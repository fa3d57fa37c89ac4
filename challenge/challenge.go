// Package challenge defines how challenge responses get provisioned into the
// outside world: the Provisioner interface the ACME client drives, the
// http-01 and dns-01 response derivations, and a DNS propagation checker.
package challenge

import (
	"context"
	"crypto/sha256"
	"strings"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
)

// Record identifies a provisioned dns-01 TXT record so it can be torn down
// later.
type Record struct {
	// The domain the record authorizes, without any "*." prefix.
	Domain string
	// The fully qualified record name, "_acme-challenge.<domain>.".
	Name string
	// The record value: the Base64URL SHA-256 digest of the key
	// authorization.
	Value string
}

// Provisioner completes challenges out-of-band: serving http-01 key
// authorizations and publishing dns-01 TXT records. The ACME client core
// never touches web servers or DNS APIs itself; implementations of this
// interface do.
//
// Teardown is not best-effort: the client calls TeardownDNS/TeardownHTTP
// once the authorization reaches a terminal state whether validation
// succeeded or failed.
type Provisioner interface {
	// ProvisionHTTP makes the key authorization retrievable at
	// http://<domain>/.well-known/acme-challenge/<token>.
	ProvisionHTTP(ctx context.Context, token, keyAuth string) error
	// TeardownHTTP removes a previously provisioned http-01 response.
	TeardownHTTP(ctx context.Context, token string) error
	// ProvisionDNS publishes the dns-01 TXT record for the domain and key
	// authorization, returning a handle for teardown. Implementations derive
	// the record with DNSRecord.
	ProvisionDNS(ctx context.Context, domain, keyAuth string) (Record, error)
	// TeardownDNS deletes a previously provisioned TXT record.
	TeardownDNS(ctx context.Context, record Record) error
	// WaitForDNSPropagation blocks until the TXT record is visible to the
	// resolvers the CA will use, or the context expires. The client calls it
	// between ProvisionDNS and notifying the CA.
	WaitForDNSPropagation(ctx context.Context, record Record) error
}

// HTTPPath returns the well-known URL path an http-01 response must be
// served under.
//
// See https://tools.ietf.org/html/rfc8555#section-8.3
func HTTPPath(token string) string {
	return "/.well-known/acme-challenge/" + token
}

// DNSRecordName returns the TXT record name for a dns-01 challenge on the
// given domain: any wildcard prefix is stripped and the validation label
// prepended, with a trailing dot to make the name fully qualified.
//
// See https://tools.ietf.org/html/rfc8555#section-8.4
func DNSRecordName(domain string) string {
	domain = strings.TrimPrefix(domain, "*.")
	return "_acme-challenge." + domain + "."
}

// DNSRecordValue returns the TXT record value for a dns-01 challenge: the
// Base64URL SHA-256 digest of the key authorization, not the raw key
// authorization itself.
func DNSRecordValue(keyAuth string) string {
	digest := sha256.Sum256([]byte(keyAuth))
	return codec.Base64URL(digest[:])
}

// DNSRecord derives the full dns-01 Record for a domain and key
// authorization.
func DNSRecord(domain, keyAuth string) Record {
	return Record{
		Domain: strings.TrimPrefix(domain, "*."),
		Name:   DNSRecordName(domain),
		Value:  DNSRecordValue(keyAuth),
	}
}
