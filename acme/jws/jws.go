// Package jws builds the signed request envelopes that authenticate every
// ACME POST: JSON Web Signatures in the Flattened JSON Serialization.
//
// See https://tools.ietf.org/html/rfc8555#section-6.2
package jws

import (
	"encoding/json"
	"fmt"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/keys"
)

// NonceSource supplies the anti-replay nonce for a JWS protected header. Each
// call to Nonce consumes one nonce; implementations must never hand out the
// same value twice.
type NonceSource interface {
	Nonce() (string, error)
}

// NoNonce is the NonceSource for the inner JWS of a key rollover request,
// whose protected header must omit the nonce entirely.
//
// See https://tools.ietf.org/html/rfc8555#section-7.3.5
var NoNonce NonceSource = noNonce{}

type noNonce struct{}

func (noNonce) Nonce() (string, error) { return "", nil }

// Envelope is a JWS in the Flattened JSON Serialization, the only form ACME
// servers accept. All three fields are Base64URL encoded.
type Envelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Marshal serializes the Envelope to the JSON request body to POST.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// SigningOptions allows specifying signature related options when calling
// Sign.
type SigningOptions struct {
	// If true, embed the signing key's public component as a JWK in the
	// protected header instead of using a Key ID. This is required for
	// endpoints that precede account registration (newAccount) and for the
	// inner JWS of a key rollover. Setting EmbedKey to true is mutually
	// exclusive with a non-empty KeyID.
	EmbedKey bool
	// If not-empty, the account URL to use as the protected "kid" header.
	// Providing a KeyID is mutually exclusive with setting EmbedKey to true.
	KeyID string
	// The SigningKey to produce the signature with.
	Key keys.SigningKey
	// NonceSource provides the anti-replay nonce for the protected header.
	// Often this will be a client.NonceManager.
	NonceSource NonceSource
}

// validate checks that the SigningOptions are sensible. This enforces the
// mutually exclusive KeyID and EmbedKey options and ensures that the
// NonceSource and Key are not nil.
func (opts *SigningOptions) validate() error {
	if opts.KeyID != "" && opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: cannot specify both KeyID and EmbedKey")
	}
	if opts.KeyID == "" && !opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: you must specify a KeyID or EmbedKey")
	}
	if opts.NonceSource == nil {
		return fmt.Errorf("SigningOptions validate: you must specify a NonceSource")
	}
	if opts.Key == nil {
		return fmt.Errorf("SigningOptions validate: you must specify a signing key")
	}
	return nil
}

// protectedHeader is the JWS protected header ACME requires: the signing
// algorithm, a fresh nonce, the exact request URL, and either the account key
// as an embedded JWK or the account URL as a Key ID.
type protectedHeader struct {
	Alg   string    `json:"alg"`
	JWK   *keys.JWK `json:"jwk,omitempty"`
	Kid   string    `json:"kid,omitempty"`
	Nonce string    `json:"nonce,omitempty"`
	URL   string    `json:"url"`
}

// Sign builds an Envelope for a POST to the given url carrying the given
// payload. An empty payload produces the empty-string payload encoding used
// by POST-as-GET requests. Exactly one nonce is consumed from the options'
// NonceSource per call: if the server rejects the envelope with a badNonce
// problem the whole envelope must be rebuilt with a fresh nonce, never
// patched.
func Sign(url string, payload []byte, opts SigningOptions) (*Envelope, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	nonce, err := opts.NonceSource.Nonce()
	if err != nil {
		return nil, err
	}

	header := protectedHeader{
		Alg:   opts.Key.Algorithm(),
		Nonce: nonce,
		URL:   url,
	}
	if opts.EmbedKey {
		jwk := opts.Key.PublicJWK()
		header.JWK = &jwk
	} else {
		header.Kid = opts.KeyID
	}

	protected, err := codec.Base64URLJSON(header)
	if err != nil {
		return nil, err
	}
	encodedPayload := codec.Base64URL(payload)

	signingInput := fmt.Sprintf("%s.%s", protected, encodedPayload)
	signature, err := opts.Key.SignJOSE([]byte(signingInput))
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Protected: protected,
		Payload:   encodedPayload,
		Signature: codec.Base64URL(signature),
	}, nil
}
