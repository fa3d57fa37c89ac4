package resources

import (
	"fmt"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
)

// Problem is an ACME problem document: the structured error body the server
// returns on 4xx/5xx responses. A Problem is an error so the CA's detail text
// propagates, unaltered, to whatever surfaces the failure.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	// A URN identifying the error class, e.g.
	// "urn:ietf:params:acme:error:badNonce".
	Type string `json:"type"`
	// A human readable explanation from the server.
	Detail string `json:"detail"`
	// The HTTP status code of the response that carried the problem.
	Status int `json:"status"`
}

// Error renders the problem with the CA's original detail text.
func (p *Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("acme problem %s: %s", p.Type, p.Detail)
	}
	return fmt.Sprintf("acme problem %s (status %d)", p.Type, p.Status)
}

// IsBadNonce reports whether the problem is the badNonce rejection that makes
// a signed request safe to rebuild and retry with a fresh nonce.
func (p *Problem) IsBadNonce() bool {
	return p.Type == acme.BAD_NONCE_ERROR
}
