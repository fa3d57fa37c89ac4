package client

import (
	"crypto/rand"
	"crypto/x509"
	"fmt"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/keys"
)

// NewCSR produces a DER encoded Certificate Signing Request for the given
// names, signed by the given certificate key. All names travel as Subject
// Alternative Names; the Common Name is left empty, since modern CAs reject
// CSRs that carry names only in the CN.
func NewCSR(certKey keys.SigningKey, names []string) ([]byte, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("csr: no names specified")
	}

	template := x509.CertificateRequest{
		DNSNames: names,
	}
	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &template, certKey.Signer())
	if err != nil {
		return nil, err
	}
	return csrDER, nil
}
