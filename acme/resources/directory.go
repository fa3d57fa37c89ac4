// Package resources provides types for representing ACME protocol resources.
package resources

// Directory is the ACME server's directory resource: the map of protocol
// operations to the absolute URLs that serve them. It is fetched once with an
// unsigned GET and cached for the lifetime of a client.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Directory struct {
	// The URL for fetching a fresh anti-replay nonce with a HEAD request.
	NewNonce string `json:"newNonce"`
	// The URL for registering a new account.
	NewAccount string `json:"newAccount"`
	// The URL for placing a new certificate order.
	NewOrder string `json:"newOrder"`
	// The URL for revoking a certificate.
	RevokeCert string `json:"revokeCert"`
	// The URL for rolling an account over to a new key.
	KeyChange string `json:"keyChange"`
	// Directory metadata.
	Meta DirectoryMeta `json:"meta"`
}

// DirectoryMeta holds the optional metadata fields of a directory resource.
type DirectoryMeta struct {
	// The URL of the server's current terms of service document.
	TermsOfService string `json:"termsOfService,omitempty"`
	// The URL of a website for the CA operating the server.
	Website string `json:"website,omitempty"`
	// The CAA issuer domain names recognized by the server.
	CAAIdentities []string `json:"caaIdentities,omitempty"`
	// True when newAccount requires an external account binding.
	ExternalAccountRequired bool `json:"externalAccountRequired,omitempty"`
}
