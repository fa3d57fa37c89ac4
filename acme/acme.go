// Package acme provides ACME protocol constants. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint.
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"
	// The ACME directory key for the revokeCert endpoint.
	REVOKE_CERT_ENDPOINT = "revokeCert"
	// The ACME directory key for the keyChange endpoint.
	KEY_CHANGE_ENDPOINT = "keyChange"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"
	// The HTTP response header used by ACME to communicate the URL of a newly
	// created resource (Account, Order).
	LOCATION_HEADER = "Location"
	// The HTTP response header a server may use to suggest a polling delay.
	RETRY_AFTER_HEADER = "Retry-After"

	// The Content-Type for JWS request bodies. See
	// https://tools.ietf.org/html/rfc8555#section-6.2
	JOSE_CONTENT_TYPE = "application/jose+json"
	// The Content-Type for ACME problem documents. See
	// https://tools.ietf.org/html/rfc8555#section-6.7
	PROBLEM_CONTENT_TYPE = "application/problem+json"

	// Status constants for Order, Authorization and Challenge resources. See
	// https://tools.ietf.org/html/rfc8555#section-7.1.6
	STATUS_PENDING     = "pending"
	STATUS_READY       = "ready"
	STATUS_PROCESSING  = "processing"
	STATUS_VALID       = "valid"
	STATUS_INVALID     = "invalid"
	STATUS_DEACTIVATED = "deactivated"
	STATUS_EXPIRED     = "expired"
	STATUS_REVOKED     = "revoked"

	// Challenge type constants. See
	// https://tools.ietf.org/html/rfc8555#section-8
	CHALLENGE_HTTP01 = "http-01"
	CHALLENGE_DNS01  = "dns-01"

	// The identifier type for fully qualified domain names. In practice the
	// only identifier type most ACME servers support.
	IDENTIFIER_DNS = "dns"

	// Problem document type URNs. See
	// https://tools.ietf.org/html/rfc8555#section-6.7
	ERROR_NAMESPACE = "urn:ietf:params:acme:error:"
	// The problem type returned when a JWS carried a stale or unknown nonce.
	// Requests rejected with this type are safe to retry with a fresh nonce.
	BAD_NONCE_ERROR = ERROR_NAMESPACE + "badNonce"
)
