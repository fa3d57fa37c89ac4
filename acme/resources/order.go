package resources

import (
	"time"
)

// The Order resource represents a collection of identifiers that an account
// wishes to create a Certificate for.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
//
// To understand the Status changes specified by ACME for the Order resource
// see https://tools.ietf.org/html/rfc8555#section-7.1.6
type Order struct {
	// The server-assigned ID (a URL) identifying the Order, taken from the
	// Location header of the newOrder response. Not an ACME field; used to
	// re-fetch the Order.
	ID string `json:"-"`
	// The Status of the Order: "pending" until all authorizations are valid,
	// then "ready", "processing" after finalization, and finally "valid" (or
	// "invalid" on any failure).
	Status string `json:"status"`
	// A string representing an RFC 3339 date at which time the server
	// considers the Order expired.
	Expires string `json:"expires,omitempty"`
	// The Identifiers the Order wishes to finalize a Certificate for once the
	// Order is ready.
	Identifiers []Identifier `json:"identifiers"`
	// A list of URLs for Authorization resources the server specifies for the
	// Order Identifiers, one per identifier.
	Authorizations []string `json:"authorizations,omitempty"`
	// A URL used to Finalize the Order with a CSR once the Order has a status
	// of "ready".
	Finalize string `json:"finalize,omitempty"`
	// A URL used to fetch the Certificate issued by the server for the Order
	// after being Finalized. Present and not-empty once the Order has a
	// status of "valid".
	Certificate string `json:"certificate,omitempty"`
	// The error that caused the Order to become invalid, if any.
	Error *Problem `json:"error,omitempty"`
}

// String returns the Order's ID URL.
func (o Order) String() string {
	return o.ID
}

// ExpiresTime parses the Order's Expires field. A zero time and false are
// returned when the server did not provide an expiry.
func (o Order) ExpiresTime() (time.Time, bool) {
	if o.Expires == "" {
		return time.Time{}, false
	}
	expires, err := time.Parse(time.RFC3339, o.Expires)
	if err != nil {
		return time.Time{}, false
	}
	return expires, true
}
