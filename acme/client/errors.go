package client

import (
	"fmt"
	"strings"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
)

// DirectoryUnreachableError indicates the ACME server's directory resource
// could not be fetched or parsed. Fatal: without the directory no endpoint
// URLs are known.
type DirectoryUnreachableError struct {
	// The directory URL that failed.
	URL string
	// The underlying transport or decoding error.
	Err error
}

func (e *DirectoryUnreachableError) Error() string {
	return fmt.Sprintf("unable to fetch ACME directory from %q: %s", e.URL, e.Err)
}

func (e *DirectoryUnreachableError) Unwrap() error {
	return e.Err
}

// NonceUnavailableError indicates the server omitted the Replay-Nonce header
// from a response to the newNonce endpoint. Retryable by fetching again.
type NonceUnavailableError struct {
	// The URL that was expected to supply a nonce.
	URL string
}

func (e *NonceUnavailableError) Error() string {
	return fmt.Sprintf("%q returned no Replay-Nonce header value", e.URL)
}

// RegistrationError indicates the CA rejected a newAccount request. Fatal;
// carries the CA's problem document.
type RegistrationError struct {
	Problem *resources.Problem
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("account registration rejected: %s", e.Problem)
}

func (e *RegistrationError) Unwrap() error {
	return e.Problem
}

// ChallengeUnsupportedError indicates no acceptable challenge could be chosen
// for an authorization: either the server did not offer the preferred
// challenge type, or the identifier is a wildcard, which only dns-01 can
// authorize. Fatal configuration error; no challenge request is attempted.
type ChallengeUnsupportedError struct {
	// The identifier the authorization covers.
	Identifier string
	// The challenge type the client was configured to use.
	Preferred string
	// The challenge types the server offered.
	Offered []string
	// True when the preferred type was rejected because the identifier is
	// a wildcard.
	Wildcard bool
}

func (e *ChallengeUnsupportedError) Error() string {
	if e.Wildcard {
		return fmt.Sprintf(
			"challenge type %q can not authorize wildcard identifier %q: wildcard identifiers require %q",
			e.Preferred, "*."+e.Identifier, "dns-01")
	}
	return fmt.Sprintf(
		"authorization for %q offers no %q challenge (offered: %s)",
		e.Identifier, e.Preferred, strings.Join(e.Offered, ", "))
}

// ChallengeFailedError indicates the CA validated a challenge and found it
// invalid. Fatal; carries the CA's problem document explaining the failure.
type ChallengeFailedError struct {
	// The identifier the failed challenge was authorizing.
	Identifier string
	// The CA's explanation of the failure, when one was provided.
	Problem *resources.Problem
}

func (e *ChallengeFailedError) Error() string {
	if e.Problem != nil {
		return fmt.Sprintf("challenge for %q failed: %s", e.Identifier, e.Problem)
	}
	return fmt.Sprintf("challenge for %q failed with no error detail", e.Identifier)
}

func (e *ChallengeFailedError) Unwrap() error {
	if e.Problem == nil {
		return nil
	}
	return e.Problem
}

// PollTimeoutError indicates the client gave up waiting for a resource to
// reach a terminal status. Distinct from ChallengeFailedError so callers can
// tell "the CA rejected us" apart from "we stopped waiting". The deadline is
// either the configured poll budget or the order's server-side expiry,
// whichever comes first.
type PollTimeoutError struct {
	// The URL of the resource being polled.
	Resource string
	// The status the resource held when the deadline passed.
	LastStatus string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("gave up polling %q (last status %q)", e.Resource, e.LastStatus)
}

// UnexpectedOrderStatusError indicates an order held a status that violates
// the protocol state machine (e.g. not "ready" after all authorizations
// became valid). Fatal.
type UnexpectedOrderStatusError struct {
	// The order URL.
	Order string
	// The status the order reported.
	Status string
	// The status the state machine required.
	Expected string
	// The problem the server attached to the order, if any.
	Problem *resources.Problem
}

func (e *UnexpectedOrderStatusError) Error() string {
	msg := fmt.Sprintf("order %q has status %q, expected %q", e.Order, e.Status, e.Expected)
	if e.Problem != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Problem)
	}
	return msg
}

func (e *UnexpectedOrderStatusError) Unwrap() error {
	if e.Problem == nil {
		return nil
	}
	return e.Problem
}
