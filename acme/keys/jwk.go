package keys

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
)

// JWK is the JSON Web Key projection of a SigningKey's public component:
// {kty, n, e} for RSA keys or {kty, crv, x, y} for EC keys. A JWK is derived
// from its SigningKey on demand and never stored.
//
// See https://tools.ietf.org/html/rfc7517
type JWK struct {
	// The key type: "RSA" or "EC".
	Kty string `json:"kty"`
	// The named curve for EC keys ("P-256", "P-384", "P-521").
	Crv string `json:"crv,omitempty"`
	// The Base64URL affine coordinates of the EC public key point, encoded
	// fixed-width per the curve size.
	X string `json:"x,omitempty"`
	Y string `json:"y,omitempty"`
	// The Base64URL RSA public modulus and exponent.
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
}

// CanonicalJSON returns the RFC 7638 canonical serialization of the JWK: only
// the required members for the key type, with keys in lexicographic order and
// no insignificant whitespace. The CA recomputes this serialization when
// verifying key authorizations, so any ordering drift surfaces as a
// thumbprint mismatch from the server rather than a local error.
func (jwk JWK) CanonicalJSON() ([]byte, error) {
	// encoding/json serializes map keys in sorted order which is exactly the
	// ordering RFC 7638 requires ({crv, kty, x, y} and {e, kty, n}).
	members := map[string]string{
		"kty": jwk.Kty,
	}
	switch jwk.Kty {
	case "EC":
		members["crv"] = jwk.Crv
		members["x"] = jwk.X
		members["y"] = jwk.Y
	case "RSA":
		members["e"] = jwk.E
		members["n"] = jwk.N
	}
	return json.Marshal(members)
}

// Thumbprint returns the Base64URL encoded SHA-256 digest of the JWK's
// canonical JSON form.
//
// See https://tools.ietf.org/html/rfc7638#section-3
func (jwk JWK) Thumbprint() (string, error) {
	canonical, err := jwk.CanonicalJSON()
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return codec.Base64URL(digest[:]), nil
}
