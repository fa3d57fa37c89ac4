// Package codec provides the Base64URL and JSON serialization primitives used
// when constructing JWS requests and JWK thumbprints.
package codec

import (
	"encoding/base64"
	"encoding/json"
)

// Base64URL encodes the given bytes using the URL-safe Base64 alphabet with
// the padding characters stripped, as required for all binary fields in ACME
// requests. See https://tools.ietf.org/html/rfc8555#section-6.1
func Base64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes a string produced by Base64URL back to raw bytes.
func DecodeBase64URL(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}

// Base64URLJSON serializes the given value to JSON and encodes the resulting
// text with Base64URL. Maps and structs are serialized with
// encoding/json which emits struct fields in declaration order and map keys
// sorted lexicographically, so values that require canonical member ordering
// (JWK thumbprint input, JWS protected headers) serialize deterministically.
func Base64URLJSON(v interface{}) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Base64URL(jsonBytes), nil
}
