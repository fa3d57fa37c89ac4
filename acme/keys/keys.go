// Package keys offers signing key material for ACME: RSA and ECDSA signing
// keys, their JWK projections and thumbprints, JOSE signature production, and
// PEM serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
)

// A SigningKey is an asymmetric keypair that can authenticate ACME requests.
// Implementations exist for RSA and ECDSA private keys. A SigningKey is
// immutable once created: its JWK projection and algorithm name never change
// for the lifetime of the instance.
//
// Two independent SigningKeys participate in a full issuance: the account key
// (registered with the ACME server, used for every JWS) and the certificate
// key (bound into the finalized certificate's CSR). RFC 8555 Section 11.1
// recommends they not be the same key.
type SigningKey interface {
	// Signer returns the underlying crypto.Signer.
	Signer() crypto.Signer
	// Algorithm returns the JWS "alg" header value for this key ("RS256",
	// "ES256", "ES384" or "ES512").
	Algorithm() string
	// PublicJWK returns the JWK projection of the key's public component.
	PublicJWK() JWK
	// SignJOSE signs the given data and returns signature bytes in the form
	// JWS requires: a PKCS#1 v1.5 signature for RSA keys, or the fixed-width
	// concatenation of the (r, s) pair for ECDSA keys. The ASN.1 DER encoding
	// produced by the ECDSA primitive is never returned.
	SignJOSE(data []byte) ([]byte, error)
}

// Thumbprint returns the RFC 7638 thumbprint of the key's public JWK,
// Base64URL encoded. The thumbprint is stable for the lifetime of the key and
// binds challenge responses to the account key.
func Thumbprint(key SigningKey) (string, error) {
	return key.PublicJWK().Thumbprint()
}

// KeyAuthorization computes the key authorization string for a challenge
// token: the token joined to the account key's JWK thumbprint with a ".".
// See https://tools.ietf.org/html/rfc8555#section-8.1
func KeyAuthorization(key SigningKey, token string) (string, error) {
	thumbprint, err := Thumbprint(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumbprint), nil
}

// GenerateRSA creates a new RSA SigningKey. Only 2048 and 4096 bit moduli are
// accepted.
func GenerateRSA(bits int) (SigningKey, error) {
	if bits != 2048 && bits != 4096 {
		return nil, fmt.Errorf("unsupported RSA key size %d: must be 2048 or 4096", bits)
	}
	privKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &rsaKey{key: privKey}, nil
}

// GenerateEC creates a new ECDSA SigningKey on the named curve. The accepted
// curve names are "P-256", "P-384" and "P-521".
func GenerateEC(curveName string) (SigningKey, error) {
	var curve elliptic.Curve
	switch curveName {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q: must be P-256, P-384 or P-521", curveName)
	}
	privKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, err
	}
	return &ecdsaKey{key: privKey}, nil
}

// FromSigner wraps an existing crypto.Signer as a SigningKey. The signer must
// be an *rsa.PrivateKey or an *ecdsa.PrivateKey on a supported curve.
func FromSigner(signer crypto.Signer) (SigningKey, error) {
	switch k := signer.(type) {
	case *rsa.PrivateKey:
		return &rsaKey{key: k}, nil
	case *ecdsa.PrivateKey:
		if _, err := curveProfile(k.Curve); err != nil {
			return nil, err
		}
		return &ecdsaKey{key: k}, nil
	default:
		return nil, fmt.Errorf("signer was unknown type: %T", k)
	}
}

// rsaKey is the RSA variant of SigningKey. RSA keys always sign with RS256.
type rsaKey struct {
	key *rsa.PrivateKey
}

func (k *rsaKey) Signer() crypto.Signer {
	return k.key
}

func (k *rsaKey) Algorithm() string {
	return "RS256"
}

func (k *rsaKey) PublicJWK() JWK {
	pub := k.key.Public().(*rsa.PublicKey)
	return JWK{
		Kty: "RSA",
		N:   codec.Base64URL(pub.N.Bytes()),
		E:   codec.Base64URL(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func (k *rsaKey) SignJOSE(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, k.key, crypto.SHA256, digest[:])
}

// ecdsaKey is the ECDSA variant of SigningKey. The JWS algorithm, digest and
// coordinate width all follow from the key's curve.
type ecdsaKey struct {
	key *ecdsa.PrivateKey
}

// profile describes the JOSE parameters for a named curve. Note the deliberate
// RFC 7518 quirk: the 521 bit curve maps to the 512 bit digest, so P-521 signs
// with "ES512" and SHA-512.
type profile struct {
	name      string
	alg       string
	hash      crypto.Hash
	coordSize int
}

func curveProfile(curve elliptic.Curve) (profile, error) {
	switch curve {
	case elliptic.P256():
		return profile{"P-256", "ES256", crypto.SHA256, 32}, nil
	case elliptic.P384():
		return profile{"P-384", "ES384", crypto.SHA384, 48}, nil
	case elliptic.P521():
		return profile{"P-521", "ES512", crypto.SHA512, 66}, nil
	default:
		return profile{}, fmt.Errorf("unsupported curve %q", curve.Params().Name)
	}
}

func (k *ecdsaKey) Signer() crypto.Signer {
	return k.key
}

func (k *ecdsaKey) Algorithm() string {
	// FromSigner and GenerateEC guarantee the curve is a supported one.
	p, _ := curveProfile(k.key.Curve)
	return p.alg
}

func (k *ecdsaKey) PublicJWK() JWK {
	p, _ := curveProfile(k.key.Curve)
	pub := k.key.Public().(*ecdsa.PublicKey)
	return JWK{
		Kty: "EC",
		Crv: p.name,
		X:   codec.Base64URL(CurveCoordinate(k.key.Curve, pub.X)),
		Y:   codec.Base64URL(CurveCoordinate(k.key.Curve, pub.Y)),
	}
}

func (k *ecdsaKey) SignJOSE(data []byte) ([]byte, error) {
	p, err := curveProfile(k.key.Curve)
	if err != nil {
		return nil, err
	}

	var digest []byte
	switch p.hash {
	case crypto.SHA256:
		sum := sha256.Sum256(data)
		digest = sum[:]
	case crypto.SHA384:
		sum := sha512.Sum384(data)
		digest = sum[:]
	case crypto.SHA512:
		sum := sha512.Sum512(data)
		digest = sum[:]
	}

	derSig, err := ecdsa.SignASN1(rand.Reader, k.key, digest)
	if err != nil {
		return nil, err
	}
	return unpackDERSignature(derSig, p.coordSize)
}
