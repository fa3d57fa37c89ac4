package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
)

func TestAlgorithmNames(t *testing.T) {
	testCases := []struct {
		curve string
		alg   string
	}{
		{"P-256", "ES256"},
		{"P-384", "ES384"},
		// The 521 bit curve deliberately maps to the 512 bit digest.
		{"P-521", "ES512"},
	}
	for _, tc := range testCases {
		key, err := GenerateEC(tc.curve)
		require.NoError(t, err)
		assert.Equal(t, tc.alg, key.Algorithm())
	}

	rsaKey, err := GenerateRSA(2048)
	require.NoError(t, err)
	assert.Equal(t, "RS256", rsaKey.Algorithm())
}

func TestGenerateRejectsBadParameters(t *testing.T) {
	_, err := GenerateRSA(1024)
	assert.Error(t, err)

	_, err = GenerateEC("P-224")
	assert.Error(t, err)
}

func TestThumbprintStable(t *testing.T) {
	key, err := GenerateEC("P-256")
	require.NoError(t, err)

	first, err := Thumbprint(key)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Thumbprint(key)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	otherKey, err := GenerateEC("P-256")
	require.NoError(t, err)
	otherThumbprint, err := Thumbprint(otherKey)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherThumbprint,
		"different public keys must produce different thumbprints")
}

// TestThumbprintMatchesJOSE cross-checks the hand-rolled canonical JSON
// serialization against go-jose's RFC 7638 implementation.
func TestThumbprintMatchesJOSE(t *testing.T) {
	ecKey, err := GenerateEC("P-256")
	require.NoError(t, err)
	rsaKey, err := GenerateRSA(2048)
	require.NoError(t, err)

	for _, key := range []SigningKey{ecKey, rsaKey} {
		joseJWK := jose.JSONWebKey{Key: key.Signer().Public()}
		expected, err := joseJWK.Thumbprint(crypto.SHA256)
		require.NoError(t, err)

		actual, err := Thumbprint(key)
		require.NoError(t, err)
		assert.Equal(t, codec.Base64URL(expected), actual)
	}
}

func TestKeyAuthorization(t *testing.T) {
	key, err := GenerateEC("P-256")
	require.NoError(t, err)

	thumbprint, err := Thumbprint(key)
	require.NoError(t, err)

	keyAuth, err := KeyAuthorization(key, "evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ-PCt92wr-oA")
	require.NoError(t, err)
	assert.Equal(t, "evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ-PCt92wr-oA."+thumbprint, keyAuth)
}

func TestCurveCoordinatePadding(t *testing.T) {
	// A one-byte value must be left-padded to the full coordinate width.
	encoded := CurveCoordinate(elliptic.P256(), big.NewInt(0x42))
	require.Len(t, encoded, 32)
	assert.Equal(t, byte(0x42), encoded[31])
	for _, b := range encoded[:31] {
		assert.Equal(t, byte(0), b)
	}

	assert.Len(t, CurveCoordinate(elliptic.P384(), big.NewInt(1)), 48)
	assert.Len(t, CurveCoordinate(elliptic.P521(), big.NewInt(1)), 66)
}

func TestUnpackDERSignature(t *testing.T) {
	der, err := asn1.Marshal(struct {
		R *big.Int
		S *big.Int
	}{big.NewInt(0x0102), big.NewInt(0x03)})
	require.NoError(t, err)

	raw, err := unpackDERSignature(der, 32)
	require.NoError(t, err)
	require.Len(t, raw, 64)
	assert.Equal(t, byte(0x01), raw[30])
	assert.Equal(t, byte(0x02), raw[31])
	assert.Equal(t, byte(0x03), raw[63])

	_, err = unpackDERSignature(append(der, 0x00), 32)
	assert.Error(t, err, "trailing bytes must be rejected")

	_, err = unpackDERSignature([]byte{0x30, 0x00}, 32)
	assert.Error(t, err, "an empty SEQUENCE must be rejected")
}

func TestSignJOSEEC(t *testing.T) {
	for _, curve := range []string{"P-256", "P-384", "P-521"} {
		key, err := GenerateEC(curve)
		require.NoError(t, err)
		p, err := curveProfile(key.Signer().(*ecdsa.PrivateKey).Curve)
		require.NoError(t, err)

		data := []byte("protected.payload")
		sig, err := key.SignJOSE(data)
		require.NoError(t, err)
		require.Len(t, sig, 2*p.coordSize,
			"%s signatures must be exactly two fixed-width coordinates", curve)

		r := new(big.Int).SetBytes(sig[:p.coordSize])
		s := new(big.Int).SetBytes(sig[p.coordSize:])
		digest := hashForProfile(t, p, data)
		pub := key.Signer().Public().(*ecdsa.PublicKey)
		assert.True(t, ecdsa.Verify(pub, digest, r, s),
			"%s signature must verify against the public key", curve)
	}
}

func hashForProfile(t *testing.T, p profile, data []byte) []byte {
	t.Helper()
	h := p.hash.New()
	h.Write(data)
	return h.Sum(nil)
}

func TestSignJOSERSA(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)

	data := []byte("protected.payload")
	sig, err := key.SignJOSE(data)
	require.NoError(t, err)

	digest := sha256.Sum256(data)
	pub := key.Signer().Public().(*rsa.PublicKey)
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig))
}

func TestPEMRoundTrip(t *testing.T) {
	ecKey, err := GenerateEC("P-256")
	require.NoError(t, err)
	rsaKey, err := GenerateRSA(2048)
	require.NoError(t, err)

	for _, key := range []SigningKey{ecKey, rsaKey} {
		pemBytes, err := EncodePEM(key)
		require.NoError(t, err)

		restored, err := Load(pemBytes)
		require.NoError(t, err)
		assert.Equal(t, key.Algorithm(), restored.Algorithm())
		assert.Equal(t, key.PublicJWK(), restored.PublicJWK())
	}
}

func TestLoadFileRoundTrip(t *testing.T) {
	key, err := GenerateEC("P-256")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "account.pem")
	require.NoError(t, SaveFile(path, key))

	restored, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicJWK(), restored.PublicJWK())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load([]byte("not a key"))
	var loadErr *KeyLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Empty(t, loadErr.Path)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.pem"))
	require.ErrorAs(t, err, &loadErr)
	assert.NotEmpty(t, loadErr.Path)
	assert.True(t, os.IsNotExist(loadErr.Unwrap()))

	// An unsupported curve parses as PEM but must fail key construction.
	p224Key, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	require.NoError(t, err)
	_, err = FromSigner(p224Key)
	assert.Error(t, err)
}
