package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64URLRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("f"),
		[]byte("fo"),
		[]byte("foo"),
		{0x00, 0x01, 0x02, 0xfb, 0xfc, 0xfd, 0xfe, 0xff},
		{0xff, 0xef, 0xbf},
	}

	for _, input := range inputs {
		encoded := Base64URL(input)
		assert.False(t, strings.ContainsAny(encoded, "=+/"),
			"encoding of %v contained a forbidden character: %q", input, encoded)

		decoded, err := DecodeBase64URL(encoded)
		require.NoError(t, err)
		assert.Equal(t, input, decoded)
	}
}

func TestBase64URLKnownValues(t *testing.T) {
	// Example values from RFC 7515 Appendix C.
	assert.Equal(t, "", Base64URL(nil))
	assert.Equal(t, "AxY8DCtDaGlsbGljb3RoZQ",
		Base64URL([]byte{3, 22, 60, 12, 43, 67, 104, 105, 108, 108, 105, 99, 111, 116, 104, 101}))
}

func TestDecodeBase64URLRejectsPadding(t *testing.T) {
	_, err := DecodeBase64URL("Zm9v==")
	assert.Error(t, err)
}

func TestBase64URLJSONStableOrdering(t *testing.T) {
	// Maps serialize with keys in sorted order, so repeated encodings of the
	// same value must be byte-identical.
	value := map[string]string{
		"y":   "b",
		"crv": "P-256",
		"kty": "EC",
		"x":   "a",
	}

	first, err := Base64URLJSON(value)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Base64URLJSON(value)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	decoded, err := DecodeBase64URL(first)
	require.NoError(t, err)
	assert.Equal(t, `{"crv":"P-256","kty":"EC","x":"a","y":"b"}`, string(decoded))
}
