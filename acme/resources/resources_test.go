package resources

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme"
)

func TestNewAccount(t *testing.T) {
	acct, err := NewAccount([]string{"admin@example.com", "", "ops@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:admin@example.com", "mailto:ops@example.com"}, acct.Contact)
	assert.Empty(t, acct.ID, "a fresh account has no server URL yet")
	require.NotNil(t, acct.Key)
	assert.Equal(t, "ES256", acct.Key.Algorithm())
}

func TestAccountSaveRestore(t *testing.T) {
	acct, err := NewAccount([]string{"admin@example.com"}, nil)
	require.NoError(t, err)
	acct.ID = "https://example.com/acme/acct/1"

	path := filepath.Join(t.TempDir(), "account.json")
	require.NoError(t, SaveAccount(path, acct))

	restored, err := RestoreAccount(path)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, restored.ID)
	assert.Equal(t, acct.Contact, restored.Contact)

	// The restored key is the same keypair, so it has the same thumbprint.
	want, err := acct.Key.PublicJWK().Thumbprint()
	require.NoError(t, err)
	got, err := restored.Key.PublicJWK().Thumbprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRestoreAccountMissingFile(t *testing.T) {
	_, err := RestoreAccount(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestProblemError(t *testing.T) {
	problem := &Problem{
		Type:   acme.BAD_NONCE_ERROR,
		Detail: "JWS has an invalid anti-replay nonce",
		Status: 400,
	}
	assert.True(t, problem.IsBadNonce())
	assert.Contains(t, problem.Error(), "JWS has an invalid anti-replay nonce")

	other := &Problem{Type: acme.ERROR_NAMESPACE + "unauthorized", Status: 403}
	assert.False(t, other.IsBadNonce())
	assert.Contains(t, other.Error(), "unauthorized")
}

func TestOrderExpiresTime(t *testing.T) {
	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "pending",
		"expires": "2026-09-01T12:00:00Z",
		"identifiers": [{"type": "dns", "value": "example.com"}]
	}`), &order))

	expiry, ok := order.ExpiresTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC), expiry.UTC())

	var bare Order
	_, ok = bare.ExpiresTime()
	assert.False(t, ok)
}

func TestIdentifierIsWildcard(t *testing.T) {
	assert.True(t, Identifier{Type: "dns", Value: "*.example.com"}.IsWildcard())
	assert.False(t, Identifier{Type: "dns", Value: "example.com"}.IsWildcard())
}

func TestChallengeIsTerminal(t *testing.T) {
	assert.True(t, Challenge{Status: acme.STATUS_VALID}.IsTerminal())
	assert.True(t, Challenge{Status: acme.STATUS_INVALID}.IsTerminal())
	assert.False(t, Challenge{Status: acme.STATUS_PENDING}.IsTerminal())
	assert.False(t, Challenge{Status: acme.STATUS_PROCESSING}.IsTerminal())
}
