package resources

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/keys"
)

// Account holds information related to a single ACME Account resource. If the
// account has an empty ID it has not yet been registered server-side with the
// client's RegisterAccount function.
//
// The ID field holds the server assigned Account URL ("kid") that is assigned
// at the time of account creation and used as the JWS Key ID for
// authenticating all subsequent ACME requests with the Account's keypair.
type Account struct {
	// The server assigned Account URL, used as the JWS "kid" when
	// authenticating ACME requests with the Account's registered keypair.
	ID string
	// If not nil, a slice of one or more email addresses to be used as the
	// ACME Account's "mailto:" Contact addresses.
	Contact []string
	// The Account's keypair.
	Key keys.SigningKey
	// If not nil, a slice of URLs for Order resources the Account created
	// with the ACME server.
	Orders []string
}

// String returns the Account's ID or an empty string if it has not been
// registered with the ACME server.
func (a Account) String() string {
	return a.ID
}

// NewAccount creates an ACME account in-memory. *Important:* the created
// Account is *not* registered with the ACME server until it is explicitly
// registered with a Client instance's RegisterAccount function.
//
// The emails argument is a slice of zero or more email addresses that should
// be used as the Account's Contact information.
//
// The key argument is the SigningKey to use for the Account keypair. If nil
// a new P-256 ECDSA key is generated.
func NewAccount(emails []string, key keys.SigningKey) (*Account, error) {
	var contacts []string
	for _, e := range emails {
		if e == "" {
			continue
		}
		contacts = append(contacts, fmt.Sprintf("mailto:%s", e))
	}

	if key == nil {
		randKey, err := keys.GenerateEC("P-256")
		if err != nil {
			return nil, err
		}
		key = randKey
	}

	return &Account{
		Contact: contacts,
		Key:     key,
	}, nil
}

// rawAccount is the serialized form of an Account: the private key travels as
// its PEM encoding so the file is inspectable with standard tooling.
type rawAccount struct {
	ID         string
	Contact    []string
	PrivateKey string
}

// SaveAccount persists the given Account object (which must not be nil) to
// the given file path.
func SaveAccount(path string, account *Account) error {
	if account == nil {
		return fmt.Errorf("account must not be nil")
	}
	keyPEM, err := keys.EncodePEM(account.Key)
	if err != nil {
		return err
	}
	frozenAcct, err := json.MarshalIndent(rawAccount{
		ID:         account.ID,
		Contact:    account.Contact,
		PrivateKey: string(keyPEM),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, frozenAcct, 0600)
}

// RestoreAccount loads a previously saved Account object from the given file
// path. This file should have been created using SaveAccount in a previous
// session.
func RestoreAccount(path string) (*Account, error) {
	frozenBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawAcct rawAccount
	if err := json.Unmarshal(frozenBytes, &rawAcct); err != nil {
		return nil, err
	}

	key, err := keys.Load([]byte(rawAcct.PrivateKey))
	if err != nil {
		return nil, err
	}

	return &Account{
		ID:      rawAcct.ID,
		Contact: rawAcct.Contact,
		Key:     key,
	}, nil
}
