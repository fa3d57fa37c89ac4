package keys

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// KeyLoadError indicates a private key could not be deserialized: the file
// was missing, the PEM framing was damaged, or the key encoding was
// unsupported. It is fatal; the caller has no key to sign with.
type KeyLoadError struct {
	// The file path the key was read from, empty when loading raw bytes.
	Path string
	// The underlying parse or I/O error.
	Err error
}

func (e *KeyLoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("unable to load private key from %q: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("unable to load private key: %s", e.Err)
}

func (e *KeyLoadError) Unwrap() error {
	return e.Err
}

// Load deserializes a PEM encoded private key into a SigningKey. PKCS#1 RSA
// keys, SEC 1 EC keys and PKCS#8 keys of either type are accepted. A nil
// SigningKey and a *KeyLoadError are returned for anything else.
func Load(pemBytes []byte) (SigningKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, &KeyLoadError{Err: fmt.Errorf("no PEM block found")}
	}

	var signer crypto.Signer
	var err error
	switch block.Type {
	case "RSA PRIVATE KEY":
		signer, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		signer, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var parsed interface{}
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if signer, ok = parsed.(crypto.Signer); !ok {
				err = fmt.Errorf("PKCS#8 key of type %T cannot sign", parsed)
			}
		}
	default:
		err = fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
	if err != nil {
		return nil, &KeyLoadError{Err: err}
	}

	key, err := FromSigner(signer)
	if err != nil {
		return nil, &KeyLoadError{Err: err}
	}
	return key, nil
}

// LoadFile reads a PEM encoded private key from the given file path. Errors
// are returned as *KeyLoadError carrying the path.
func LoadFile(path string) (SigningKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, &KeyLoadError{Path: path, Err: err}
	}
	key, err := Load(pemBytes)
	if err != nil {
		if loadErr, ok := err.(*KeyLoadError); ok {
			loadErr.Path = path
		}
		return nil, err
	}
	return key, nil
}

// EncodePEM serializes a SigningKey's private component to PEM: a PKCS#1
// "RSA PRIVATE KEY" block for RSA keys or a SEC 1 "EC PRIVATE KEY" block for
// EC keys.
func EncodePEM(key SigningKey) ([]byte, error) {
	keyBytes, keyHeader, err := marshalSigner(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  keyHeader,
		Bytes: keyBytes,
	}), nil
}

// SaveFile writes the PEM serialization of a SigningKey to the given path,
// readable only by the owning user.
func SaveFile(path string, key SigningKey) error {
	pemBytes, err := EncodePEM(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pemBytes, 0600)
}

func marshalSigner(key SigningKey) ([]byte, string, error) {
	switch k := key.(type) {
	case *rsaKey:
		return x509.MarshalPKCS1PrivateKey(k.key), "RSA PRIVATE KEY", nil
	case *ecdsaKey:
		keyBytes, err := x509.MarshalECPrivateKey(k.key)
		if err != nil {
			return nil, "", err
		}
		return keyBytes, "EC PRIVATE KEY", nil
	default:
		return nil, "", fmt.Errorf("signing key was unknown type: %T", k)
	}
}
