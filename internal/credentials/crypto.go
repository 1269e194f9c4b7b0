// Package credentials implements C2: encrypted persistence of
// StorageConnection credentials and a background refresher for OAuth
// tokens nearing expiry, grounded on the identity-provider OAuth2
// authorization-code flow pattern generalized to storage-provider
// authorization (wisbric-nightowl/internal/auth/oidc_flow.go).
package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const keySize = 32

// sealer encrypts and decrypts credential blobs at rest using
// nacl/secretbox keyed by CREDENTIAL_MASTER_KEY. A fresh random nonce is
// prepended to every ciphertext.
type sealer struct {
	key [keySize]byte
}

// newSealer decodes a base64 32-byte master key. An empty key is accepted
// and yields a sealer with an all-zero key; neither newSealer nor its
// caller reports that as unconfigured.
func newSealer(masterKeyB64 string) (*sealer, error) {
	var key [keySize]byte
	if masterKeyB64 == "" {
		return &sealer{key: key}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode CREDENTIAL_MASTER_KEY: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("CREDENTIAL_MASTER_KEY must decode to %d bytes, got %d", keySize, len(raw))
	}
	copy(key[:], raw)
	return &sealer{key: key}, nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		if len(sealed) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("sealed credential blob too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("credential blob authentication failed")
	}
	return plain, nil
}
