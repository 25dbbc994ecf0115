// crypt.go - AES-GCM at-rest encryption for merchant addresses.

package metastore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

var errCiphertextTooShort = errors.New("metastore: ciphertext shorter than nonce")

// addressCipher seals and opens merchant addresses stored in the cache.
// A fresh nonce is drawn per seal and prefixed to the ciphertext.
type addressCipher struct {
	aead cipher.AEAD
}

// newAddressCipher builds an AES-GCM cipher from a 16-, 24-, or 32-byte
// key.
func newAddressCipher(key []byte) (*addressCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("metastore: invalid encryption key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("metastore: gcm init: %w", err)
	}
	return &addressCipher{aead: aead}, nil
}

func (c *addressCipher) seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("metastore: nonce generation: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (c *addressCipher) open(ciphertext []byte) (string, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return "", errCiphertextTooShort
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("metastore: decrypt: %w", err)
	}
	return string(plain), nil
}
