package identity

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// on-disk layout when a passphrase is configured: 1-byte version (0x01) ||
// 12-byte nonce || ciphertext+tag. Version 0x00 means the secret is stored
// in the clear (no passphrase configured).
const (
	versionPlain     byte = 0x00
	versionEncrypted byte = 0x01
)

func encodeSecretFile(secret []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return append([]byte{versionPlain}, secret...), nil
	}
	aead, err := newAEAD(passphrase)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, secret, nil)
	out := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	out = append(out, versionEncrypted)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

func decodeSecretFile(raw []byte, passphrase string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty secret file")
	}
	switch raw[0] {
	case versionPlain:
		secret := raw[1:]
		if len(secret) != secretLen {
			return nil, ErrInvalidSecretLength
		}
		return secret, nil
	case versionEncrypted:
		if passphrase == "" {
			return nil, errors.New("secret file is encrypted but no passphrase was configured")
		}
		aead, err := newAEAD(passphrase)
		if err != nil {
			return nil, err
		}
		body := raw[1:]
		if len(body) < aead.NonceSize() {
			return nil, errors.New("truncated secret file")
		}
		nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
		secret, err := aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypt secret: %w", err)
		}
		if len(secret) != secretLen {
			return nil, ErrInvalidSecretLength
		}
		return secret, nil
	default:
		return nil, fmt.Errorf("unknown secret file version %d", raw[0])
	}
}

func newAEAD(passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))
	return chacha20poly1305.New(key[:])
}
