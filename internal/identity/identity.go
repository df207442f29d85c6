// Package identity manages the daemon's stable transport keypair.
//
// The daemon derives its long-term identity from a 32-byte secret stored
// alongside the ledger database. The secret is generated once on first run
// and reused across restarts, exactly as the public key used by clients to
// address this daemon over the peer-to-peer transport (§1, §6.4).
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
)

const secretFileName = "punctured_secret.key"
const secretLen = 32

// ErrInvalidSecretLength is returned when an on-disk secret file is not
// exactly secretLen bytes.
var ErrInvalidSecretLength = errors.New("identity: secret file has invalid length")

// Identity wraps the daemon's secp256k1 keypair, derived from the 32-byte
// secret at <data_dir>/punctured_secret.key.
type Identity struct {
	priv *btcec.PrivateKey
}

// SecretPath returns the path of the secret file under dataDir.
func SecretPath(dataDir string) string {
	return filepath.Join(dataDir, secretFileName)
}

// Exists reports whether a secret file already exists under dataDir.
func Exists(dataDir string) bool {
	_, err := os.Stat(SecretPath(dataDir))
	return err == nil
}

// LoadOrGenerate reads the secret file under dataDir, generating and
// persisting a new random one if absent. The returned Identity wraps the
// derived secp256k1 keypair.
//
// If passphrase is non-empty, the secret is encrypted at rest with
// ChaCha20-Poly1305 keyed by a SHA-256 digest of the passphrase (see
// secret.go). An empty passphrase stores the secret in the clear, matching
// the original daemon's default behavior.
func LoadOrGenerate(dataDir, passphrase string) (*Identity, error) {
	path := SecretPath(dataDir)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		secret, derr := decodeSecretFile(raw, passphrase)
		if derr != nil {
			return nil, fmt.Errorf("identity: decode %s: %w", path, derr)
		}
		return fromSecret(secret)
	case os.IsNotExist(err):
		secret := make([]byte, secretLen)
		if _, rerr := rand.Read(secret); rerr != nil {
			return nil, fmt.Errorf("identity: generate secret: %w", rerr)
		}
		encoded, eerr := encodeSecretFile(secret, passphrase)
		if eerr != nil {
			return nil, fmt.Errorf("identity: encode secret: %w", eerr)
		}
		if werr := os.MkdirAll(filepath.Dir(path), 0o700); werr != nil {
			return nil, fmt.Errorf("identity: create data dir: %w", werr)
		}
		if werr := os.WriteFile(path, encoded, 0o600); werr != nil {
			return nil, fmt.Errorf("identity: write %s: %w", path, werr)
		}
		return fromSecret(secret)
	default:
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
}

func fromSecret(secret []byte) (*Identity, error) {
	if len(secret) != secretLen {
		return nil, ErrInvalidSecretLength
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return &Identity{priv: priv}, nil
}

// PublicKeyHex returns the compressed secp256k1 public key as lowercase hex,
// the stable identity string clients use to address this daemon.
func (id *Identity) PublicKeyHex() string {
	return fmt.Sprintf("%x", id.priv.PubKey().SerializeCompressed())
}

// PrivateKey exposes the raw keypair for transport-layer authentication.
func (id *Identity) PrivateKey() *btcec.PrivateKey {
	return id.priv
}
