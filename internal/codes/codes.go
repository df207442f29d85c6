// Package codes implements the versioned invite/recovery code encoding of
// §4.2 and §6.3: a tagged union, binary-encoded, then hex-wrapped with the
// literal ASCII prefix "pct".
package codes

import (
	"encoding/hex"
	"errors"
	"fmt"
)

const prefix = "pct"

// tag identifies the variant carried by a Code. Once assigned, a tag value
// is never reused for a different variant (§9 "Code versioning").
type tag byte

const (
	tagInvite   tag = 0
	tagRecovery tag = 1
)

const idLen = 16

// pubKeyLen is the length of a compressed secp256k1 public key, the
// transport identity carried by an Invite code.
const pubKeyLen = 33

// ErrMalformed is returned when a code string does not have the "pct"
// prefix or its payload cannot be decoded.
var ErrMalformed = errors.New("codes: malformed code")

// ErrWrongVariant is returned by the As* accessors when the code does not
// carry the requested variant.
var ErrWrongVariant = errors.New("codes: wrong variant")

// Code is a decoded invite or recovery code. Exactly one of the As*
// accessors succeeds, matching the variant it was built or decoded from.
type Code struct {
	t        tag
	id       [idLen]byte
	nodeID   [pubKeyLen]byte
	hasNode  bool
}

// NewInvite builds an Invite code carrying id and the daemon's transport
// public key (compressed secp256k1, pubKeyLen bytes).
func NewInvite(id [idLen]byte, nodeID []byte) (Code, error) {
	if len(nodeID) != pubKeyLen {
		return Code{}, fmt.Errorf("codes: node id must be %d bytes, got %d", pubKeyLen, len(nodeID))
	}
	c := Code{t: tagInvite, id: id, hasNode: true}
	copy(c.nodeID[:], nodeID)
	return c, nil
}

// NewRecovery builds a Recovery code carrying id.
func NewRecovery(id [idLen]byte) Code {
	return Code{t: tagRecovery, id: id}
}

// AsInvite returns the 16-byte id and transport public key if this code is
// an Invite, or ErrWrongVariant otherwise.
func (c Code) AsInvite() ([idLen]byte, []byte, error) {
	if c.t != tagInvite {
		return [idLen]byte{}, nil, ErrWrongVariant
	}
	nodeID := make([]byte, pubKeyLen)
	copy(nodeID, c.nodeID[:])
	return c.id, nodeID, nil
}

// AsRecovery returns the 16-byte id if this code is a Recovery, or
// ErrWrongVariant otherwise.
func (c Code) AsRecovery() ([idLen]byte, error) {
	if c.t != tagRecovery {
		return [idLen]byte{}, ErrWrongVariant
	}
	return c.id, nil
}

// Encode serializes c as a compact tagged binary payload, hex-encodes it,
// and prepends the literal "pct" prefix.
func (c Code) Encode() string {
	var buf []byte
	switch c.t {
	case tagInvite:
		buf = make([]byte, 0, 1+idLen+pubKeyLen)
		buf = append(buf, byte(tagInvite))
		buf = append(buf, c.id[:]...)
		buf = append(buf, c.nodeID[:]...)
	case tagRecovery:
		buf = make([]byte, 0, 1+idLen)
		buf = append(buf, byte(tagRecovery))
		buf = append(buf, c.id[:]...)
	}
	return prefix + hex.EncodeToString(buf)
}

// Decode parses a code string produced by Encode, failing unless the
// prefix matches and the payload deserializes into a known variant.
func Decode(s string) (Code, error) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return Code{}, ErrMalformed
	}
	payload, err := hex.DecodeString(s[len(prefix):])
	if err != nil {
		return Code{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(payload) < 1+idLen {
		return Code{}, ErrMalformed
	}
	var c Code
	c.t = tag(payload[0])
	copy(c.id[:], payload[1:1+idLen])
	rest := payload[1+idLen:]
	switch c.t {
	case tagInvite:
		if len(rest) != pubKeyLen {
			return Code{}, ErrMalformed
		}
		copy(c.nodeID[:], rest)
		c.hasNode = true
	case tagRecovery:
		if len(rest) != 0 {
			return Code{}, ErrMalformed
		}
	default:
		return Code{}, ErrMalformed
	}
	return c, nil
}
