// Package xhash defines the external blob identity used by the Repo
// Adapter and Blob Identity Store: a 20-byte content hash, as produced by
// the version-control store Elixir indexes.
package xhash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Size is the length in bytes of a Hash.
const Size = 20

// Hash is a 20-byte content hash identifying a blob in the external
// version-control store. The zero value is not a valid hash.
type Hash [Size]byte

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of h's bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// FromBytes builds a Hash from a 20-byte slice, copying its contents.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, fmt.Errorf("xhash: want %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// FromHex parses a 40-character hex string into a Hash.
func FromHex(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("xhash: invalid hex %q: %w", s, err)
	}
	return FromBytes(raw)
}

// Sum computes the content hash of data.
func Sum(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(sum)
}
