// Package fingerprint computes content digests used for change detection.
// The digests are not meant for integrity or authentication.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes (128 bits)
const Size = 16

// Fingerprint identifies an artifact by its content
type Fingerprint [Size]byte

// Of returns the fingerprint of data
func Of(data []byte) Fingerprint {
	h, err := blake2b.New(Size, nil)
	if err != nil {
		// only returned for invalid sizes or oversized keys
		panic(err)
	}
	_, _ = h.Write(data)

	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// FromReader hashes the full content of r regardless of its current offset.
// The reader is rewound to the start afterwards so callers can read it again.
func FromReader(r io.ReadSeeker) (Fingerprint, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Fingerprint{}, fmt.Errorf("failed to rewind artifact: %w", err)
	}

	h, err := blake2b.New(Size, nil)
	if err != nil {
		return Fingerprint{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Fingerprint{}, fmt.Errorf("failed to read artifact: %w", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Fingerprint{}, fmt.Errorf("failed to rewind artifact: %w", err)
	}

	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f, nil
}

// Parse decodes a hex encoded fingerprint
func Parse(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	if len(b) != Size {
		return f, fmt.Errorf("invalid fingerprint length %d, want %d", len(b), Size)
	}
	copy(f[:], b)
	return f, nil
}

// String returns the hex encoding
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero value
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Equal reports whether both fingerprints identify the same content
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// MarshalText encodes the fingerprint as hex
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// KeyOf derives a cache key from an ordered argument tuple. Each part is length
// prefixed, so ("ab", "c") and ("a", "bc") never collide.
func KeyOf(parts ...string) string {
	h, _ := blake2b.New256(nil)
	var lenBuf [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
