package zk

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// VKeyDigest is the digest of a program verification key, as committed
// inside circuit inputs: eight 32-bit words, big-endian when flattened.
type VKeyDigest [8]uint32

// Bytes flattens the digest into its 32-byte form.
func (d VKeyDigest) Bytes() [32]byte {
	var out [32]byte
	for i, w := range d {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// String returns the 0x-prefixed hex form of the digest.
func (d VKeyDigest) String() string {
	b := d.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// VKeyDigestFromBytes reassembles a digest from its 32-byte form.
func VKeyDigestFromBytes(b [32]byte) VKeyDigest {
	var d VKeyDigest
	for i := range d {
		d[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return d
}

// ParseVKeyDigest parses the 0x-prefixed hex form produced by String.
// The two representations round-trip without loss.
func ParseVKeyDigest(s string) (VKeyDigest, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return VKeyDigest{}, fmt.Errorf("failed to decode vkey digest hex: %w", err)
	}
	if len(raw) != 32 {
		return VKeyDigest{}, fmt.Errorf("invalid vkey digest length: expected 32 bytes, got %d", len(raw))
	}
	var b [32]byte
	copy(b[:], raw)
	return VKeyDigestFromBytes(b), nil
}
