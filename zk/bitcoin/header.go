// Package bitcoin implements the proof-of-work side of the light client:
// the fixed-width header codec, the transaction merkle engine and the
// consensus rules checked when a block is proven.
package bitcoin

import (
	"crypto/sha256"
	"fmt"
)

// HeaderSize is the wire size of a serialized block header.
const HeaderSize = 80

// Header is a circuit-friendly block header. Every field is a fixed-size
// little-endian byte array so that serialization is deterministic on both
// the host and the guest side. Height is carried alongside the wire fields
// because the raw 80-byte header does not include it.
type Header struct {
	Height        uint64
	Version       [4]byte
	PrevBlockHash [32]byte
	MerkleRoot    [32]byte
	Time          [4]byte
	Bits          [4]byte
	Nonce         [4]byte
}

// Serialize returns the 80-byte wire form of the header:
// version ‖ prev_blockhash ‖ merkle_root ‖ time ‖ bits ‖ nonce.
func (h Header) Serialize() []byte {
	out := make([]byte, 0, HeaderSize)
	out = append(out, h.Version[:]...)
	out = append(out, h.PrevBlockHash[:]...)
	out = append(out, h.MerkleRoot[:]...)
	out = append(out, h.Time[:]...)
	out = append(out, h.Bits[:]...)
	out = append(out, h.Nonce[:]...)
	return out
}

// BlockHash returns the double SHA-256 of the serialized header in
// little-endian byte order.
func (h Header) BlockHash() [32]byte {
	return DoubleSha256(h.Serialize())
}

// DecodeHeader parses the 80-byte wire form. The height is supplied by the
// caller since it is not part of the wire encoding.
func DecodeHeader(height uint64, data []byte) (Header, error) {
	if len(data) != HeaderSize {
		return Header{}, fmt.Errorf("invalid header length: expected %d bytes, got %d", HeaderSize, len(data))
	}
	h := Header{Height: height}
	copy(h.Version[:], data[0:4])
	copy(h.PrevBlockHash[:], data[4:36])
	copy(h.MerkleRoot[:], data[36:68])
	copy(h.Time[:], data[68:72])
	copy(h.Bits[:], data[72:76])
	copy(h.Nonce[:], data[76:80])
	return h, nil
}

// ToLittleEndian reverses the byte order of a 32-byte hash.
func ToLittleEndian(hash [32]byte) [32]byte {
	for i, j := 0, len(hash)-1; i < j; i, j = i+1, j-1 {
		hash[i], hash[j] = hash[j], hash[i]
	}
	return hash
}

// DoubleSha256 hashes b twice with SHA-256 and reverses the result, which
// matches the historical big-endian display convention for block hashes
// and transaction ids.
func DoubleSha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return ToLittleEndian(sha256.Sum256(first[:]))
}
