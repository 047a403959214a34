package bitcoin

import (
	"fmt"

	"github.com/proofchain-labs/zk-light-client/zk"
)

// InclusionPublicInputSize is the wire size of an encoded InclusionPublicInput.
const InclusionPublicInputSize = 64

// InclusionPublicInput is the public record of a transaction inclusion
// proof: the transaction tree root and the txid shown to live under it.
type InclusionPublicInput struct {
	TxMerkleRoot [32]byte
	TxID         [32]byte
}

// Encode returns the fixed 64-byte layout: root ‖ txid.
func (in InclusionPublicInput) Encode() []byte {
	out := make([]byte, 0, InclusionPublicInputSize)
	out = append(out, in.TxMerkleRoot[:]...)
	out = append(out, in.TxID[:]...)
	return out
}

// DecodeInclusionPublicInput parses the fixed 64-byte layout.
func DecodeInclusionPublicInput(data []byte) (InclusionPublicInput, error) {
	if len(data) != InclusionPublicInputSize {
		return InclusionPublicInput{}, fmt.Errorf("invalid inclusion public input length: expected %d bytes, got %d", InclusionPublicInputSize, len(data))
	}
	var in InclusionPublicInput
	copy(in.TxMerkleRoot[:], data[0:32])
	copy(in.TxID[:], data[32:64])
	return in, nil
}

// Hash returns the single SHA-256 of the encoded record.
func (in InclusionPublicInput) Hash() [32]byte {
	return zk.Sha256(in.Encode())
}

// InclusionWitness backs an inclusion proof: the transaction serialized in
// the legacy pre-SegWit format and its merkle path.
type InclusionWitness struct {
	LegacyTx      []byte      `cbor:"legacy_tx"`
	TxMerkleProof []ProofStep `cbor:"tx_merkle_proof"`
}

// InclusionInput is the complete circuit input of the inclusion program.
type InclusionInput struct {
	PublicInput InclusionPublicInput `cbor:"public_input"`
	Witness     InclusionWitness     `cbor:"witness"`
}
