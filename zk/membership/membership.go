// Package membership verifies that key-value pairs are present under a
// committed application state root, using generalized merkle paths over
// ordered key segments.
package membership

import (
	"encoding/binary"
	"fmt"

	commitmenttypes "github.com/cosmos/ibc-go/v10/modules/core/23-commitment/types"
	commitmenttypesv2 "github.com/cosmos/ibc-go/v10/modules/core/23-commitment/types/v2"

	"github.com/proofchain-labs/zk-light-client/zk"
)

// KVPair is one key-value record in application state. Keys holds the path
// segments from the outermost store to the innermost key.
type KVPair struct {
	Keys  [][]byte `cbor:"keys"`
	Value []byte   `cbor:"value"`
}

// ProofPair couples a key-value record with its raw encoded merkle proof.
// The proof exists only at proving time; committed outputs carry the
// record alone.
type ProofPair struct {
	KV       KVPair `cbor:"kv"`
	RawProof []byte `cbor:"raw_proof"`
}

// Input is the complete circuit input of the membership program.
type Input struct {
	AppHash [32]byte    `cbor:"app_hash"`
	Proofs  []ProofPair `cbor:"proofs"`
}

// Output is the record committed by a membership proof: the verified state
// root and the key-value records shown to exist under it.
type Output struct {
	AppHash [32]byte
	KVPairs []KVPair
}

// VerifyMembership checks every proof in the batch independently against
// the same state root. The batch is atomic: the first failure rejects the
// whole call.
func VerifyMembership(appHash [32]byte, proofs []ProofPair) error {
	root := commitmenttypes.NewMerkleRoot(appHash[:])
	specs := commitmenttypes.GetSDKSpecs()

	for i, pair := range proofs {
		var proof commitmenttypes.MerkleProof
		if err := proof.Unmarshal(pair.RawProof); err != nil {
			return fmt.Errorf("failed to decode merkle proof %d: %w", i, err)
		}
		path := commitmenttypesv2.NewMerklePath(pair.KV.Keys...)
		if err := proof.VerifyMembership(specs, root, path, pair.KV.Value); err != nil {
			return fmt.Errorf("failed to verify membership of pair %d: %w", i, err)
		}
	}
	return nil
}

// Encode returns the length-prefixed wire form of the output: the state
// root, then the record count, then per record its key segments and value,
// every length a little-endian uint64.
func (o Output) Encode() []byte {
	out := append([]byte{}, o.AppHash[:]...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(o.KVPairs)))
	for _, kv := range o.KVPairs {
		out = binary.LittleEndian.AppendUint64(out, uint64(len(kv.Keys)))
		for _, key := range kv.Keys {
			out = binary.LittleEndian.AppendUint64(out, uint64(len(key)))
			out = append(out, key...)
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(len(kv.Value)))
		out = append(out, kv.Value...)
	}
	return out
}

// DecodeOutput parses the wire form produced by Encode. Trailing or
// truncated bytes fail with a length error.
func DecodeOutput(data []byte) (Output, error) {
	var o Output
	if len(data) < 40 {
		return Output{}, fmt.Errorf("invalid membership output length: expected at least 40 bytes, got %d", len(data))
	}
	copy(o.AppHash[:], data[0:32])
	offset := 32

	readUint := func() (uint64, error) {
		if offset+8 > len(data) {
			return 0, fmt.Errorf("truncated membership output at offset %d", offset)
		}
		v := binary.LittleEndian.Uint64(data[offset:])
		offset += 8
		return v, nil
	}
	readBytes := func() ([]byte, error) {
		n, err := readUint()
		if err != nil {
			return nil, err
		}
		if n > uint64(len(data)-offset) {
			return nil, fmt.Errorf("truncated membership output at offset %d", offset)
		}
		b := append([]byte{}, data[offset:offset+int(n)]...)
		offset += int(n)
		return b, nil
	}

	pairs, err := readUint()
	if err != nil {
		return Output{}, err
	}
	for i := uint64(0); i < pairs; i++ {
		keys, err := readUint()
		if err != nil {
			return Output{}, err
		}
		kv := KVPair{}
		for k := uint64(0); k < keys; k++ {
			key, err := readBytes()
			if err != nil {
				return Output{}, err
			}
			kv.Keys = append(kv.Keys, key)
		}
		if kv.Value, err = readBytes(); err != nil {
			return Output{}, err
		}
		o.KVPairs = append(o.KVPairs, kv)
	}
	if offset != len(data) {
		return Output{}, fmt.Errorf("invalid membership output length: %d trailing bytes", len(data)-offset)
	}
	return o, nil
}

// Hash commits to the state root and the raw key and value bytes of every
// record, in order.
func (o Output) Hash() [32]byte {
	buf := append([]byte{}, o.AppHash[:]...)
	for _, kv := range o.KVPairs {
		for _, key := range kv.Keys {
			buf = append(buf, key...)
		}
		buf = append(buf, kv.Value...)
	}
	return zk.Sha256(buf)
}
