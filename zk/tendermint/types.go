// Package tendermint implements the BFT side of the light client: header
// verification between a trusted and an untrusted block under a trust
// threshold, and the records committed by the recursive consensus proofs.
package tendermint

import (
	"encoding/binary"
	"fmt"

	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/fxamacker/cbor/v2"

	"github.com/proofchain-labs/zk-light-client/zk"
)

// LightBlock is a signed header together with the validator set that
// produced it and the set announced for the next height. This is the unit
// light-client verification operates on.
type LightBlock struct {
	SignedHeader   *cmttypes.SignedHeader
	Validators     *cmttypes.ValidatorSet
	NextValidators *cmttypes.ValidatorSet
}

// lightBlockWire is the serialized form of a LightBlock. Validator public
// keys are interface values, so the components travel as their protobuf
// encodings.
type lightBlockWire struct {
	SignedHeader   []byte `cbor:"signed_header"`
	Validators     []byte `cbor:"validators"`
	NextValidators []byte `cbor:"next_validators"`
}

// MarshalCBOR encodes the light block through its protobuf components.
func (lb LightBlock) MarshalCBOR() ([]byte, error) {
	if lb.SignedHeader == nil || lb.Validators == nil || lb.NextValidators == nil {
		return nil, fmt.Errorf("light block is missing a component")
	}
	sh, err := lb.SignedHeader.ToProto().Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed header: %w", err)
	}
	vsProto, err := lb.Validators.ToProto()
	if err != nil {
		return nil, fmt.Errorf("failed to convert validator set: %w", err)
	}
	vs, err := vsProto.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode validator set: %w", err)
	}
	nvsProto, err := lb.NextValidators.ToProto()
	if err != nil {
		return nil, fmt.Errorf("failed to convert next validator set: %w", err)
	}
	nvs, err := nvsProto.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode next validator set: %w", err)
	}
	return cbor.Marshal(lightBlockWire{SignedHeader: sh, Validators: vs, NextValidators: nvs})
}

// UnmarshalCBOR decodes the form produced by MarshalCBOR.
func (lb *LightBlock) UnmarshalCBOR(data []byte) error {
	var wire lightBlockWire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to decode light block wire form: %w", err)
	}

	var shProto cmtproto.SignedHeader
	if err := shProto.Unmarshal(wire.SignedHeader); err != nil {
		return fmt.Errorf("failed to decode signed header: %w", err)
	}
	sh, err := cmttypes.SignedHeaderFromProto(&shProto)
	if err != nil {
		return fmt.Errorf("failed to convert signed header: %w", err)
	}

	var vsProto cmtproto.ValidatorSet
	if err := vsProto.Unmarshal(wire.Validators); err != nil {
		return fmt.Errorf("failed to decode validator set: %w", err)
	}
	vs, err := cmttypes.ValidatorSetFromProto(&vsProto)
	if err != nil {
		return fmt.Errorf("failed to convert validator set: %w", err)
	}

	var nvsProto cmtproto.ValidatorSet
	if err := nvsProto.Unmarshal(wire.NextValidators); err != nil {
		return fmt.Errorf("failed to decode next validator set: %w", err)
	}
	nvs, err := cmttypes.ValidatorSetFromProto(&nvsProto)
	if err != nil {
		return fmt.Errorf("failed to convert next validator set: %w", err)
	}

	lb.SignedHeader = sh
	lb.Validators = vs
	lb.NextValidators = nvs
	return nil
}

// OutputSize is the wire size of an encoded Output.
const OutputSize = 8 + 8 + 32 + 32 + 32 + 32

// Output is the record committed by one consensus proof.
type Output struct {
	// TrustedHeight is the height of the block used as the root of trust.
	TrustedHeight uint64
	// TargetHeight is the height whose validity this proof establishes.
	TargetHeight uint64
	// TrustedHeaderHash is the header hash at TrustedHeight.
	TrustedHeaderHash [32]byte
	// TargetHeaderHash is the verified header hash at TargetHeight.
	TargetHeaderHash [32]byte
	// CompressedBlockPublicInput folds the public records of every proven
	// step up to this one.
	CompressedBlockPublicInput [32]byte
	// AppHash is the application state root carried by the verified header.
	AppHash [32]byte
}

// Encode returns the fixed 144-byte layout of the record.
func (o Output) Encode() []byte {
	out := make([]byte, 0, OutputSize)
	out = binary.LittleEndian.AppendUint64(out, o.TrustedHeight)
	out = binary.LittleEndian.AppendUint64(out, o.TargetHeight)
	out = append(out, o.TrustedHeaderHash[:]...)
	out = append(out, o.TargetHeaderHash[:]...)
	out = append(out, o.CompressedBlockPublicInput[:]...)
	out = append(out, o.AppHash[:]...)
	return out
}

// DecodeOutput parses the fixed 144-byte layout.
func DecodeOutput(data []byte) (Output, error) {
	if len(data) != OutputSize {
		return Output{}, fmt.Errorf("invalid consensus output length: expected %d bytes, got %d", OutputSize, len(data))
	}
	var o Output
	o.TrustedHeight = binary.LittleEndian.Uint64(data[0:8])
	o.TargetHeight = binary.LittleEndian.Uint64(data[8:16])
	copy(o.TrustedHeaderHash[:], data[16:48])
	copy(o.TargetHeaderHash[:], data[48:80])
	copy(o.CompressedBlockPublicInput[:], data[80:112])
	copy(o.AppHash[:], data[112:144])
	return o, nil
}

// Hash returns the single SHA-256 of the encoded record.
func (o Output) Hash() [32]byte {
	return zk.Sha256(o.Encode())
}

// VerifierPublicInput is the public input known to the verifier of one
// proving step before the step runs.
type VerifierPublicInput struct {
	// ParentCompressedBlockPublicInput is the accumulator committed by the
	// previous step.
	ParentCompressedBlockPublicInput [32]byte `cbor:"parent_compressed_block_public_input"`
	// AppHash is the application state root in the header being proven.
	AppHash [32]byte `cbor:"app_hash"`
	// TargetHeight is the height being proven.
	TargetHeight uint64 `cbor:"target_height"`
	// TargetHeaderHash is the header hash at TargetHeight.
	TargetHeaderHash [32]byte `cbor:"target_header_hash"`
}

// Hash returns the single SHA-256 over the record's fixed field layout.
func (in VerifierPublicInput) Hash() [32]byte {
	buf := make([]byte, 0, 32+32+8+32)
	buf = append(buf, in.ParentCompressedBlockPublicInput[:]...)
	buf = append(buf, in.AppHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, in.TargetHeight)
	buf = append(buf, in.TargetHeaderHash[:]...)
	return zk.Sha256(buf)
}

// Witness links the last trusted light block to the new one being proven.
// It is consumed by header verification and never persisted.
type Witness struct {
	TrustedBlock   LightBlock `cbor:"trusted_block"`
	UntrustedBlock LightBlock `cbor:"untrusted_block"`
}

// ConsensusInput is the complete circuit input of the consensus program.
type ConsensusInput struct {
	// ProvingBlockIndex is the 0-based position in the recursive proof
	// sequence; it grows by exactly one per proven step even when block
	// heights are skipped between steps.
	ProvingBlockIndex uint64 `cbor:"proving_block_index"`
	// VKey is the digest of this program's own verification key.
	VKey zk.VKeyDigest `cbor:"vkey"`
	// Parent is the output committed by the parent proof.
	Parent Output `cbor:"parent"`
	// Current is the public input of this step.
	Current VerifierPublicInput `cbor:"current"`
	// Witness backs the header verification.
	Witness Witness `cbor:"witness"`
}
