package bitcoin

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/proofchain-labs/zk-light-client/zk"
)

const (
	// TrustWindow is the number of already-trusted headers that must
	// precede a proposed block.
	TrustWindow = 11
	// Confirmations is how many blocks behind the proposed one the
	// deep-confirmation merkle root is sourced from.
	Confirmations = 3
	// EpochBlocks is the difficulty retarget interval.
	EpochBlocks = 2016
	// BlockInterval is the expected block production time in seconds.
	BlockInterval = 600
	// ExpectedEpochSeconds is the expected duration of one difficulty epoch.
	ExpectedEpochSeconds = EpochBlocks * BlockInterval
)

// BlockPublicInputSize is the wire size of an encoded BlockPublicInput.
const BlockPublicInputSize = 5*32 + 8

// BlockPublicInput is the per-block public record committed by one proving
// step. All hashes are little-endian 32-byte digests.
type BlockPublicInput struct {
	PrevBlockHash     [32]byte
	ProposedBlockHash [32]byte
	RetargetBlockHash [32]byte
	MedianBlockHash   [32]byte
	DeepTxMerkleRoot  [32]byte
	ProposedHeight    uint64
}

// Encode returns the fixed 168-byte layout of the record.
func (in BlockPublicInput) Encode() []byte {
	out := make([]byte, 0, BlockPublicInputSize)
	out = append(out, in.PrevBlockHash[:]...)
	out = append(out, in.ProposedBlockHash[:]...)
	out = append(out, in.RetargetBlockHash[:]...)
	out = append(out, in.MedianBlockHash[:]...)
	out = append(out, in.DeepTxMerkleRoot[:]...)
	out = binary.LittleEndian.AppendUint64(out, in.ProposedHeight)
	return out
}

// DecodeBlockPublicInput parses the fixed 168-byte layout.
func DecodeBlockPublicInput(data []byte) (BlockPublicInput, error) {
	if len(data) != BlockPublicInputSize {
		return BlockPublicInput{}, fmt.Errorf("invalid block public input length: expected %d bytes, got %d", BlockPublicInputSize, len(data))
	}
	var in BlockPublicInput
	copy(in.PrevBlockHash[:], data[0:32])
	copy(in.ProposedBlockHash[:], data[32:64])
	copy(in.RetargetBlockHash[:], data[64:96])
	copy(in.MedianBlockHash[:], data[96:128])
	copy(in.DeepTxMerkleRoot[:], data[128:160])
	in.ProposedHeight = binary.LittleEndian.Uint64(data[160:168])
	return in, nil
}

// Hash returns the single SHA-256 of the encoded record.
func (in BlockPublicInput) Hash() [32]byte {
	return zk.Sha256(in.Encode())
}

// VerifierPublicInputSize is the wire size of an encoded VerifierPublicInput.
const VerifierPublicInputSize = 32 + 32 + 8

// VerifierPublicInput is the constant-size commitment a consensus proof
// exposes: the folded accumulator over every proven block, plus the
// deep-confirmation merkle root and height of the latest one.
type VerifierPublicInput struct {
	CompressedBlockPublicInput [32]byte
	DeepTxMerkleRoot           [32]byte
	CurrentHeight              uint64
}

// Encode returns the fixed 72-byte layout of the record.
func (in VerifierPublicInput) Encode() []byte {
	out := make([]byte, 0, VerifierPublicInputSize)
	out = append(out, in.CompressedBlockPublicInput[:]...)
	out = append(out, in.DeepTxMerkleRoot[:]...)
	out = binary.LittleEndian.AppendUint64(out, in.CurrentHeight)
	return out
}

// DecodeVerifierPublicInput parses the fixed 72-byte layout.
func DecodeVerifierPublicInput(data []byte) (VerifierPublicInput, error) {
	if len(data) != VerifierPublicInputSize {
		return VerifierPublicInput{}, fmt.Errorf("invalid verifier public input length: expected %d bytes, got %d", VerifierPublicInputSize, len(data))
	}
	var in VerifierPublicInput
	copy(in.CompressedBlockPublicInput[:], data[0:32])
	copy(in.DeepTxMerkleRoot[:], data[32:64])
	in.CurrentHeight = binary.LittleEndian.Uint64(data[64:72])
	return in, nil
}

// Hash returns the single SHA-256 of the encoded record.
func (in VerifierPublicInput) Hash() [32]byte {
	return zk.Sha256(in.Encode())
}

// ConsensusWitness carries the headers needed to prove one block: the
// trusted window plus the proposed block as its last element, and the
// retarget block of the relevant difficulty epoch.
type ConsensusWitness struct {
	ProposedChain []Header `cbor:"proposed_chain"`
	RetargetBlock Header   `cbor:"retarget_block"`
}

// ConsensusInput is the complete circuit input for proving one block.
type ConsensusInput struct {
	// Index is the 0-based position in the recursive proof sequence.
	Index uint64 `cbor:"index"`
	// VKey is the digest of this program's own verification key, used to
	// check the parent proof.
	VKey zk.VKeyDigest `cbor:"vkey"`
	// Parent is the public record committed by the previous step.
	Parent VerifierPublicInput `cbor:"parent"`
	// BlockPublicInput is the public record of the block being proven.
	BlockPublicInput BlockPublicInput `cbor:"block_public_input"`
	// Witness holds the headers backing the public record.
	Witness ConsensusWitness `cbor:"witness"`
}

// ValidateBlock checks a proposed block against the consensus rules. The
// chain must end with the proposed block and contain at least the trust
// window before it. Any failed check is an attempt to prove a false
// statement and aborts with no output.
func ValidateBlock(proposedChain []Header, retargetBlock Header, pub BlockPublicInput) error {
	minimumChainLen := TrustWindow + 1
	if len(proposedChain) < minimumChainLen {
		return fmt.Errorf("proposed chain too short: need at least %d headers, got %d", minimumChainLen, len(proposedChain))
	}
	proposed := proposedChain[len(proposedChain)-1]
	previous := proposedChain[len(proposedChain)-2]
	deep := proposedChain[len(proposedChain)-Confirmations-1]

	if pub.ProposedHeight < uint64(minimumChainLen) {
		return fmt.Errorf("proposed height %d below minimum provable height %d", pub.ProposedHeight, minimumChainLen)
	}
	if pub.ProposedHeight < retargetBlock.Height {
		return fmt.Errorf("proposed height %d below retarget block height %d", pub.ProposedHeight, retargetBlock.Height)
	}
	if pub.ProposedHeight != proposed.Height {
		return fmt.Errorf("proposed height mismatch: public record says %d, witness header says %d", pub.ProposedHeight, proposed.Height)
	}
	if pub.ProposedHeight != previous.Height+1 {
		return fmt.Errorf("proposed height %d does not follow previous witness height %d", pub.ProposedHeight, previous.Height)
	}
	if pub.ProposedHeight != deep.Height+Confirmations {
		return fmt.Errorf("proposed height %d does not sit %d above deep-confirmation height %d", pub.ProposedHeight, Confirmations, deep.Height)
	}

	if got := proposed.BlockHash(); pub.ProposedBlockHash != got {
		return fmt.Errorf("proposed block hash mismatch: expected %x, computed %x", pub.ProposedBlockHash, got)
	}
	if got := previous.BlockHash(); pub.PrevBlockHash != got {
		return fmt.Errorf("previous block hash mismatch: expected %x, computed %x", pub.PrevBlockHash, got)
	}
	if linked := ToLittleEndian(proposed.PrevBlockHash); pub.PrevBlockHash != linked {
		return fmt.Errorf("broken header linkage: previous hash %x, proposed header links to %x", pub.PrevBlockHash, linked)
	}

	if got := retargetBlock.BlockHash(); pub.RetargetBlockHash != got {
		return fmt.Errorf("retarget block hash mismatch: expected %x, computed %x", pub.RetargetBlockHash, got)
	}
	if pub.RetargetBlockHash == pub.ProposedBlockHash {
		return fmt.Errorf("retarget block hash equals the proposed block hash")
	}

	if pub.ProposedHeight%EpochBlocks == 0 {
		if err := checkRetargetBits(retargetBlock, previous, proposed); err != nil {
			return err
		}
	} else if retargetBlock.Bits != proposed.Bits {
		return fmt.Errorf("target bits changed mid-epoch: retarget %x, proposed %x", retargetBlock.Bits, proposed.Bits)
	}

	target := bitsToTarget(proposed.Bits)
	work := new(uint256.Int).SetBytes(pub.ProposedBlockHash[:])
	if work.Cmp(target) > 0 {
		return fmt.Errorf("insufficient proof of work: hash %s above target %s", work.Hex(), target.Hex())
	}

	median := MedianBlock(proposedChain)
	if got := median.BlockHash(); pub.MedianBlockHash != got {
		return fmt.Errorf("median block hash mismatch: expected %x, computed %x", pub.MedianBlockHash, got)
	}
	if headerTime(proposed) < headerTime(median) {
		return fmt.Errorf("proposed timestamp %d below median timestamp %d", headerTime(proposed), headerTime(median))
	}

	if !bytes.Equal(pub.DeepTxMerkleRoot[:], deep.MerkleRoot[:]) {
		return fmt.Errorf("deep-confirmation merkle root mismatch: expected %x, witness header carries %x", pub.DeepTxMerkleRoot, deep.MerkleRoot)
	}
	return nil
}

// MedianBlock picks the timestamp median of the trust window, the
// TrustWindow headers immediately preceding the proposed block. The index
// formula depends on the parity of the window size and must stay this way
// for compatibility with already-generated proofs.
func MedianBlock(proposedChain []Header) Header {
	medianIdx := (TrustWindow - 1) / 2
	if TrustWindow%2 == 0 {
		medianIdx = TrustWindow / 2
	}
	start := len(proposedChain) - TrustWindow - 1
	end := len(proposedChain) - 1
	observed := make([]Header, TrustWindow)
	copy(observed, proposedChain[start:end])
	sort.SliceStable(observed, func(i, j int) bool {
		return headerTime(observed[i]) < headerTime(observed[j])
	})
	return observed[medianIdx]
}
